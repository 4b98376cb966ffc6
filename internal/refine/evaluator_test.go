package refine

import (
	"testing"

	"conductor/internal/ports"
)

const evalQuery = "How should I structure error handling in a Go web service?"

func TestEvaluateSubScoresWithinBounds(t *testing.T) {
	ev := NewEvaluator(0, 0)
	eval := ev.Evaluate(evalQuery, "Wrap errors with context and map them to status codes at the boundary.", nil, 1)

	for name, score := range map[string]float64{
		"clarity":            eval.Clarity,
		"relevance":          eval.Relevance,
		"helpfulness":        eval.Helpfulness,
		"consistency":        eval.Consistency,
		"hallucination_risk": eval.HallucinationRisk,
	} {
		if score < 0 || score > 1 {
			t.Errorf("%s = %v, want within [0,1]", name, score)
		}
	}
	if eval.FinalRating < 0 || eval.FinalRating > 5 {
		t.Errorf("FinalRating = %v, want within [0,5]", eval.FinalRating)
	}
	if eval.TokenCount == 0 {
		t.Error("TokenCount = 0, want positive")
	}
	if eval.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", eval.Attempt)
	}
	if eval.Skipped {
		t.Error("Skipped = true on a real evaluation")
	}
}

func TestEvaluateRelevanceTracksQueryTerms(t *testing.T) {
	ev := NewEvaluator(0, 0)
	onTopic := ev.Evaluate(evalQuery, "Structure error handling so the web service maps errors at one boundary.", nil, 1)
	offTopic := ev.Evaluate(evalQuery, "Bread rises when the yeast ferments the dough overnight.", nil, 1)

	if onTopic.Relevance <= offTopic.Relevance {
		t.Errorf("on-topic relevance %v not above off-topic %v", onTopic.Relevance, offTopic.Relevance)
	}
	if onTopic.FinalRating <= offTopic.FinalRating {
		t.Errorf("on-topic rating %v not above off-topic %v", onTopic.FinalRating, offTopic.FinalRating)
	}
}

func TestEvaluateViolationsLowerConsistency(t *testing.T) {
	ev := NewEvaluator(0, 0)
	draft := "Map errors to status codes in middleware so the handling stays in one place."

	clean := ev.Evaluate(evalQuery, draft, nil, 1)
	dirty := ev.Evaluate(evalQuery, draft, []string{"shell_exec", "file_write"}, 1)

	if clean.Consistency != 1 {
		t.Errorf("consistency without violations = %v, want 1", clean.Consistency)
	}
	if dirty.Consistency != 0.5 {
		t.Errorf("consistency with two violations = %v, want 0.5", dirty.Consistency)
	}
	if dirty.FinalRating >= clean.FinalRating {
		t.Errorf("violation rating %v not below clean rating %v", dirty.FinalRating, clean.FinalRating)
	}
}

func TestEvaluateAbsoluteClaimsRaiseRisk(t *testing.T) {
	ev := NewEvaluator(0, 0)
	hedged := ev.Evaluate(evalQuery, "This approach typically works, though it depends on the framework.", nil, 1)
	absolute := ev.Evaluate(evalQuery, "This approach is guaranteed to work and definitely handles every case.", nil, 1)

	if absolute.HallucinationRisk <= hedged.HallucinationRisk {
		t.Errorf("absolute risk %v not above hedged %v", absolute.HallucinationRisk, hedged.HallucinationRisk)
	}
}

func TestEvaluateCodeValidity(t *testing.T) {
	ev := NewEvaluator(0, 0)

	prose := ev.Evaluate(evalQuery, "Wrap errors and return them up the stack.", nil, 1)
	if prose.CodeValidity != nil {
		t.Fatalf("CodeValidity = %v for prose, want nil", *prose.CodeValidity)
	}

	balanced := ev.Evaluate(evalQuery, "Use this:\n```go\nif err != nil {\n\treturn fmt.Errorf(\"load: %w\", err)\n}\n```", nil, 1)
	if balanced.CodeValidity == nil {
		t.Fatal("CodeValidity = nil for fenced code")
	}
	broken := ev.Evaluate(evalQuery, "Use this:\n```go\nif err != nil {\n\treturn fmt.Errorf(\"load: %w\", err)\n```", nil, 1)
	if broken.CodeValidity == nil {
		t.Fatal("CodeValidity = nil for fenced code")
	}
	if *broken.CodeValidity >= *balanced.CodeValidity {
		t.Errorf("unbalanced code scored %v, balanced %v", *broken.CodeValidity, *balanced.CodeValidity)
	}
}

func TestVerdictBuckets(t *testing.T) {
	cases := []struct {
		rating float64
		want   ports.Verdict
	}{
		{4.9, ports.VerdictExcellent},
		{4.5, ports.VerdictExcellent},
		{4.2, ports.VerdictGood},
		{4.0, ports.VerdictGood},
		{3.5, ports.VerdictAcceptable},
		{3.0, ports.VerdictAcceptable},
		{2.9, ports.VerdictPoor},
		{0, ports.VerdictPoor},
	}
	for _, tc := range cases {
		if got := verdictFor(tc.rating); got != tc.want {
			t.Errorf("verdictFor(%v) = %s, want %s", tc.rating, got, tc.want)
		}
	}
}

func TestSkippedEvaluation(t *testing.T) {
	ev := NewEvaluator(0, 0)
	eval := ev.Skipped("2 + 2 = 4")

	if !eval.Skipped {
		t.Error("Skipped = false")
	}
	if eval.Verdict != ports.VerdictSkipped {
		t.Errorf("Verdict = %s, want %s", eval.Verdict, ports.VerdictSkipped)
	}
	if eval.FinalRating != 0 {
		t.Errorf("FinalRating = %v, want 0", eval.FinalRating)
	}
	if eval.TokenCount == 0 {
		t.Error("TokenCount = 0, want positive")
	}
	if eval.Attempt != 1 {
		t.Errorf("Attempt = %d, want 1", eval.Attempt)
	}
}

func TestEvaluateEmptyDraft(t *testing.T) {
	ev := NewEvaluator(0, 0)
	eval := ev.Evaluate(evalQuery, "", nil, 1)

	if eval.Verdict != ports.VerdictPoor {
		t.Errorf("Verdict = %s for empty draft, want %s", eval.Verdict, ports.VerdictPoor)
	}
	if eval.TokenCount != 0 {
		t.Errorf("TokenCount = %d for empty draft, want 0", eval.TokenCount)
	}
}

func TestEvaluatePenaltiesDragRating(t *testing.T) {
	draft := "It is guaranteed to work. Trust the defaults."

	lenient := NewEvaluator(0.1, 0.1).Evaluate(evalQuery, draft, []string{"shell_exec"}, 1)
	harsh := NewEvaluator(3, 2).Evaluate(evalQuery, draft, []string{"shell_exec"}, 1)

	if harsh.FinalRating >= lenient.FinalRating {
		t.Errorf("harsh penalties rated %v, lenient %v", harsh.FinalRating, lenient.FinalRating)
	}
	if harsh.FinalRating < 0 {
		t.Errorf("FinalRating = %v, want floored at 0", harsh.FinalRating)
	}
}
