// Package refine closes the quality loop on model drafts: score the draft,
// and while it rates below the threshold, ask the model to rewrite it against
// the named weaknesses. Scoring is local and deterministic; only revision
// rounds spend model calls.
package refine

import (
	"regexp"
	"strings"

	"conductor/internal/config"
	"conductor/internal/ports"
	"conductor/internal/token"
)

// Weighted-mean weights for the positive sub-scores. Relevance and
// helpfulness dominate; clarity and consistency temper them. Code validity
// joins the mean only when the draft carries fenced code.
const (
	weightClarity     = 0.20
	weightRelevance   = 0.30
	weightHelpfulness = 0.30
	weightConsistency = 0.20
	weightCode        = 0.25
)

// Verdict buckets over the 0-5 final rating.
const (
	verdictExcellentAt  = 4.5
	verdictGoodAt       = 4.0
	verdictAcceptableAt = 3.0
)

// deficiencyBar is the sub-score below which a dimension is called out in
// the revision prompt.
const deficiencyBar = 0.7

// Evaluator scores drafts without model round-trips. The sub-score
// heuristics are intentionally coarse; they exist to rank revisions of the
// same answer against each other, not to grade answers in absolute terms.
type Evaluator struct {
	hallucinationPenalty float64
	inconsistencyPenalty float64
}

// NewEvaluator builds an evaluator with the given rating penalties.
// Non-positive penalties fall back to the defaults.
func NewEvaluator(hallucinationPenalty, inconsistencyPenalty float64) *Evaluator {
	if hallucinationPenalty <= 0 {
		hallucinationPenalty = config.DefaultHallucinationPenalty
	}
	if inconsistencyPenalty <= 0 {
		inconsistencyPenalty = config.DefaultInconsistencyPenalty
	}
	return &Evaluator{
		hallucinationPenalty: hallucinationPenalty,
		inconsistencyPenalty: inconsistencyPenalty,
	}
}

// Evaluate scores one draft against the query that produced it. violations
// lists tools the response called outside policy; each one lowers
// consistency. attempt is 1-based.
func (e *Evaluator) Evaluate(query, draft string, violations []string, attempt int) ports.QualityEvaluation {
	eval := ports.QualityEvaluation{
		Clarity:           scoreClarity(draft),
		Relevance:         scoreRelevance(query, draft),
		Helpfulness:       scoreHelpfulness(draft),
		Consistency:       scoreConsistency(violations),
		HallucinationRisk: scoreHallucinationRisk(draft),
		CodeValidity:      scoreCodeValidity(draft),
		TokenCount:        token.Count(draft),
		Attempt:           attempt,
	}

	weighted := eval.Clarity*weightClarity +
		eval.Relevance*weightRelevance +
		eval.Helpfulness*weightHelpfulness +
		eval.Consistency*weightConsistency
	total := weightClarity + weightRelevance + weightHelpfulness + weightConsistency
	if eval.CodeValidity != nil {
		weighted += *eval.CodeValidity * weightCode
		total += weightCode
	}

	rating := 5 * weighted / total
	rating -= e.hallucinationPenalty * eval.HallucinationRisk
	rating -= e.inconsistencyPenalty * (1 - eval.Consistency)
	eval.FinalRating = clamp(rating, 0, 5)
	eval.Verdict = verdictFor(eval.FinalRating)
	return eval
}

// Skipped builds the synthetic evaluation attached when refinement is
// bypassed for a trivial request. No sub-scores are computed.
func (e *Evaluator) Skipped(draft string) ports.QualityEvaluation {
	return ports.QualityEvaluation{
		TokenCount: token.Count(draft),
		Verdict:    ports.VerdictSkipped,
		Attempt:    1,
		Skipped:    true,
	}
}

func verdictFor(rating float64) ports.Verdict {
	switch {
	case rating >= verdictExcellentAt:
		return ports.VerdictExcellent
	case rating >= verdictGoodAt:
		return ports.VerdictGood
	case rating >= verdictAcceptableAt:
		return ports.VerdictAcceptable
	default:
		return ports.VerdictPoor
	}
}

// scoreClarity rewards digestible sentences and paragraph structure.
func scoreClarity(draft string) float64 {
	draft = strings.TrimSpace(draft)
	if draft == "" {
		return 0
	}
	sentences := splitSentences(draft)
	if len(sentences) == 0 {
		return 0.3
	}
	words := 0
	for _, s := range sentences {
		words += len(strings.Fields(s))
	}
	mean := float64(words) / float64(len(sentences))

	score := 1.0
	if mean > 22 {
		score -= (mean - 22) * 0.02
	}
	// A long unbroken wall of text reads worse than its sentences suggest.
	if words > 150 && !strings.Contains(draft, "\n\n") {
		score -= 0.15
	}
	return clamp(score, 0.2, 1)
}

// scoreRelevance measures how many significant query terms the draft picks
// up. Queries without significant terms (greetings, one-worders) score a
// neutral 0.75.
func scoreRelevance(query, draft string) float64 {
	if strings.TrimSpace(draft) == "" {
		return 0
	}
	terms := significantTerms(query)
	if len(terms) == 0 {
		return 0.75
	}
	lower := strings.ToLower(draft)
	hits := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	coverage := float64(hits) / float64(len(terms))
	return clamp(0.2+0.8*coverage, 0, 1)
}

// scoreHelpfulness rewards substance: enough words to actually answer, plus
// structure the reader can act on (lists, fenced code).
func scoreHelpfulness(draft string) float64 {
	words := len(strings.Fields(draft))
	var score float64
	switch {
	case words == 0:
		return 0
	case words < 10:
		score = 0.25
	case words < 30:
		score = 0.55
	case words < 60:
		score = 0.75
	default:
		score = 0.85
	}
	if listPattern.MatchString(draft) {
		score += 0.1
	}
	if strings.Contains(draft, "```") {
		score += 0.1
	}
	return clamp(score, 0, 1)
}

// scoreConsistency starts perfect and loses a quarter point per policy
// violation the response committed.
func scoreConsistency(violations []string) float64 {
	return clamp(1-0.25*float64(len(violations)), 0, 1)
}

// scoreHallucinationRisk looks for the shapes fabrication tends to take:
// absolute claims and invented references. Hedged language lowers the risk.
func scoreHallucinationRisk(draft string) float64 {
	lower := strings.ToLower(draft)
	risk := 0.1
	for _, marker := range absoluteMarkers {
		risk += 0.15 * float64(strings.Count(lower, marker))
	}
	for _, marker := range referenceMarkers {
		if strings.Contains(lower, marker) {
			risk += 0.2
		}
	}
	for _, marker := range hedgeMarkers {
		if strings.Contains(lower, marker) {
			risk -= 0.05
		}
	}
	return clamp(risk, 0, 1)
}

// scoreCodeValidity checks fenced code blocks for balanced delimiters.
// Returns nil when the draft has no fenced code.
func scoreCodeValidity(draft string) *float64 {
	blocks := extractCodeBlocks(draft)
	if len(blocks) == 0 {
		return nil
	}
	sum := 0.0
	for _, block := range blocks {
		score := 1.0
		if strings.TrimSpace(block) == "" {
			score = 0.3
		}
		for _, pair := range [][2]rune{{'{', '}'}, {'(', ')'}, {'[', ']'}} {
			if strings.Count(block, string(pair[0])) != strings.Count(block, string(pair[1])) {
				score -= 0.3
			}
		}
		sum += clamp(score, 0, 1)
	}
	v := sum / float64(len(blocks))
	return &v
}

var (
	sentenceEnd = regexp.MustCompile(`[.!?]+\s|[.!?]+$`)
	listPattern = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+\.)\s`)

	absoluteMarkers  = []string{"guaranteed", "definitely", "undoubtedly", "100% certain", "always works", "never fails"}
	referenceMarkers = []string{"http://", "https://", "as documented in", "according to the official"}
	hedgeMarkers     = []string{"might", "may ", "likely", "typically", "generally", "depends on"}

	stopTerms = map[string]bool{
		"the": true, "and": true, "for": true, "with": true, "that": true,
		"this": true, "what": true, "how": true, "why": true, "can": true,
		"you": true, "does": true, "are": true, "was": true, "will": true,
		"should": true, "could": true, "would": true, "please": true,
		"about": true, "from": true, "into": true, "your": true, "when": true,
	}
)

func splitSentences(text string) []string {
	parts := sentenceEnd.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// significantTerms lowercases the query and drops stopwords and short
// tokens, leaving the terms an on-topic answer should echo.
func significantTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if len(f) < 3 || stopTerms[f] {
			continue
		}
		terms = append(terms, f)
	}
	return terms
}

// extractCodeBlocks returns the contents of ``` fenced blocks.
func extractCodeBlocks(draft string) []string {
	var blocks []string
	parts := strings.Split(draft, "```")
	// Odd-indexed segments sit inside fences; an unclosed final fence is
	// treated as a block too.
	for i := 1; i < len(parts); i += 2 {
		block := parts[i]
		// Drop the language tag line if present.
		if idx := strings.IndexByte(block, '\n'); idx >= 0 {
			blocks = append(blocks, block[idx+1:])
		} else {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
