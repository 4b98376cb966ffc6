package planner

import (
	"testing"

	"conductor/internal/ports"
)

func TestScoreComplexity_Signals(t *testing.T) {
	short := scoreComplexity("what is go", ports.IntentGeneral)
	if short > 3 {
		t.Fatalf("short plain query too complex: %d", short)
	}

	multi := "first migrate the schema, then backfill the rows, and finally verify the counts match on both sides of the replication boundary"
	if got := scoreComplexity(multi, ports.IntentGeneral); got <= short {
		t.Fatalf("multi-step query (%d) should outscore a short one (%d)", got, short)
	}

	plain := scoreComplexity("update the handler registration for the router", ports.IntentGeneral)
	coded := scoreComplexity("update `registerHandler()` in internal/server/router.go", ports.IntentGeneral)
	if coded <= plain {
		t.Fatalf("code markers should raise complexity: coded=%d plain=%d", coded, plain)
	}

	base := scoreComplexity("change the greeting text", ports.IntentGeneral)
	heavy := scoreComplexity("change the greeting text", ports.IntentImplementation)
	if heavy != base+1 {
		t.Fatalf("build intents add one: base=%d heavy=%d", base, heavy)
	}
}

func TestScoreComplexity_Clamped(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "first step then another and finally more? "
	}
	if got := scoreComplexity(long, ports.IntentDebug); got != 10 {
		t.Fatalf("expected clamp at 10, got %d", got)
	}
	if got := scoreComplexity("", ports.IntentGeneral); got != 1 {
		t.Fatalf("expected floor at 1, got %d", got)
	}
}

func TestScoreAmbiguity_Signals(t *testing.T) {
	var noHistory ports.ConversationState

	vague := scoreAmbiguity("maybe somehow fix it or something?", noHistory)
	concrete := scoreAmbiguity("rename parseConfig() in internal/config/config.go to loadConfig", noHistory)
	if vague <= concrete {
		t.Fatalf("vague=%d should outscore concrete=%d", vague, concrete)
	}
	if vague < 7 {
		t.Fatalf("pronoun+hedge+short query should score high, got %d", vague)
	}

	withHistory := scoreAmbiguity("maybe somehow fix it or something?", ports.ConversationState{Requests: 3})
	if withHistory != vague-1 {
		t.Fatalf("history should lower ambiguity by one: %d vs %d", withHistory, vague)
	}
}

func TestStrategyFor_PureLookup(t *testing.T) {
	cases := []struct {
		complexity, ambiguity int
		want                  ports.Strategy
	}{
		{1, 1, ports.StrategyFastRecall},
		{3, 4, ports.StrategyFastRecall},
		{3, 5, ports.StrategyBalanced},
		{4, 4, ports.StrategyBalanced},
		{6, 6, ports.StrategyBalanced},
		{7, 1, ports.StrategySlowReasoning},
		{1, 7, ports.StrategySlowReasoning},
		{10, 10, ports.StrategySlowReasoning},
	}
	for _, tc := range cases {
		if got := strategyFor(tc.complexity, tc.ambiguity); got != tc.want {
			t.Errorf("strategyFor(%d,%d) = %s, want %s", tc.complexity, tc.ambiguity, got, tc.want)
		}
		// Same inputs, same answer: the lookup carries no hidden state.
		if again := strategyFor(tc.complexity, tc.ambiguity); again != tc.want {
			t.Errorf("strategyFor(%d,%d) not deterministic", tc.complexity, tc.ambiguity)
		}
	}
}
