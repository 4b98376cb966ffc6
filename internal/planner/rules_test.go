package planner

import (
	"testing"

	"conductor/internal/ports"
)

func TestClassifyIntent_OrderedRules(t *testing.T) {
	cases := []struct {
		query   string
		want    ports.Intent
		matched bool
	}{
		{"calculate the sum of squares for this series", ports.IntentCalculation, true},
		{"why does this panic on startup", ports.IntentDebug, true},
		{"the build fails with a weird error", ports.IntentDebug, true},
		{"refactor the test helpers into a shared package", ports.IntentRefactor, true},
		{"add a test for the eviction path", ports.IntentTesting, true},
		{"improve coverage of the parser", ports.IntentTesting, true},
		{"implement a retry budget for the client", ports.IntentImplementation, true},
		{"explain how the scheduler picks a worker", ports.IntentExplanation, true},
		{"difference between the two cache layers", ports.IntentExplanation, true},
		{"good morning", ports.IntentGeneral, false},
		{"", ports.IntentGeneral, false},
	}
	for _, tc := range cases {
		got, matched := classifyIntent(tc.query)
		if got != tc.want || matched != tc.matched {
			t.Errorf("classifyIntent(%q) = %s/%v, want %s/%v", tc.query, got, matched, tc.want, tc.matched)
		}
	}
}

func TestClassifyIntent_WordBoundaries(t *testing.T) {
	// "fix" must not fire inside "prefix"; phrase keywords still match as substrings.
	if intent, matched := classifyIntent("strip the prefix from module names"); matched {
		t.Fatalf("expected no rule match, got %s", intent)
	}
	if intent, _ := classifyIntent("it is not working since the upgrade"); intent != ports.IntentDebug {
		t.Fatalf("phrase keyword missed: got %s", intent)
	}
}

func TestDetectFastPath_Arithmetic(t *testing.T) {
	arithmetic := []string{
		"what is 2+4?",
		"What is 2 + 4",
		"2+4",
		"  (12 * 3) / 4 ",
		"calculate 100/7",
		"how much is 15 % 4",
		"compute 2^10 =",
	}
	for _, q := range arithmetic {
		if got := detectFastPath(q); got != fastPathArithmetic {
			t.Errorf("detectFastPath(%q) = %v, want arithmetic", q, got)
		}
	}

	// No operator, free text after the expression, or a question about code
	// rather than a sum: all take the full pipeline.
	notArithmetic := []string{
		"what is a monad?",
		"what is 42",
		"calculate 12% of my salary",
		"why does 2+2 overflow in int8?",
		"",
	}
	for _, q := range notArithmetic {
		if got := detectFastPath(q); got == fastPathArithmetic {
			t.Errorf("detectFastPath(%q) wrongly took the arithmetic fast path", q)
		}
	}
}

func TestDetectFastPath_DateTime(t *testing.T) {
	for _, q := range []string{"what time is it?", "Today's date", "current time please", "what day is it"} {
		if got := detectFastPath(q); got != fastPathDateTime {
			t.Errorf("detectFastPath(%q) = %v, want datetime", q, got)
		}
	}
	// Longer prose mentioning time must not short-circuit.
	long := "walk me through how the scheduler decides the current time zone for recurring jobs across regions"
	if got := detectFastPath(long); got != fastPathNone {
		t.Errorf("detectFastPath(long prose) = %v, want none", got)
	}
}

func TestCategoriesFor_GeneralAllowsEverything(t *testing.T) {
	if got := len(categoriesFor(ports.IntentGeneral)); got != len(generalCategories) {
		t.Fatalf("GENERAL should allow all %d categories, got %d", len(generalCategories), got)
	}
	if got := categoriesFor(ports.IntentRefactor); len(got) == 0 {
		t.Fatal("REFACTOR must constrain to a non-empty category set")
	}
}
