package ports

import "time"

// Intent is the coarse classification of what a query asks for.
type Intent string

const (
	IntentCalculation    Intent = "CALCULATION"
	IntentDebug          Intent = "DEBUG"
	IntentRefactor       Intent = "REFACTOR"
	IntentImplementation Intent = "IMPLEMENTATION"
	IntentExplanation    Intent = "EXPLANATION"
	IntentTesting        Intent = "TESTING"
	IntentGeneral        Intent = "GENERAL"
)

// Strategy selects how much reasoning effort the model call should spend.
// It is derived from (complexity, ambiguity) alone.
type Strategy string

const (
	StrategyFastRecall    Strategy = "FAST_RECALL"
	StrategyBalanced      Strategy = "BALANCED"
	StrategySlowReasoning Strategy = "SLOW_REASONING"
)

// FocusArea tags the part of a codebase or problem space a query centers on.
type FocusArea string

const (
	FocusCode          FocusArea = "code"
	FocusArchitecture  FocusArea = "architecture"
	FocusDocumentation FocusArea = "documentation"
	FocusMath          FocusArea = "math"
	FocusGeneral       FocusArea = "general"
)

// ExecutionPlan is the single authoritative decision record for one request.
// The planner creates it once; downstream stages read it and never mutate it.
type ExecutionPlan struct {
	Intent          Intent      `json:"intent"`
	Complexity      int         `json:"complexity"` // 1-10
	Ambiguity       int         `json:"ambiguity"`  // 1-10
	FocusArea       FocusArea   `json:"focus_area"`
	IgnoreAreas     []FocusArea `json:"ignore_areas,omitempty"`
	Strategy        Strategy    `json:"strategy"`
	ApprovedTools   []string    `json:"approved_tools"`   // unique, order-irrelevant
	SelectedModules []string    `json:"selected_modules"` // priority order, core first
	Confidence      float64     `json:"confidence"`       // 0-1
	Degraded        bool        `json:"degraded,omitempty"`  // keyword fallback was used
	FastPath        bool        `json:"fast_path,omitempty"` // trivial-grammar short circuit
	CreatedAt       time.Time   `json:"created_at"`
}

// Approves reports whether the plan allows the named tool.
func (p ExecutionPlan) Approves(tool string) bool {
	for _, t := range p.ApprovedTools {
		if t == tool {
			return true
		}
	}
	return false
}
