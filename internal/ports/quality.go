package ports

// Verdict buckets a final rating for human consumption.
type Verdict string

const (
	VerdictExcellent  Verdict = "EXCELLENT"
	VerdictGood       Verdict = "GOOD"
	VerdictAcceptable Verdict = "ACCEPTABLE"
	VerdictPoor       Verdict = "POOR"

	// VerdictSkipped marks the synthetic evaluation attached when refinement
	// was skipped for a trivial request.
	VerdictSkipped Verdict = "SKIPPED"
)

// RefineOutcome is the terminal state of one refinement run.
type RefineOutcome string

const (
	RefineAccepted  RefineOutcome = "ACCEPTED"
	RefineExhausted RefineOutcome = "EXHAUSTED"
	RefineSkipped   RefineOutcome = "SKIPPED"
)

// QualityEvaluation scores one draft. Sub-scores live in [0,1]; higher is
// better except HallucinationRisk where higher is worse. FinalRating is 0-5.
type QualityEvaluation struct {
	Clarity           float64  `json:"clarity"`
	Relevance         float64  `json:"relevance"`
	Helpfulness       float64  `json:"helpfulness"`
	Consistency       float64  `json:"consistency"`
	HallucinationRisk float64  `json:"hallucination_risk"`
	CodeValidity      *float64 `json:"code_validity,omitempty"` // nil when the draft has no code
	TokenCount        int      `json:"token_count"`
	FinalRating       float64  `json:"final_rating"` // 0-5
	Verdict           Verdict  `json:"verdict"`
	Attempt           int      `json:"attempt"` // 1-based refinement attempt
	Skipped           bool     `json:"skipped,omitempty"`
}
