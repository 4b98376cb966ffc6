package ports

import "time"

// ConversationState is the per-conversation record the supervisor keeps.
// Values returned to callers are copies; the supervisor owns the originals.
type ConversationState struct {
	ConversationID string               `json:"conversation_id"`
	ModuleScores   map[string][]float64 `json:"module_scores"` // moduleID -> recent final ratings
	RecentVerdicts []Verdict            `json:"recent_verdicts"`
	LastStrategy   Strategy             `json:"last_strategy"`
	LastIntent     Intent               `json:"last_intent"`
	Requests       int64                `json:"requests"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// ModulePerformance is the append-only running statistic per module.
// Advisory only; used for routing hints and dashboards, never correctness.
type ModulePerformance struct {
	ModuleID    string  `json:"module_id"`
	Invocations int64   `json:"invocations"`
	MeanQuality float64 `json:"mean_quality"`
}

// Supervisor tracks process-wide per-conversation and per-module state.
// Implementations must serialize access per conversation id and must never
// surface a write failure to the request path.
type Supervisor interface {
	RecordPlan(conversationID string, plan ExecutionPlan)
	RecordEvaluation(conversationID, moduleID string, eval QualityEvaluation)
	Conversation(conversationID string) (ConversationState, bool)
	ModuleStats() []ModulePerformance
}
