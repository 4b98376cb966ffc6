package ports

import "time"

// Pipeline stage names carried on events and spans.
const (
	StageRetrieve = "retrieve"
	StagePlan     = "plan"
	StageAssemble = "assemble"
	StageEnforce  = "enforce"
	StageInvoke   = "invoke"
	StageRefine   = "refine"
	StageFormat   = "format"
)

// PipelineEvent is a domain event emitted as a request moves through stages.
type PipelineEvent struct {
	Stage          string         `json:"stage"`
	ConversationID string         `json:"conversation_id"`
	RequestID      string         `json:"request_id"`
	At             time.Time      `json:"at"`
	Detail         map[string]any `json:"detail,omitempty"`
}

// EventListener consumes pipeline events (used by streaming/UI layers).
type EventListener interface {
	OnEvent(event PipelineEvent)
}
