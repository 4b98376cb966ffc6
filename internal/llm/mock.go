package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"conductor/internal/ports"
)

// Mock implements ports.LLMClient without network access. The zero behavior
// answers every request with a deterministic canned completion; tests script
// providers by setting CompleteFunc.
type Mock struct {
	ModelName    string
	CompleteFunc func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error)

	mu    sync.Mutex
	calls int
}

var _ ports.LLMClient = (*Mock)(nil)

// NewMock returns a mock client reporting the given model name.
func NewMock(model string) *Mock {
	if model == "" {
		model = "mock"
	}
	return &Mock{ModelName: model}
}

func (m *Mock) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := cannedCompletion(lastUserMessage(req.Messages))
	prompt := 0
	for _, msg := range req.Messages {
		prompt += estimateTokens(msg.Content)
	}
	completion := estimateTokens(content)

	return &ports.CompletionResponse{
		Content:    content,
		StopReason: "stop",
		Usage: ports.TokenUsage{
			PromptTokens:     prompt,
			CompletionTokens: completion,
			TotalTokens:      prompt + completion,
		},
	}, nil
}

func (m *Mock) Model() string {
	if m.ModelName == "" {
		return "mock"
	}
	return m.ModelName
}

// Calls reports how many times Complete has been invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func cannedCompletion(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Mock completion: no user message provided."
	}
	return fmt.Sprintf("Mock completion for: %s", query)
}

func lastUserMessage(msgs []ports.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.EqualFold(msgs[i].Role, ports.RoleUser) {
			return msgs[i].Content
		}
	}
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}

// estimateTokens is the rough chars/4 heuristic; the mock never touches a
// real tokenizer.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}
