// Package llm ships the reference model-invocation clients behind
// ports.LLMClient: an OpenAI-compatible chat completions client wrapped with
// retry and circuit-breaker protection, and a deterministic mock for offline
// operation. Tool call arguments are normalized through jsonrepair before the
// policy layer reads them.
package llm

import (
	"fmt"

	"conductor/internal/config"
	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// New builds the model-invocation client selected by cfg.LLMProvider.
func New(cfg *config.Config, logger logging.Logger) (ports.LLMClient, error) {
	logger = logging.OrNop(logger)

	switch cfg.LLMProvider {
	case "mock":
		return NewMock(cfg.LLMModel), nil
	case "", "openai":
		client := NewOpenAIClient(Config{
			Model:   cfg.LLMModel,
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.InvokeTimeout(),
		}, logger)
		return WrapWithRetry(client, conderr.DefaultRetryConfig(), conderr.DefaultCircuitBreakerConfig()), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}
