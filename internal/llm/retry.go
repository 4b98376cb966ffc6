package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	conderr "conductor/internal/errors"
	"conductor/internal/logging"
	"conductor/internal/ports"
)

// retryClient wraps an LLM client with retry logic and a circuit breaker.
// Errors keep their transient/permanent/degraded classification so callers
// decide with errors.As rather than string matching.
type retryClient struct {
	underlying     ports.LLMClient
	retryConfig    conderr.RetryConfig
	circuitBreaker *conderr.CircuitBreaker
	logger         logging.Logger
}

var _ ports.LLMClient = (*retryClient)(nil)

// NewRetryClient wraps an LLM client with retry and circuit breaker logic.
func NewRetryClient(client ports.LLMClient, retryConfig conderr.RetryConfig, circuitBreaker *conderr.CircuitBreaker) ports.LLMClient {
	return &retryClient{
		underlying:     client,
		retryConfig:    retryConfig,
		circuitBreaker: circuitBreaker,
		logger:         logging.NewComponentLogger("llm-retry"),
	}
}

// WrapWithRetry wraps an existing LLM client with retry logic and a circuit
// breaker named after its model.
func WrapWithRetry(client ports.LLMClient, retryConfig conderr.RetryConfig, circuitBreakerConfig conderr.CircuitBreakerConfig) ports.LLMClient {
	circuitBreaker := conderr.NewCircuitBreaker(
		fmt.Sprintf("llm-%s", client.Model()),
		circuitBreakerConfig,
	)
	return NewRetryClient(client, retryConfig, circuitBreaker)
}

func (c *retryClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	started := time.Now()

	resp, err := conderr.RetryWithResultAndLog(ctx, c.retryConfig, func(ctx context.Context) (*ports.CompletionResponse, error) {
		// The breaker sits inside the retry loop so an open circuit fails the
		// remaining attempts fast.
		return conderr.ExecuteFunc(c.circuitBreaker, ctx, func(ctx context.Context) (*ports.CompletionResponse, error) {
			response, callErr := c.underlying.Complete(ctx, req)
			if callErr != nil {
				return nil, classifyLLMError(callErr)
			}
			return response, nil
		})
	}, c.logger)

	duration := time.Since(started)

	if err != nil {
		c.logger.Warn("LLM request failed after %v: %s", duration.Round(time.Millisecond), conderr.FormatForLLM(err))
		return nil, err
	}

	if duration > 5*time.Second {
		c.logger.Debug("LLM request succeeded after %v", duration)
	}

	return resp, nil
}

func (c *retryClient) Model() string {
	return c.underlying.Model()
}

// classifyLLMError assigns a retry class to provider errors. Errors already
// carrying a classification pass through unchanged; plain errors from custom
// invokers fall back to status and message heuristics.
func classifyLLMError(err error) error {
	if err == nil {
		return nil
	}
	if conderr.IsDegraded(err) {
		return err
	}

	var transientErr *conderr.TransientError
	var permanentErr *conderr.PermanentError
	if errors.As(err, &transientErr) || errors.As(err, &permanentErr) {
		return err
	}

	lowerErr := strings.ToLower(err.Error())

	// Rate limit errors (429)
	if strings.Contains(lowerErr, "429") || strings.Contains(lowerErr, "rate limit") {
		return conderr.NewTransientError(err, "API rate limit reached. Retrying with exponential backoff.")
	}

	// Server errors (500, 502, 503, 504)
	if strings.Contains(lowerErr, "500") || strings.Contains(lowerErr, "internal server error") {
		return conderr.NewTransientError(err, "Server error (500). Retrying request.")
	}
	if strings.Contains(lowerErr, "502") || strings.Contains(lowerErr, "bad gateway") {
		return conderr.NewTransientError(err, "Bad gateway (502). Retrying request.")
	}
	if strings.Contains(lowerErr, "503") || strings.Contains(lowerErr, "service unavailable") {
		return conderr.NewTransientError(err, "Service unavailable (503). Retrying request.")
	}
	if strings.Contains(lowerErr, "504") || strings.Contains(lowerErr, "gateway timeout") {
		return conderr.NewTransientError(err, "Gateway timeout (504). Retrying request.")
	}

	// Network errors
	if strings.Contains(lowerErr, "connection refused") {
		return conderr.NewTransientError(err, conderr.FormatForLLM(err))
	}
	if strings.Contains(lowerErr, "timeout") || strings.Contains(lowerErr, "deadline exceeded") {
		return conderr.NewTransientError(err, "Request timed out. Retrying with backoff.")
	}
	if strings.Contains(lowerErr, "connection reset") || strings.Contains(lowerErr, "broken pipe") {
		return conderr.NewTransientError(err, "Connection reset. Retrying request.")
	}

	// Permanent errors
	if strings.Contains(lowerErr, "401") || strings.Contains(lowerErr, "unauthorized") {
		return conderr.NewPermanentError(err, "Authentication failed. Please check your API key configuration.")
	}
	if strings.Contains(lowerErr, "403") || strings.Contains(lowerErr, "forbidden") {
		return conderr.NewPermanentError(err, "Permission denied. You don't have access to this model or resource.")
	}
	if strings.Contains(lowerErr, "404") || strings.Contains(lowerErr, "not found") {
		return conderr.NewPermanentError(err, "Model or endpoint not found. Please verify the model name.")
	}
	if strings.Contains(lowerErr, "400") || strings.Contains(lowerErr, "bad request") {
		return conderr.NewPermanentError(err, "Invalid request. Please check the parameters.")
	}

	// Default: return as-is (will be classified by IsTransient)
	return err
}
