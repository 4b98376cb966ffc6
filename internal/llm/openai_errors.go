package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	conderr "conductor/internal/errors"
)

// wrapRequestError classifies transport-level failures from the HTTP round
// trip. Context cancellation passes through untouched so callers can tell a
// caller-initiated abort apart from a provider fault.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return conderr.NewTransientError(err, "LLM request timed out. Retrying with backoff.")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return conderr.NewTransientError(err, "LLM request timed out. Retrying with backoff.")
	}
	return conderr.NewTransientError(err, "LLM request failed to reach the provider. Retrying.")
}

// mapHTTPError converts a non-2xx provider response into the
// transient/permanent taxonomy so the retry layer can decide without string
// matching.
func mapHTTPError(statusCode int, body []byte, header http.Header) error {
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = http.StatusText(statusCode)
	}
	baseErr := fmt.Errorf("LLM API error (status %d): %s", statusCode, message)

	switch {
	case statusCode == http.StatusUnauthorized:
		return &conderr.PermanentError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    "Authentication failed. Please check your API key configuration.",
		}
	case statusCode == http.StatusForbidden:
		return &conderr.PermanentError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    "Permission denied. You don't have access to this model or resource.",
		}
	case statusCode == http.StatusNotFound:
		return &conderr.PermanentError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    "Model or endpoint not found. Please verify the model name.",
		}
	case statusCode == http.StatusTooManyRequests:
		return &conderr.TransientError{
			Err:        baseErr,
			StatusCode: statusCode,
			RetryAfter: parseRetryAfter(header.Get("Retry-After")),
			Message:    "API rate limit reached. Retrying with exponential backoff.",
		}
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return &conderr.TransientError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    "Provider timeout. Retrying request.",
		}
	case statusCode >= 500:
		return &conderr.TransientError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    "Provider error. The service is temporarily unavailable and the call will be retried.",
		}
	case statusCode >= 400:
		return &conderr.PermanentError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Request rejected by provider (status %d). Please check the parameters.", statusCode),
		}
	default:
		return &conderr.TransientError{
			Err:        baseErr,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("Unexpected provider status %d. Retrying request.", statusCode),
		}
	}
}

// parseRetryAfter reads a Retry-After header value as integer seconds or an
// HTTP date. Invalid or elapsed values yield 0.
func parseRetryAfter(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return seconds
		}
		return 0
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return int(wait.Seconds())
		}
	}
	return 0
}
