package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"conductor/internal/logging"
	"conductor/internal/ports"
)

const (
	traceScopeModel = "conductor.llm"
	traceSpanModel  = "conductor.llm.complete"

	attrModelName   = "conductor.llm.model"
	attrModelTokens = "conductor.llm.total_tokens"
	attrModelStop   = "conductor.llm.stop_reason"
)

// InstrumentedClient wraps a model client with spans, meter points and logs.
// It implements ports.LLMClient and is transparent to callers.
type InstrumentedClient struct {
	inner   ports.LLMClient
	metrics *MetricsCollector
	logger  logging.Logger
}

// NewInstrumentedClient wraps inner. A nil collector disables metering but
// keeps spans and logs.
func NewInstrumentedClient(inner ports.LLMClient, metrics *MetricsCollector, logger logging.Logger) *InstrumentedClient {
	return &InstrumentedClient{
		inner:   inner,
		metrics: metrics,
		logger:  logging.OrNop(logger),
	}
}

// Complete delegates to the wrapped client, recording one span and one
// metered invocation per call.
func (c *InstrumentedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	ctx, span := otel.Tracer(traceScopeModel).Start(ctx, traceSpanModel,
		trace.WithAttributes(attribute.String(attrModelName, c.inner.Model())),
	)
	defer span.End()

	c.logger.Debug("Model call: model=%s messages=%d tools=%d", c.inner.Model(), len(req.Messages), len(req.Tools))
	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	latency := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.metrics.RecordModelInvocation(ctx, c.inner.Model(), "error", latency, 0, 0)
		c.logger.Warn("Model call failed after %s: %v", latency.Round(time.Millisecond), err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int(attrModelTokens, resp.Usage.TotalTokens),
		attribute.String(attrModelStop, resp.StopReason),
	)
	span.SetStatus(codes.Ok, "")
	c.metrics.RecordModelInvocation(ctx, c.inner.Model(), "success", latency, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	for _, call := range resp.ToolCalls {
		c.metrics.RecordToolRequest(ctx, call.Name)
	}
	c.logger.Debug("Model call done: tokens=%d tool_calls=%d latency=%s",
		resp.Usage.TotalTokens, len(resp.ToolCalls), latency.Round(time.Millisecond))
	return resp, nil
}

// Model reports the wrapped client's model identifier.
func (c *InstrumentedClient) Model() string {
	return c.inner.Model()
}
