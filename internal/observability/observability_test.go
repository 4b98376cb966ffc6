package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conductor/internal/config"
	"conductor/internal/llm"
	"conductor/internal/ports"
)

func TestFromAppProjections(t *testing.T) {
	cfg := config.Default()
	cfg.TraceExporter = "zipkin"
	cfg.TraceEndpoint = "http://collector:9411/api/v2/spans"
	cfg.TraceSampleRatio = 0.25
	cfg.MetricsPort = 9464

	tc := TracingFromApp(cfg)
	assert.Equal(t, "zipkin", tc.Exporter)
	assert.Equal(t, "http://collector:9411/api/v2/spans", tc.Endpoint)
	assert.Equal(t, 0.25, tc.SampleRatio)

	mc := MetricsFromApp(cfg)
	assert.True(t, mc.Enabled)
	assert.Equal(t, 9464, mc.Port)

	cfg.MetricsPort = 0
	assert.False(t, MetricsFromApp(cfg).Enabled)
}

func TestNewTracerProviderDisabled(t *testing.T) {
	for _, exporter := range []string{"", "none"} {
		tp, err := NewTracerProvider(TracingConfig{Exporter: exporter}, nil)
		require.NoError(t, err)
		require.NotNil(t, tp)
		assert.NoError(t, tp.Shutdown(context.Background()))
	}
}

func TestNewTracerProviderUnknownExporter(t *testing.T) {
	_, err := NewTracerProvider(TracingConfig{Exporter: "statsd"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported trace exporter")
}

func TestNewTracerProviderBuildsConfiguredExporters(t *testing.T) {
	// Exporter construction is lazy, so no collector needs to be running.
	for _, exporter := range []string{"otlp", "zipkin", "jaeger"} {
		tp, err := NewTracerProvider(TracingConfig{Exporter: exporter, SampleRatio: 0.5}, nil)
		require.NoError(t, err, "exporter %s", exporter)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		assert.NoError(t, tp.Shutdown(ctx), "exporter %s", exporter)
		cancel()
	}
}

func TestMetricsCollectorDisabledIsInert(t *testing.T) {
	c, err := NewMetricsCollector(MetricsConfig{}, nil)
	require.NoError(t, err)

	c.RecordModelInvocation(context.Background(), "test-model", "success", 50*time.Millisecond, 10, 20)
	c.RecordToolRequest(context.Background(), "calculator")
	assert.NoError(t, c.Shutdown(context.Background()))

	var nilCollector *MetricsCollector
	nilCollector.RecordModelInvocation(context.Background(), "test-model", "error", 0, 0, 0)
	nilCollector.RecordToolRequest(context.Background(), "calculator")
	assert.NoError(t, nilCollector.Shutdown(context.Background()))
}

func TestMetricsCollectorEnabledRecords(t *testing.T) {
	// Port zero binds an ephemeral listener.
	c, err := NewMetricsCollector(MetricsConfig{Enabled: true, Port: 0}, nil)
	require.NoError(t, err)

	c.RecordModelInvocation(context.Background(), "test-model", "success", 120*time.Millisecond, 40, 15)
	c.RecordModelInvocation(context.Background(), "test-model", "error", 5*time.Millisecond, 0, 0)
	c.RecordToolRequest(context.Background(), "code_search")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, c.Shutdown(ctx))
}

func TestInstrumentedClientPassesResponseThrough(t *testing.T) {
	mock := &llm.Mock{
		ModelName: "test-model",
		CompleteFunc: func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			return &ports.CompletionResponse{
				Content:    "All good.",
				StopReason: "stop",
				ToolCalls:  []ports.ToolCall{{Name: "calculator"}},
				Usage:      ports.TokenUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
			}, nil
		},
	}
	client := NewInstrumentedClient(mock, nil, nil)
	assert.Equal(t, "test-model", client.Model())

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{{Role: ports.RoleUser, Content: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "All good.", resp.Content)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.Equal(t, 1, mock.Calls())
}

func TestInstrumentedClientPropagatesError(t *testing.T) {
	boom := errors.New("provider unreachable")
	mock := &llm.Mock{
		ModelName: "test-model",
		CompleteFunc: func(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
			return nil, boom
		},
	}
	client := NewInstrumentedClient(mock, nil, nil)

	_, err := client.Complete(context.Background(), ports.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
