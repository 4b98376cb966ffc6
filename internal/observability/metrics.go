package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"conductor/internal/async"
	"conductor/internal/logging"
)

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled bool
	Port    int // scrape endpoint port
}

// MetricsCollector meters the model boundary and serves the Prometheus
// scrape endpoint. The endpoint exposes the default registry, so the
// pipeline's native stage collectors come out of the same listener.
type MetricsCollector struct {
	provider *sdkmetric.MeterProvider
	server   *http.Server
	logger   logging.Logger

	modelRequests metric.Int64Counter
	inputTokens   metric.Int64Counter
	outputTokens  metric.Int64Counter
	modelLatency  metric.Float64Histogram
	toolRequests  metric.Int64Counter
}

// NewMetricsCollector builds the meter instruments and starts the scrape
// listener. A disabled config yields a collector whose record methods no-op.
func NewMetricsCollector(cfg MetricsConfig, logger logging.Logger) (*MetricsCollector, error) {
	logger = logging.OrNop(logger)
	if !cfg.Enabled {
		logger.Debug("Metrics disabled")
		return &MetricsCollector{logger: logger}, nil
	}

	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	c := &MetricsCollector{provider: provider, logger: logger}

	c.modelRequests, err = meter.Int64Counter(
		"conductor.model.requests",
		metric.WithDescription("Model invocations by model and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model request counter: %w", err)
	}
	c.inputTokens, err = meter.Int64Counter(
		"conductor.model.tokens.input",
		metric.WithDescription("Prompt tokens sent to the model"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create input token counter: %w", err)
	}
	c.outputTokens, err = meter.Int64Counter(
		"conductor.model.tokens.output",
		metric.WithDescription("Completion tokens returned by the model"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create output token counter: %w", err)
	}
	c.modelLatency, err = meter.Float64Histogram(
		"conductor.model.latency",
		metric.WithDescription("Model invocation latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model latency histogram: %w", err)
	}
	c.toolRequests, err = meter.Int64Counter(
		"conductor.model.tool_requests",
		metric.WithDescription("Tool calls requested by the model, by tool"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tool request counter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	async.Go(logger, "metrics-listener", func() {
		if err := c.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics listener failed: %v", err)
		}
	})
	logger.Info("Metrics endpoint on :%d/metrics", cfg.Port)

	return c, nil
}

// RecordModelInvocation meters one model call. Safe on a disabled collector.
func (c *MetricsCollector) RecordModelInvocation(ctx context.Context, model, status string, latency time.Duration, inputTokens, outputTokens int) {
	if c == nil || c.modelRequests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("status", status),
	)
	c.modelRequests.Add(ctx, 1, attrs)
	c.modelLatency.Record(ctx, latency.Seconds(), attrs)
	modelOnly := metric.WithAttributes(attribute.String("model", model))
	if inputTokens > 0 {
		c.inputTokens.Add(ctx, int64(inputTokens), modelOnly)
	}
	if outputTokens > 0 {
		c.outputTokens.Add(ctx, int64(outputTokens), modelOnly)
	}
}

// RecordToolRequest meters one tool call requested in a model response.
func (c *MetricsCollector) RecordToolRequest(ctx context.Context, tool string) {
	if c == nil || c.toolRequests == nil {
		return
	}
	c.toolRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", tool)))
}

// Shutdown stops the scrape listener and flushes the meter provider.
func (c *MetricsCollector) Shutdown(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop metrics listener: %w", err))
		}
	}
	if c.provider != nil {
		if err := c.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}
