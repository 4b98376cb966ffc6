package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"conductor/internal/logging"
)

const serviceName = "conductor"

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Exporter    string  // none, otlp, zipkin, jaeger
	Endpoint    string  // exporter-specific; empty uses the local default
	SampleRatio float64 // 0.0 to 1.0
	Version     string
}

// TracerProvider owns the installed global tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider builds the exporter named by the config and installs a
// sampled batching provider globally. Exporter "none" (or empty) leaves the
// default no-op provider in place.
func NewTracerProvider(cfg TracingConfig, logger logging.Logger) (*TracerProvider, error) {
	logger = logging.OrNop(logger)
	if cfg.Exporter == "" || cfg.Exporter == "none" {
		logger.Debug("Tracing disabled")
		return &TracerProvider{}, nil
	}

	if cfg.SampleRatio <= 0 || cfg.SampleRatio > 1 {
		cfg.SampleRatio = 1.0
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		exporter, err = otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "zipkin":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:9411/api/v2/spans"
		}
		exporter, err = zipkin.New(endpoint)
	case "jaeger":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "http://localhost:14268/api/traces"
		}
		exporter, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)
	otel.SetTracerProvider(provider)
	logger.Info("Tracing enabled: exporter=%s sample=%.2f", cfg.Exporter, cfg.SampleRatio)

	return &TracerProvider{provider: provider}, nil
}

// Shutdown flushes and stops the provider. No-op when tracing is disabled.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.provider == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}
