// Package observability wires process-wide trace and metric export. Span
// creation lives with the packages that do the work (pipeline, llm); this
// package only installs the global providers and the scrape endpoint.
package observability

import (
	"context"
	"errors"
	"time"

	"conductor/internal/config"
	"conductor/internal/logging"
)

const shutdownGrace = 5 * time.Second

// TracingFromApp projects the application configuration onto tracing.
func TracingFromApp(cfg *config.Config) TracingConfig {
	return TracingConfig{
		Exporter:    cfg.TraceExporter,
		Endpoint:    cfg.TraceEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	}
}

// MetricsFromApp projects the application configuration onto metrics.
// A zero metrics port disables export entirely.
func MetricsFromApp(cfg *config.Config) MetricsConfig {
	return MetricsConfig{
		Enabled: cfg.MetricsPort > 0,
		Port:    cfg.MetricsPort,
	}
}

// Observability bundles the installed providers for shutdown.
type Observability struct {
	Tracing *TracerProvider
	Metrics *MetricsCollector
}

// Setup installs tracing and metrics from the application configuration.
func Setup(cfg *config.Config, logger logging.Logger) (*Observability, error) {
	tracing, err := NewTracerProvider(TracingFromApp(cfg), logger)
	if err != nil {
		return nil, err
	}
	metrics, err := NewMetricsCollector(MetricsFromApp(cfg), logger)
	if err != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = tracing.Shutdown(sctx)
		return nil, err
	}
	return &Observability{Tracing: tracing, Metrics: metrics}, nil
}

// Shutdown flushes and stops both providers.
func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil {
		return nil
	}
	return errors.Join(o.Tracing.Shutdown(ctx), o.Metrics.Shutdown(ctx))
}
