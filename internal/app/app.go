// Package app is the composition root: it assembles the full request stack
// from one configuration so the binaries share identical wiring.
package app

import (
	"context"
	"fmt"

	"conductor/internal/assemble"
	"conductor/internal/config"
	"conductor/internal/index"
	"conductor/internal/llm"
	"conductor/internal/logging"
	"conductor/internal/observability"
	"conductor/internal/pipeline"
	"conductor/internal/planner"
	"conductor/internal/policy"
	"conductor/internal/ports"
	"conductor/internal/refine"
	"conductor/internal/registry"
	"conductor/internal/retrieval"
	"conductor/internal/style"
	"conductor/internal/supervisor"
)

// App owns everything a binary needs to serve requests.
type App struct {
	Config        *config.Config
	Registry      *registry.Registry
	Index         *index.Index
	Invoker       ports.LLMClient
	Supervisor    *supervisor.Store
	Pipeline      *pipeline.Pipeline
	Observability *observability.Observability
}

// Options tunes assembly for the hosting binary.
type Options struct {
	// Logger replaces the per-component file loggers when set.
	Logger logging.Logger
	// SkipObservability leaves tracing and metrics uninstalled; the CLI
	// uses it so one-shot runs do not bind the metrics port.
	SkipObservability bool
	// SkipSeed leaves the semantic index untouched even when empty.
	SkipSeed bool
}

func (o Options) logger(component string) logging.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.NewComponentLogger(component)
}

// Build assembles the stack. The caller owns cfg; it must already be
// validated (config.Load validates).
func Build(cfg *config.Config, opts Options) (*App, error) {
	reg := registry.Default()

	var obs *observability.Observability
	if !opts.SkipObservability {
		var err error
		obs, err = observability.Setup(cfg, opts.logger("observability"))
		if err != nil {
			return nil, fmt.Errorf("setup observability: %w", err)
		}
	}

	invoker, err := llm.New(cfg, opts.logger("llm"))
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}
	if obs != nil {
		invoker = observability.NewInstrumentedClient(invoker, obs.Metrics, opts.logger("llm"))
	}

	embedder := index.NewEmbedder(cfg, opts.logger("embeddings"))
	ix, err := index.New(index.Config{PersistPath: cfg.IndexPath}, embedder, opts.logger("index"))
	if err != nil {
		return nil, fmt.Errorf("open semantic index: %w", err)
	}
	if !opts.SkipSeed && ix.Count(ports.CollectionTools) == 0 {
		if err := ix.Seed(context.Background(), reg); err != nil {
			return nil, fmt.Errorf("seed semantic index: %w", err)
		}
	}

	store := supervisor.NewStore(supervisor.FromApp(cfg), nil, opts.logger("supervisor"))

	pipe, err := pipeline.New(pipeline.FromApp(cfg), pipeline.Deps{
		Retriever:  retrieval.NewRetriever(retrieval.FromApp(cfg), ix, opts.logger("retrieval")),
		Planner:    planner.NewConductor(planner.FromApp(cfg), reg, nil, opts.logger("planner")),
		Assembler:  assemble.NewAssembler(reg, opts.logger("assemble")),
		Enforcer:   policy.NewEnforcer(opts.logger("policy")),
		Invoker:    invoker,
		Refiner:    refine.NewRefiner(refine.FromApp(cfg), invoker, nil, opts.logger("refine")),
		Formatter:  style.NewFormatter(opts.logger("style")),
		Supervisor: store,
		Registry:   reg,
		Logger:     opts.logger("pipeline"),
	})
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return &App{
		Config:        cfg,
		Registry:      reg,
		Index:         ix,
		Invoker:       invoker,
		Supervisor:    store,
		Pipeline:      pipe,
		Observability: obs,
	}, nil
}

// Shutdown flushes exporters. Safe to call on a partially built app.
func (a *App) Shutdown(ctx context.Context) error {
	if a == nil || a.Observability == nil {
		return nil
	}
	return a.Observability.Shutdown(ctx)
}
