// Command conductor-server runs the headless HTTP server: the query API,
// the websocket event stream, and the metrics endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"conductor/internal/app"
	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/server"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	logging.SetConsoleEcho(true)
	logger := logging.NewComponentLogger("main")
	defer func() { _ = logging.Close() }()

	cfg, err := config.Load(os.Getenv("CONDUCTOR_CONFIG"))
	if err != nil {
		logger.Error("Load config: %v", err)
		os.Exit(1)
	}
	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))

	logger.Info("=== Server Configuration ===")
	logger.Info("Provider: %s model=%s", cfg.LLMProvider, cfg.LLMModel)
	logger.Info("API key: %s", maskKey(cfg.APIKey))
	logger.Info("Listen: %s:%d metrics=%d", cfg.ServerHost, cfg.ServerPort, cfg.MetricsPort)
	logger.Info("Tracing: %s", cfg.TraceExporter)
	logger.Info("============================")

	application, err := app.Build(cfg, app.Options{})
	if err != nil {
		logger.Error("Build application: %v", err)
		os.Exit(1)
	}

	srv, err := server.New(withVersion(server.FromApp(cfg)), application.Pipeline,
		application.Supervisor, application.Registry, logging.NewComponentLogger("server"))
	if err != nil {
		logger.Error("Build server: %v", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed: %v", err)
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("Received %s, shutting down", sig)
	}

	if err := srv.Stop(); err != nil {
		logger.Error("Stop server: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		logger.Error("Shutdown exporters: %v", err)
	}
	logger.Info("Server stopped")
}

func withVersion(cfg server.Config) server.Config {
	cfg.Version = version
	return cfg
}

// maskKey keeps only the key's tail so logs stay greppable but safe.
func maskKey(key string) string {
	if key == "" {
		return "(unset)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
