// Package server exposes the pipeline over HTTP: a JSON query endpoint,
// health and catalog introspection, supervisor statistics, and a websocket
// stream of pipeline stage events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"conductor/internal/config"
	"conductor/internal/logging"
	"conductor/internal/pipeline"
	"conductor/internal/ports"
	"conductor/internal/registry"
)

// Config holds the HTTP listener settings.
type Config struct {
	Host         string
	Port         int
	EnableCORS   bool
	Debug        bool
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromApp projects the application configuration onto the server.
func FromApp(cfg *config.Config) Config {
	return Config{
		Host:       cfg.ServerHost,
		Port:       cfg.ServerPort,
		EnableCORS: true,
		Debug:      cfg.Verbose,
	}
}

// Server hosts the pipeline behind a gin engine. It registers itself as a
// pipeline event listener and fans stage events out to websocket clients.
type Server struct {
	pipe       *pipeline.Pipeline
	supervisor ports.Supervisor
	registry   *registry.Registry
	logger     logging.Logger

	engine     *gin.Engine
	httpServer *http.Server
	version    string
	startTime  time.Time

	upgrader websocket.Upgrader
	streams  map[*streamConn]struct{}
	streamMu sync.RWMutex
	wg       sync.WaitGroup
}

// New builds the server and subscribes it to the pipeline's event feed.
func New(cfg Config, pipe *pipeline.Pipeline, supervisor ports.Supervisor, reg *registry.Registry, logger logging.Logger) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("server: pipeline is required")
	}
	if supervisor == nil {
		return nil, errors.New("server: supervisor is required")
	}
	if reg == nil {
		reg = registry.Default()
	}
	logger = logging.OrNop(logger)

	if cfg.Host == "" {
		cfg.Host = config.DefaultServerHost
	}
	if cfg.Port == 0 {
		cfg.Port = config.DefaultServerPort
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Long enough for a full refine loop on a slow provider.
		cfg.WriteTimeout = 5 * time.Minute
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	if cfg.Debug {
		engine.Use(gin.Logger())
	}
	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		pipe:       pipe,
		supervisor: supervisor,
		registry:   reg,
		logger:     logger,
		engine:     engine,
		version:    cfg.Version,
		startTime:  time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from any origin; enforcement
			// belongs to the deployment front door.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		streams: make(map[*streamConn]struct{}),
	}
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	s.setupRoutes()
	pipe.AddListener(s)

	return s, nil
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.POST("/query", s.handleQuery)
	api.GET("/stats", s.handleStats)
	api.GET("/catalog", s.handleCatalog)
	api.GET("/events", s.handleEvents)
}

// Handler exposes the route tree for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Serving on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop drains websocket streams and shuts the listener down gracefully.
func (s *Server) Stop() error {
	s.logger.Info("Stopping server")
	s.closeAllStreams()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.wg.Wait()
	return nil
}
