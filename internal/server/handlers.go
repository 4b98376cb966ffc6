package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	conderr "conductor/internal/errors"
	"conductor/internal/pipeline"
	"conductor/internal/policy"
	"conductor/internal/ports"
	"conductor/internal/registry"
)

// apiResponse is the envelope every JSON endpoint returns.
type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type queryResponse struct {
	Answer         string                  `json:"answer"`
	RequestID      string                  `json:"request_id"`
	ConversationID string                  `json:"conversation_id,omitempty"`
	Plan           ports.ExecutionPlan     `json:"plan"`
	UsedTools      []string                `json:"used_tools"`
	UsedModules    []string                `json:"used_modules"`
	Evaluation     ports.QualityEvaluation `json:"evaluation"`
	Outcome        ports.RefineOutcome     `json:"outcome"`
	Violations     []policy.Violation      `json:"violations,omitempty"`
	Degraded       bool                    `json:"degraded,omitempty"`
	DurationMillis int64                   `json:"duration_ms"`
}

type statsResponse struct {
	Modules []ports.ModulePerformance `json:"modules"`
	Count   int                       `json:"count"`
}

type catalogResponse struct {
	Tools   []registry.ToolInfo   `json:"tools"`
	Modules []registry.ModuleInfo `json:"modules"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: healthResponse{
			Status:    "ok",
			Version:   s.version,
			Timestamp: time.Now(),
			Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		},
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req pipeline.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apiResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, apiResponse{Error: "query is required"})
		return
	}

	resp, err := s.pipe.Execute(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case conderr.IsModelInvocation(err):
			status = http.StatusBadGateway
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Error("Query failed: %v", err)
		c.JSON(status, apiResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: queryResponse{
			Answer:         resp.Answer,
			RequestID:      resp.RequestID,
			ConversationID: req.ConversationID,
			Plan:           resp.Plan,
			UsedTools:      resp.UsedTools,
			UsedModules:    resp.UsedModules,
			Evaluation:     resp.Evaluation,
			Outcome:        resp.Outcome,
			Violations:     resp.Violations,
			Degraded:       resp.Degraded,
			DurationMillis: resp.Duration.Milliseconds(),
		},
	})
}

func (s *Server) handleStats(c *gin.Context) {
	stats := s.supervisor.ModuleStats()
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data:    statsResponse{Modules: stats, Count: len(stats)},
	})
}

func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, apiResponse{
		Success: true,
		Data: catalogResponse{
			Tools:   s.registry.Tools(),
			Modules: s.registry.Modules(),
		},
	})
}
