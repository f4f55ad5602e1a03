package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/story-coach/internal/services"
)

type HealthResponse struct {
	Status     string                 `json:"status"`
	Timestamp  time.Time              `json:"timestamp"`
	Service    string                 `json:"service"`
	Components map[string]interface{} `json:"components"`
}

type HealthHandler struct {
	redis    services.HealthChecker
	provider string
	model    string
	logger   *slog.Logger
}

// NewHealthHandler reports on the LLM backend and, when redis is non-nil,
// on the event bus.
func NewHealthHandler(redis services.HealthChecker, provider, model string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		redis:    redis,
		provider: provider,
		model:    model,
		logger:   logger,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	h.logger.Debug("Health check requested",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	components := make(map[string]interface{})
	overallStatus := "healthy"

	llm := map[string]interface{}{
		"status":   "healthy",
		"provider": h.provider,
		"model":    h.model,
	}
	if h.provider == "" {
		llm["status"] = "unconfigured"
		overallStatus = "degraded"
	}
	components["llm"] = llm

	if h.redis == nil {
		components["redis"] = "disabled"
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.redis.Ping(ctx); err != nil {
			h.logger.Warn("Redis health check failed", "error", err)
			components["redis"] = "unhealthy"
			overallStatus = "degraded"
		} else {
			components["redis"] = "healthy"
		}
	}

	response := HealthResponse{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Service:    "story-coach",
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, statusCode, response)
}
