package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/flora/backend/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthHandler reports the state of the database and the cache
type HealthHandler struct {
	checks  map[string]HealthCheck
	version string
	started time.Time
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler running checks by name
func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		version: version,
		started: time.Now(),
		timeout: 3 * time.Second,
	}
}

// Health answers 200 when every check passes, else 503.
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	components := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.String("component", name), zap.Error(err))
			components[name] = "error"
			status = http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"version":    h.version,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"time":       time.Now().Format(time.RFC3339),
		"components": components,
	})
}
