package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"salescycle/internal/infrastructure/storage/postgres"
)

// Pinger is an optional dependency checked by readiness (Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool    *postgres.Pool
	version string
	checks  map[string]Pinger
}

// NewHealthHandler creates a health handler. checks may be nil.
func NewHealthHandler(pool *postgres.Pool, version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{pool: pool, version: version, checks: checks}
}

// Live handles the liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles the readiness probe.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()
	status := http.StatusOK
	results := map[string]string{"database": "healthy"}

	if err := h.pool.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		results["database"] = "unhealthy: " + err.Error()
	}
	for name, p := range h.checks {
		results[name] = "healthy"
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = "unhealthy: " + err.Error()
		}
	}

	state := "ok"
	if status != http.StatusOK {
		state = "error"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// Info returns application and pool information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.pool.Stat()

	c.JSON(http.StatusOK, gin.H{
		"app":     postgres.ApplicationName,
		"version": h.version,
		"database": map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		},
	})
}
