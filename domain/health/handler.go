package health

import (
	"context"
	"net/http"
	"time"

	"github.com/docker/docker/client"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/domain/sandbox"
	"github.com/opslab/opslab/internal/jobs"
)

// Handler handles health check requests
type Handler struct {
	pool    *pgxpool.Pool
	docker  client.APIClient
	queue   *sandbox.SubmissionQueue
	startAt time.Time
}

// NewHandler creates a new health handler
func NewHandler(pool *pgxpool.Pool, docker client.APIClient, queue *sandbox.SubmissionQueue) *Handler {
	return &Handler{
		pool:    pool,
		docker:  docker,
		queue:   queue,
		startAt: time.Now(),
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Checks    map[string]Check `json:"checks"`
	Queue     *jobs.Stats      `json:"queue,omitempty"`
}

// Check represents an individual health check result
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health returns the overall service health: database and container
// runtime connectivity.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := map[string]Check{
		"database": {Status: "healthy"},
		"docker":   {Status: "healthy"},
	}
	overall := "healthy"

	if err := h.pool.Ping(ctx); err != nil {
		checks["database"] = Check{Status: "unhealthy", Message: err.Error()}
		overall = "unhealthy"
	}

	if _, err := h.docker.Ping(ctx); err != nil {
		checks["docker"] = Check{Status: "unhealthy", Message: err.Error()}
		overall = "unhealthy"
	}

	response := HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Checks:    checks,
	}

	if stats, err := h.queue.Stats(ctx); err == nil {
		response.Queue = stats
	}

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, response)
}

// Healthz returns a simple liveness response
// GET /healthz
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness based on database connectivity
// GET /ready
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status": "ready",
	})
}
