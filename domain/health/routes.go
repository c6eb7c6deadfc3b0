package health

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the health endpoints
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
}
