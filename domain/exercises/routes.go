package exercises

import (
	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/auth"
)

// RegisterRoutes registers the exercise catalog routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/exercises")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.GET("/:id/hints", h.Hints)
}
