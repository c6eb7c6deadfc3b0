package attempts

import (
	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/auth"
)

// RegisterRoutes registers the attempt history routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/exercises/:id/attempts")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.History)
}
