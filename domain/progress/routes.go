package progress

import (
	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/auth"
)

// RegisterRoutes registers the progress routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/progress")
	g.Use(authMiddleware.RequireAuth())

	g.GET("", h.Get)
}
