package sandbox

import (
	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/auth"
)

// RegisterRoutes registers the sandbox routes
func RegisterRoutes(e *echo.Echo, h *Handler, authMiddleware *auth.Middleware) {
	g := e.Group("/api/sandbox")
	g.Use(authMiddleware.RequireAuth())

	g.POST("/create", h.Create)
	g.POST("/execute", h.Execute)
	g.POST("/destroy", h.Destroy)
	g.POST("/submit", h.SubmitAsync)
	g.GET("/jobs/:id", h.GetJob)
}
