package progress

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/auth"
)

// Handler handles HTTP requests for user progress
type Handler struct {
	svc *Service
}

// NewHandler creates a new progress handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Get returns the current user's progress
// GET /api/progress
func (h *Handler) Get(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	p, err := h.svc.Get(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, p)
}
