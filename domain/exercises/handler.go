package exercises

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/apperror"
)

// Handler handles HTTP requests for the exercise catalog
type Handler struct {
	svc *Service
}

// NewHandler creates a new exercise handler
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// List returns all published exercises
// GET /api/exercises
func (h *Handler) List(c echo.Context) error {
	list, err := h.svc.List(c.Request().Context())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, list)
}

// Get returns a single published exercise
// GET /api/exercises/:id
func (h *Handler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperror.ErrBadRequest.WithMessage("exercise id is required")
	}

	exercise, err := h.svc.GetDTO(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, exercise)
}

// Hints returns the hints for an exercise
// GET /api/exercises/:id/hints
func (h *Handler) Hints(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return apperror.ErrBadRequest.WithMessage("exercise id is required")
	}

	hints, err := h.svc.Hints(c.Request().Context(), id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, hints)
}
