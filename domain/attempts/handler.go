package attempts

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/auth"
)

// Handler handles HTTP requests for attempt history
type Handler struct {
	recorder *Recorder
}

// NewHandler creates a new attempts handler
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// History returns the current user's attempts for an exercise, newest first
// GET /api/exercises/:id/attempts
func (h *Handler) History(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	exerciseID := c.Param("id")
	if exerciseID == "" {
		return apperror.ErrBadRequest.WithMessage("exercise id is required")
	}

	history, err := h.recorder.History(c.Request().Context(), user.ID, exerciseID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, history)
}
