package sandbox

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/auth"
)

// Handler handles HTTP requests for the sandbox
type Handler struct {
	svc   *Service
	queue *SubmissionQueue
}

// NewHandler creates a new sandbox handler
func NewHandler(svc *Service, queue *SubmissionQueue) *Handler {
	return &Handler{svc: svc, queue: queue}
}

// Create provisions a sandbox session, or returns the existing one
// POST /api/sandbox/create
func (h *Handler) Create(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	session, created, err := h.svc.AcquireSession(c.Request().Context(), user.ID)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	return c.JSON(status, CreateSessionResponse{
		Session: session.ToDTO(),
		Reused:  !created,
	})
}

// Execute runs a playbook synchronously, scored when an exercise is given
// POST /api/sandbox/execute
func (h *Handler) Execute(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req ExecuteRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.Code == "" {
		return apperror.ErrBadRequest.WithMessage("code is required")
	}
	if req.HintsUsed < 0 {
		return apperror.ErrBadRequest.WithMessage("hints_used must be non-negative")
	}

	response, err := h.svc.Submit(c.Request().Context(), user.ID, req.ExerciseID, req.Code, req.HintsUsed)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}

// Destroy tears down the current session
// POST /api/sandbox/destroy
func (h *Handler) Destroy(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	if err := h.svc.DestroySession(c.Request().Context(), user.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DestroyResponse{Status: "destroyed"})
}

// SubmitAsync enqueues a deferred submission and returns a job handle
// POST /api/sandbox/submit
func (h *Handler) SubmitAsync(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	var req SubmitAsyncRequest
	if err := c.Bind(&req); err != nil {
		return apperror.ErrBadRequest.WithMessage("invalid request body")
	}
	if req.Code == "" {
		return apperror.ErrBadRequest.WithMessage("code is required")
	}
	if req.ExerciseID == "" {
		return apperror.ErrBadRequest.WithMessage("exercise_id is required")
	}

	if !h.svc.AllowSubmission(user.ID) {
		return apperror.ErrRateLimited
	}

	job, err := h.queue.Enqueue(c.Request().Context(), user.ID, req.ExerciseID, req.Code, req.HintsUsed)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusAccepted, EnqueueResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetJob returns the state of a deferred submission
// GET /api/sandbox/jobs/:id
func (h *Handler) GetJob(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return apperror.ErrUnauthorized
	}

	jobID := c.Param("id")
	if jobID == "" {
		return apperror.ErrBadRequest.WithMessage("job id is required")
	}

	job, err := h.queue.Get(c.Request().Context(), user.ID, jobID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, job.ToDTO())
}
