package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	e := New(http.StatusBadRequest, "bad_request", "Invalid request")
	assert.Equal(t, "bad_request: Invalid request", e.Error())

	withInternal := e.WithInternal(errors.New("boom"))
	assert.Equal(t, "bad_request: Invalid request (boom)", withInternal.Error())
	assert.Equal(t, "boom", errors.Unwrap(withInternal).Error())
}

func TestError_WithMessageDoesNotMutate(t *testing.T) {
	custom := ErrBadRequest.WithMessage("playbook must be a list of plays")
	assert.Equal(t, "playbook must be a list of plays", custom.Message)
	assert.Equal(t, "Invalid request", ErrBadRequest.Message, "shared error must not be mutated")
	assert.Equal(t, ErrBadRequest.Code, custom.Code)
}

func TestError_WithDetails(t *testing.T) {
	e := ErrValidation.WithDetails(map[string]any{
		"errors":   []string{"YAML syntax error"},
		"warnings": []string{},
	})
	assert.Len(t, e.Details, 2)
	assert.Empty(t, ErrValidation.Details)
}

func TestToHTTPError(t *testing.T) {
	status, body := ToHTTPError(ErrAttemptLimit)
	assert.Equal(t, http.StatusBadRequest, status)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "attempt_limit_exceeded", errObj["code"])

	status, body = ToHTTPError(errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, status)
	errObj = body["error"].(map[string]any)
	assert.Equal(t, "internal_error", errObj["code"])
}

func TestCommonErrorStatuses(t *testing.T) {
	assert.Equal(t, http.StatusTooManyRequests, ErrRateLimited.HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrAttemptLimit.HTTPStatus)
	assert.Equal(t, http.StatusBadRequest, ErrNoActiveSession.HTTPStatus)
	assert.Equal(t, http.StatusServiceUnavailable, ErrProvisioning.HTTPStatus)
	assert.Equal(t, http.StatusNotFound, ErrExerciseNotFound.HTTPStatus)
}
