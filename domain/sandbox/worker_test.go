package sandbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opslab/opslab/pkg/apperror"
)

func TestPermanentFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"validation failure", apperror.ErrValidation, true},
		{"attempt cap", apperror.ErrAttemptLimit, true},
		{"missing exercise", apperror.ErrExerciseNotFound, true},
		{"promotion conflict", apperror.ErrConflict, true},
		{"provisioning failure retries", apperror.ErrProvisioning, false},
		{"database failure retries", apperror.ErrDatabase, false},
		{"internal failure retries", apperror.ErrInternal, false},
		{"plain error retries", errors.New("connection reset"), false},
		{
			"wrapped app error",
			fmt.Errorf("run job: %w", apperror.ErrValidation.WithMessage("not a list")),
			true,
		},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, permanentFailure(tt.err))
		})
	}
}
