package pgutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"plain error", errors.New("connection refused"), false},
		{"pg error", &pgconn.PgError{Code: "23505"}, true},
		{
			"wrapped pg error",
			fmt.Errorf("insert attempt: %w", &pgconn.PgError{Code: "23505"}),
			true,
		},
		{"pg error other code", &pgconn.PgError{Code: "23503"}, false},
		{
			"flattened string",
			errors.New(`ERROR: duplicate key value violates unique constraint "exercise_attempts_user_id_exercise_id_attempt_number_key" (SQLSTATE 23505)`),
			true,
		},
		{"flattened string other code", errors.New("SQLSTATE 23503"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(errors.New("SQLSTATE 23503")))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}
