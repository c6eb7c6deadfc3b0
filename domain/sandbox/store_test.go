package sandbox

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/pgutils"
)

func TestPromoteError(t *testing.T) {
	t.Run("losing the promotion race is a conflict", func(t *testing.T) {
		err := promoteError(&pgconn.PgError{Code: pgutils.CodeUniqueViolation})

		var appErr *apperror.Error
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, 409, appErr.HTTPStatus)
	})

	t.Run("anything else is a database failure", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := promoteError(cause)

		var appErr *apperror.Error
		assert.ErrorAs(t, err, &appErr)
		assert.Equal(t, 500, appErr.HTTPStatus)
		assert.ErrorIs(t, err, cause)
	})
}
