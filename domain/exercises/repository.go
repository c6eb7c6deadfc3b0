package exercises

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// Repository handles database operations for exercises
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

// NewRepository creates a new exercise repository
func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With(logger.Scope("exercises.repo")),
	}
}

// GetByID retrieves a published exercise by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*Exercise, error) {
	var exercise Exercise
	err := r.db.NewSelect().
		Model(&exercise).
		Where("id = ?", id).
		Where("is_published = true").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrExerciseNotFound
		}
		r.log.Error("failed to get exercise by id", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return &exercise, nil
}

// GetBySlug retrieves a published exercise by slug
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Exercise, error) {
	var exercise Exercise
	err := r.db.NewSelect().
		Model(&exercise).
		Where("slug = ?", slug).
		Where("is_published = true").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrExerciseNotFound
		}
		r.log.Error("failed to get exercise by slug", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return &exercise, nil
}

// List retrieves all published exercises ordered by slug
func (r *Repository) List(ctx context.Context) ([]Exercise, error) {
	var list []Exercise
	err := r.db.NewSelect().
		Model(&list).
		Where("is_published = true").
		Order("slug ASC").
		Scan(ctx)

	if err != nil {
		r.log.Error("failed to list exercises", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return list, nil
}

// ListHints retrieves the hints for an exercise in display order
func (r *Repository) ListHints(ctx context.Context, exerciseID string) ([]Hint, error) {
	var hints []Hint
	err := r.db.NewSelect().
		Model(&hints).
		Where("exercise_id = ?", exerciseID).
		Order("ord ASC").
		Scan(ctx)

	if err != nil {
		r.log.Error("failed to list hints", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return hints, nil
}

// SumHintPenalties returns the total point penalty for the first n hints of
// an exercise, in display order.
func (r *Repository) SumHintPenalties(ctx context.Context, exerciseID string, n int) (int, error) {
	if n <= 0 {
		return 0, nil
	}

	var total int
	err := r.db.NewSelect().
		TableExpr("(?) AS first_hints", r.db.NewSelect().
			Model((*Hint)(nil)).
			Column("points_penalty").
			Where("exercise_id = ?", exerciseID).
			Order("ord ASC").
			Limit(n)).
		ColumnExpr("COALESCE(SUM(points_penalty), 0)").
		Scan(ctx, &total)

	if err != nil {
		r.log.Error("failed to sum hint penalties", logger.Error(err))
		return 0, apperror.ErrDatabase.WithInternal(err)
	}

	return total, nil
}
