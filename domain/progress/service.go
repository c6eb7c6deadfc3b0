package progress

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// Service handles point awards and progress lookups
type Service struct {
	db  bun.IDB
	log *slog.Logger
}

// NewService creates a new progress service
func NewService(db bun.IDB, log *slog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With(logger.Scope("progress.svc")),
	}
}

// AwardPoints credits points to a user's ledger. Negative amounts are
// clamped to zero before the write; the completed counter still advances
// so a zero-point pass (all hints used) is still a completion.
func (s *Service) AwardPoints(ctx context.Context, userID string, points int) error {
	if points < 0 {
		points = 0
	}

	row := &UserProgress{
		UserID:             userID,
		XP:                 points,
		ExercisesCompleted: 1,
		UpdatedAt:          time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (user_id) DO UPDATE").
		Set("xp = up.xp + EXCLUDED.xp").
		Set("exercises_completed = up.exercises_completed + 1").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		s.log.Error("failed to award points",
			slog.String("user_id", userID),
			slog.Int("points", points),
			logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	s.log.Info("points awarded",
		slog.String("user_id", userID),
		slog.Int("points", points))

	return nil
}

// Get returns the progress row for a user, zero-valued when none exists yet
func (s *Service) Get(ctx context.Context, userID string) (*ProgressDTO, error) {
	var row UserProgress
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ProgressDTO{UserID: userID}, nil
		}
		s.log.Error("failed to get progress", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	dto := row.ToDTO()
	return &dto, nil
}
