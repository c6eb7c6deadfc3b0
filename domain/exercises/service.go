package exercises

import (
	"context"
	"log/slog"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// Service handles business logic for the exercise catalog
type Service struct {
	repo *Repository
	log  *slog.Logger
}

// NewService creates a new exercise service
func NewService(repo *Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With(logger.Scope("exercises.svc")),
	}
}

// Get loads a published exercise with its full test-case list. Intended for
// internal callers (the submission pipeline); solution code stays server-side.
func (s *Service) Get(ctx context.Context, id string) (*Exercise, error) {
	exercise, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if exercise.TimeLimitSeconds <= 0 {
		s.log.Warn("exercise has invalid time limit",
			slog.String("exercise_id", exercise.ID),
			slog.Int("time_limit_seconds", exercise.TimeLimitSeconds))
		return nil, apperror.ErrInternal.WithMessage("exercise is misconfigured")
	}

	return exercise, nil
}

// GetDTO loads a published exercise as its public response shape
func (s *Service) GetDTO(ctx context.Context, id string) (*ExerciseDTO, error) {
	exercise, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	dto := exercise.ToDTO()
	return &dto, nil
}

// List returns all published exercises as DTOs
func (s *Service) List(ctx context.Context) ([]ExerciseDTO, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	dtos := make([]ExerciseDTO, 0, len(list))
	for i := range list {
		dtos = append(dtos, list[i].ToDTO())
	}
	return dtos, nil
}

// Hints returns the hints for an exercise in display order
func (s *Service) Hints(ctx context.Context, exerciseID string) ([]HintDTO, error) {
	// Verify the exercise exists and is published before exposing hints
	if _, err := s.repo.GetByID(ctx, exerciseID); err != nil {
		return nil, err
	}

	hints, err := s.repo.ListHints(ctx, exerciseID)
	if err != nil {
		return nil, err
	}

	dtos := make([]HintDTO, 0, len(hints))
	for i := range hints {
		dtos = append(dtos, hints[i].ToDTO())
	}
	return dtos, nil
}

// HintPenalty returns the total point penalty for using the first n hints
func (s *Service) HintPenalty(ctx context.Context, exerciseID string, n int) (int, error) {
	return s.repo.SumHintPenalties(ctx, exerciseID, n)
}
