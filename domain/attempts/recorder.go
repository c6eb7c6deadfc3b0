package attempts

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/opslab/opslab/internal/database"
	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
	"github.com/opslab/opslab/pkg/pgutils"
)

// Concurrent submissions for the same (user, exercise) race on the next
// attempt number; the unique constraint detects the loser, which retries.
const maxInsertRetries = 3

// Ledger credits points for a passed exercise
type Ledger interface {
	AwardPoints(ctx context.Context, userID string, points int) error
}

// Recorder writes immutable attempt rows and drives the point award
type Recorder struct {
	db     bun.IDB
	ledger Ledger
	log    *slog.Logger

	// insert performs one numbering transaction; replaceable in tests
	insert func(ctx context.Context, params RecordParams) (*Attempt, error)
}

// NewRecorder creates a new attempt recorder
func NewRecorder(db bun.IDB, ledger Ledger, log *slog.Logger) *Recorder {
	r := &Recorder{
		db:     db,
		ledger: ledger,
		log:    log.With(logger.Scope("attempts.recorder")),
	}
	r.insert = r.insertNext
	return r
}

// RecordParams carries everything needed to persist one attempt
type RecordParams struct {
	UserID               string
	ExerciseID           string
	Code                 string
	Stdout               string
	Stderr               string
	TestResults          json.RawMessage
	IsPassed             bool
	ExecutionTimeSeconds *float64
	HintsUsed            int

	// Award inputs, used only when the attempt passed
	ExercisePoints int
	HintPenalty    int
}

// CheckLimit enforces the per-exercise attempt cap before any execution
// happens. maxAttempts of 0 means unlimited.
func (r *Recorder) CheckLimit(ctx context.Context, userID, exerciseID string, maxAttempts int) error {
	if maxAttempts <= 0 {
		return nil
	}

	count, err := r.db.NewSelect().
		Model((*Attempt)(nil)).
		Where("user_id = ?", userID).
		Where("exercise_id = ?", exerciseID).
		Count(ctx)

	if err != nil {
		r.log.Error("failed to count attempts", logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}

	if count >= maxAttempts {
		return apperror.ErrAttemptLimit.WithDetails(map[string]interface{}{
			"maxAttempts": maxAttempts,
			"used":        count,
		})
	}

	return nil
}

// Record inserts the attempt with the next attempt number for the
// (user, exercise) pair and, when passed, credits points to the ledger.
// The award is best-effort: its failure is logged, never rolled into the
// attempt insertion.
func (r *Recorder) Record(ctx context.Context, params RecordParams) (*Attempt, error) {
	var attempt *Attempt
	var err error

	for i := 0; i < maxInsertRetries; i++ {
		attempt, err = r.insert(ctx, params)
		if err == nil {
			break
		}
		if pgutils.IsForeignKeyViolation(err) {
			return nil, apperror.ErrNotFound.WithMessage("exercise not found")
		}
		if !pgutils.IsUniqueViolation(err) {
			return nil, apperror.ErrDatabase.WithInternal(err)
		}
		r.log.Debug("attempt number conflict, retrying",
			slog.String("user_id", params.UserID),
			slog.String("exercise_id", params.ExerciseID),
			slog.Int("retry", i+1))
	}
	if err != nil {
		r.log.Error("attempt insert exhausted retries", logger.Error(err))
		return nil, apperror.ErrConflict.WithMessage("could not record attempt, please retry")
	}

	if params.IsPassed {
		points := AwardablePoints(params.ExercisePoints, params.HintPenalty)
		if awardErr := r.ledger.AwardPoints(ctx, params.UserID, points); awardErr != nil {
			r.log.Error("point award failed",
				slog.String("user_id", params.UserID),
				slog.String("exercise_id", params.ExerciseID),
				logger.Error(awardErr))
		}
	}

	return attempt, nil
}

// insertNext runs one transaction: read the current max attempt number,
// insert with max+1. A unique violation means a concurrent writer won.
func (r *Recorder) insertNext(ctx context.Context, params RecordParams) (*Attempt, error) {
	tx, err := database.BeginSafeTx(ctx, r.db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var maxNumber int
	err = tx.NewSelect().
		Model((*Attempt)(nil)).
		ColumnExpr("COALESCE(MAX(attempt_number), 0)").
		Where("user_id = ?", params.UserID).
		Where("exercise_id = ?", params.ExerciseID).
		Scan(ctx, &maxNumber)
	if err != nil {
		return nil, err
	}

	testResults := params.TestResults
	if len(testResults) == 0 {
		testResults = json.RawMessage("{}")
	}

	attempt := &Attempt{
		UserID:               params.UserID,
		ExerciseID:           params.ExerciseID,
		Code:                 params.Code,
		Stdout:               params.Stdout,
		Stderr:               params.Stderr,
		TestResults:          testResults,
		IsPassed:             params.IsPassed,
		ExecutionTimeSeconds: params.ExecutionTimeSeconds,
		HintsUsed:            params.HintsUsed,
		AttemptNumber:        maxNumber + 1,
		CreatedAt:            time.Now(),
	}

	if _, err := tx.NewInsert().Model(attempt).Returning("id").Exec(ctx); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return attempt, nil
}

// History returns the attempts for a (user, exercise) pair, newest first
func (r *Recorder) History(ctx context.Context, userID, exerciseID string) ([]AttemptDTO, error) {
	var rows []Attempt
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		Where("exercise_id = ?", exerciseID).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		r.log.Error("failed to list attempts", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	dtos := make([]AttemptDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, rows[i].ToDTO())
	}
	return dtos, nil
}

// AwardablePoints computes the points to credit for a passed attempt,
// clamped at zero so heavy hint use never goes negative.
func AwardablePoints(exercisePoints, hintPenalty int) int {
	points := exercisePoints - hintPenalty
	if points < 0 {
		return 0
	}
	return points
}
