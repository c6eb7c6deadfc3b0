package sandbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/opslab/opslab/internal/jobs"
	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// SubmissionJob is a deferred submission waiting for (or holding the
// outcome of) a background run.
type SubmissionJob struct {
	bun.BaseModel `bun:"table:submission_jobs,alias:sj"`

	ID           string          `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	UserID       string          `bun:"user_id"`
	ExerciseID   string          `bun:"exercise_id,type:uuid"`
	Code         string          `bun:"code"`
	HintsUsed    int             `bun:"hints_used"`
	Status       string          `bun:"status"`
	Priority     int             `bun:"priority"`
	AttemptCount int             `bun:"attempt_count"`
	LastError    *string         `bun:"last_error"`
	Result       json.RawMessage `bun:"result,type:jsonb"`
	ScheduledAt  *time.Time      `bun:"scheduled_at"`
	StartedAt    *time.Time      `bun:"started_at"`
	CompletedAt  *time.Time      `bun:"completed_at"`
	CreatedAt    time.Time       `bun:"created_at"`
	UpdatedAt    time.Time       `bun:"updated_at"`
}

// JobDTO is the response shape for job status polling
type JobDTO struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	LastError   *string         `json:"lastError,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// ToDTO converts a SubmissionJob to its response shape
func (j *SubmissionJob) ToDTO() JobDTO {
	return JobDTO{
		ID:          j.ID,
		Status:      j.Status,
		Result:      j.Result,
		LastError:   j.LastError,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// SubmissionQueue enqueues deferred submissions and serves job lookups
type SubmissionQueue struct {
	db    bun.IDB
	queue *jobs.Queue
	log   *slog.Logger
}

// NewSubmissionQueue creates the deferred submission queue
func NewSubmissionQueue(db bun.IDB, log *slog.Logger) *SubmissionQueue {
	return &SubmissionQueue{
		db:    db,
		queue: jobs.NewQueue(db, jobs.DefaultQueueConfig("submission_jobs"), log),
		log:   log.With(logger.Scope("sandbox.queue")),
	}
}

// Enqueue stores a pending submission job and returns it
func (q *SubmissionQueue) Enqueue(ctx context.Context, userID, exerciseID, code string, hintsUsed int) (*SubmissionJob, error) {
	now := time.Now()
	job := &SubmissionJob{
		UserID:      userID,
		ExerciseID:  exerciseID,
		Code:        code,
		HintsUsed:   hintsUsed,
		Status:      string(jobs.StatusPending),
		ScheduledAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if _, err := q.db.NewInsert().Model(job).Returning("id").Exec(ctx); err != nil {
		q.log.Error("failed to enqueue submission", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return job, nil
}

// Get loads a job owned by the given user
func (q *SubmissionQueue) Get(ctx context.Context, userID, jobID string) (*SubmissionJob, error) {
	var job SubmissionJob
	err := q.db.NewSelect().
		Model(&job).
		Where("id = ?", jobID).
		Where("user_id = ?", userID).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound.WithMessage("job not found")
		}
		q.log.Error("failed to get job", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return &job, nil
}

// load fetches a claimed job row by id for the worker
func (q *SubmissionQueue) load(ctx context.Context, jobID string) (*SubmissionJob, error) {
	var job SubmissionJob
	if err := q.queue.GetJobByID(ctx, jobID, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// Stats exposes queue depth counters for the health endpoint
func (q *SubmissionQueue) Stats(ctx context.Context) (*jobs.Stats, error) {
	return q.queue.GetStats(ctx)
}
