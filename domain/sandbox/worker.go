package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"go.uber.org/fx"

	"github.com/opslab/opslab/internal/jobs"
	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// SubmissionWorker drains the deferred submission queue, running each job
// through the same pipeline as a synchronous submission.
type SubmissionWorker struct {
	queue  *SubmissionQueue
	svc    *Service
	worker *jobs.Worker
	config jobs.WorkerConfig
	log    *slog.Logger
}

// NewSubmissionWorker creates the background submission worker
func NewSubmissionWorker(queue *SubmissionQueue, svc *Service, log *slog.Logger) *SubmissionWorker {
	w := &SubmissionWorker{
		queue:  queue,
		svc:    svc,
		config: jobs.DefaultWorkerConfig("submissions"),
		log:    log.With(logger.Scope("sandbox.worker")),
	}
	w.worker = jobs.NewWorker(w.config, log, w.processBatch)
	return w
}

// StartSubmissionWorker wires the worker into the application lifecycle
func StartSubmissionWorker(lc fx.Lifecycle, w *SubmissionWorker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return w.Stop(ctx)
		},
	})
}

// Start recovers stale jobs and begins polling
func (w *SubmissionWorker) Start(ctx context.Context) error {
	if w.config.RecoverStaleOnStart {
		if _, err := w.queue.queue.RecoverStaleJobs(ctx, w.config.StaleThresholdMinutes); err != nil {
			w.log.Warn("stale job recovery failed", logger.Error(err))
		}
	}
	// The polling loop outlives the startup context
	return w.worker.Start(context.WithoutCancel(ctx))
}

// Stop shuts the polling loop down gracefully
func (w *SubmissionWorker) Stop(ctx context.Context) error {
	return w.worker.Stop(ctx)
}

// processBatch claims pending jobs and runs them one at a time. Sandbox
// runs are heavyweight, so jobs within a batch are processed sequentially.
func (w *SubmissionWorker) processBatch(ctx context.Context) error {
	ids, err := w.queue.queue.Dequeue(ctx, 0)
	if err != nil {
		return err
	}

	for _, id := range ids {
		w.processJob(ctx, id)
	}
	return nil
}

func (w *SubmissionWorker) processJob(ctx context.Context, jobID string) {
	job, err := w.queue.load(ctx, jobID)
	if err != nil {
		w.log.Error("failed to load claimed job",
			slog.String("job_id", jobID),
			logger.Error(err))
		return
	}

	response, err := w.svc.run(ctx, job.UserID, job.ExerciseID, job.Code, job.HintsUsed)
	if err != nil {
		w.log.Warn("deferred submission failed",
			slog.String("job_id", jobID),
			logger.Error(err))
		// Validation and limit failures are deterministic; retrying them
		// only burns sandbox capacity.
		if permanentFailure(err) {
			if markErr := w.queue.queue.MarkFailedPermanent(ctx, jobID, job.AttemptCount, err.Error()); markErr != nil {
				w.log.Error("failed to mark job failed", logger.Error(markErr))
			}
		} else if markErr := w.queue.queue.MarkFailed(ctx, jobID, job.AttemptCount, err.Error()); markErr != nil {
			w.log.Error("failed to mark job failed", logger.Error(markErr))
		}
		w.worker.IncrementFailure()
		return
	}

	payload, err := json.Marshal(response)
	if err != nil {
		w.log.Error("failed to encode job result", logger.Error(err))
		payload = []byte("{}")
	}

	if err := w.queue.queue.MarkCompleted(ctx, jobID, payload); err != nil {
		w.log.Error("failed to mark job completed",
			slog.String("job_id", jobID),
			logger.Error(err))
		w.worker.IncrementFailure()
		return
	}

	w.worker.IncrementSuccess()
}

// permanentFailure reports whether a pipeline error is deterministic.
// Client-class failures (invalid playbook, attempt cap, missing exercise)
// produce the same outcome on every retry; server-class failures
// (provisioning, database) are worth retrying.
func permanentFailure(err error) bool {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus >= 400 && appErr.HTTPStatus < 500
	}
	return false
}
