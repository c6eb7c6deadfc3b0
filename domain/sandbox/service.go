package sandbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opslab/opslab/domain/attempts"
	"github.com/opslab/opslab/domain/exercises"
	"github.com/opslab/opslab/internal/config"
	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
)

// Service orchestrates the submission pipeline:
// validate, acquire session, execute, score, record, respond.
type Service struct {
	store     *Store
	topology  *TopologyManager
	executor  *Executor
	validator *Validator
	exercises *exercises.Service
	recorder  *attempts.Recorder
	limiter   *RateLimiter
	cfg       *config.Config
	log       *slog.Logger
}

// NewService creates the sandbox orchestrator
func NewService(
	store *Store,
	topology *TopologyManager,
	executor *Executor,
	validator *Validator,
	exerciseSvc *exercises.Service,
	recorder *attempts.Recorder,
	cfg *config.Config,
	log *slog.Logger,
) *Service {
	return &Service{
		store:     store,
		topology:  topology,
		executor:  executor,
		validator: validator,
		exercises: exerciseSvc,
		recorder:  recorder,
		limiter:   NewRateLimiter(cfg.Sandbox.RatePerMinute, cfg.Sandbox.RateBurst),
		cfg:       cfg,
		log:       log.With(logger.Scope("sandbox.svc")),
	}
}

// AcquireSession returns the user's running session, provisioning a new
// topology when none exists. The second return value reports whether a
// new session was created.
func (s *Service) AcquireSession(ctx context.Context, userID string) (*Session, bool, error) {
	session, err := s.store.FindActive(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if session != nil {
		return session, false, nil
	}

	session, err = s.store.InsertStarting(ctx, userID, s.cfg.Sandbox.SessionTTL)
	if err != nil {
		return nil, false, err
	}

	tag := sessionTag(session.TopologyName)
	result, err := s.topology.Create(ctx, userID, tag)
	if err != nil {
		s.log.Error("topology provisioning failed",
			slog.String("user_id", userID),
			slog.String("topology", session.TopologyName),
			logger.Error(err))
		if termErr := s.store.Terminate(ctx, session.ID, StatusError); termErr != nil {
			s.log.Error("failed to mark session errored", logger.Error(termErr))
		}
		return nil, false, apperror.ErrProvisioning.WithInternal(err)
	}

	if err := s.store.Promote(ctx, session, result.ControllerID); err != nil {
		// A concurrent request won the running slot; tear down ours
		if _, destroyErr := s.topology.Destroy(ctx, session.TopologyName); destroyErr != nil {
			s.log.Warn("failed to destroy losing topology", logger.Error(destroyErr))
		}
		if termErr := s.store.Terminate(ctx, session.ID, StatusError); termErr != nil {
			s.log.Error("failed to mark session errored", logger.Error(termErr))
		}
		return nil, false, err
	}

	s.log.Info("session provisioned",
		slog.String("user_id", userID),
		slog.String("session_id", session.ID),
		slog.String("topology", session.TopologyName))

	return session, true, nil
}

// DestroySession tears down the user's active session. Returns NotFound
// when there is nothing to destroy.
func (s *Service) DestroySession(ctx context.Context, userID string) error {
	session, err := s.store.FindActive(ctx, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return apperror.ErrNotFound.WithMessage("no active session to destroy")
	}

	if _, err := s.topology.Destroy(ctx, session.TopologyName); err != nil {
		s.log.Error("failed to destroy topology",
			slog.String("topology", session.TopologyName),
			logger.Error(err))
		return apperror.ErrInternal.WithInternal(err)
	}

	return s.store.Terminate(ctx, session.ID, StatusStopped)
}

// SubmitResponse is the composite result of one submission
type SubmitResponse struct {
	Success       bool        `json:"success"`
	ExitCode      int         `json:"exit_code"`
	Stdout        string      `json:"stdout"`
	Stderr        string      `json:"stderr"`
	ExecutionTime float64     `json:"execution_time"`
	Error         string      `json:"error,omitempty"`
	TestResults   *TestReport `json:"test_results,omitempty"`
	IsPassed      bool        `json:"is_passed"`
	Warnings      []string    `json:"warnings"`
}

// Submit drives one full submission. With an exercise the run is scored
// and recorded; without one it is a free-form execution against the
// user's sandbox.
func (s *Service) Submit(ctx context.Context, userID, exerciseID, code string, hintsUsed int) (*SubmitResponse, error) {
	if !s.limiter.Allow(userID) {
		return nil, apperror.ErrRateLimited
	}
	return s.run(ctx, userID, exerciseID, code, hintsUsed)
}

// run is the pipeline body, shared by the synchronous path and the
// deferred job worker. Rate limiting happens before we get here.
func (s *Service) run(ctx context.Context, userID, exerciseID, code string, hintsUsed int) (*SubmitResponse, error) {
	var exercise *exercises.Exercise
	if exerciseID != "" {
		var err error
		exercise, err = s.exercises.Get(ctx, exerciseID)
		if err != nil {
			return nil, err
		}
	}

	validation := s.validator.Validate(code)
	if !validation.Valid {
		return nil, apperror.ErrValidation.WithDetails(map[string]interface{}{
			"errors":   validation.Errors,
			"warnings": validation.Warnings,
		})
	}

	if exercise != nil {
		if err := s.recorder.CheckLimit(ctx, userID, exercise.ID, exercise.MaxAttempts); err != nil {
			return nil, err
		}
	}

	session, _, err := s.AcquireSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	timeout := s.cfg.Sandbox.DefaultTimeLimit
	if exercise != nil {
		timeout = secondsDuration(exercise.TimeLimitSeconds)
	}

	result := s.executor.Execute(ctx, session.TopologyName, code, timeout)

	response := &SubmitResponse{
		Success:       result.Success,
		ExitCode:      result.ExitCode,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		ExecutionTime: result.ExecutionTime,
		Error:         result.Error,
		Warnings:      validation.Warnings,
	}

	if exercise != nil {
		report := RunTests(exercise.TestCases, result)
		response.TestResults = &report
		response.IsPassed = report.Passed

		if err := s.recordAttempt(ctx, userID, exercise, code, result, report, hintsUsed); err != nil {
			return nil, err
		}
	}

	if err := s.store.Touch(ctx, session.ID); err != nil {
		s.log.Warn("failed to touch session", logger.Error(err))
	}

	return response, nil
}

func (s *Service) recordAttempt(ctx context.Context, userID string, exercise *exercises.Exercise, code string, result *ExecutionResult, report TestReport, hintsUsed int) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return apperror.ErrInternal.WithInternal(err)
	}

	// Pre-execution failures never start the clock; timeouts do.
	var execTime *float64
	if result.ExitCode >= 0 || result.ExecutionTime > 0 {
		t := result.ExecutionTime
		execTime = &t
	}

	penalty := 0
	if report.Passed && hintsUsed > 0 {
		penalty, err = s.exercises.HintPenalty(ctx, exercise.ID, hintsUsed)
		if err != nil {
			s.log.Warn("failed to compute hint penalty", logger.Error(err))
			penalty = 0
		}
	}

	_, err = s.recorder.Record(ctx, attempts.RecordParams{
		UserID:               userID,
		ExerciseID:           exercise.ID,
		Code:                 code,
		Stdout:               result.Stdout,
		Stderr:               result.Stderr,
		TestResults:          reportJSON,
		IsPassed:             report.Passed,
		ExecutionTimeSeconds: execTime,
		HintsUsed:            hintsUsed,
		ExercisePoints:       exercise.Points,
		HintPenalty:          penalty,
	})
	return err
}

// AllowSubmission applies the per-user rate limit for the deferred path,
// where the cost is paid at enqueue time rather than at execution.
func (s *Service) AllowSubmission(userID string) bool {
	return s.limiter.Allow(userID)
}

// PruneLimiters drops idle rate limiter state; called from the scheduler
func (s *Service) PruneLimiters() int {
	return s.limiter.Prune(s.cfg.Sandbox.SessionTTL)
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}

// sessionTag extracts the random tag suffix from a topology name so the
// network and containers share it. Falls back to a fresh tag.
func sessionTag(topologyName string) string {
	if i := lastUnderscore(topologyName); i >= 0 && i+1 < len(topologyName) {
		return topologyName[i+1:]
	}
	return uuid.NewString()[:8]
}

func lastUnderscore(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '_' {
			return i
		}
	}
	return -1
}
