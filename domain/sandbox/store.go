package sandbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/opslab/opslab/pkg/apperror"
	"github.com/opslab/opslab/pkg/logger"
	"github.com/opslab/opslab/pkg/pgutils"
)

// Store handles database operations for sandbox sessions
type Store struct {
	db  bun.IDB
	log *slog.Logger
}

// NewStore creates a new session store
func NewStore(db bun.IDB, log *slog.Logger) *Store {
	return &Store{
		db:  db,
		log: log.With(logger.Scope("sandbox.store")),
	}
}

// FindActive returns the user's running, unexpired session, or nil
func (s *Store) FindActive(ctx context.Context, userID string) (*Session, error) {
	var session Session
	err := s.db.NewSelect().
		Model(&session).
		Where("user_id = ?", userID).
		Where("status = ?", StatusRunning).
		Where("expires_at > now()").
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		s.log.Error("failed to find active session", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return &session, nil
}

// InsertStarting creates a new session row in the starting state with a
// freshly generated topology name.
func (s *Store) InsertStarting(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	now := time.Now()
	tag := uuid.NewString()[:8]

	session := &Session{
		UserID:       userID,
		TopologyName: TopologyName(userID, tag),
		Status:       StatusStarting,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
		LastActivity: now,
	}

	_, err := s.db.NewInsert().
		Model(session).
		Returning("id").
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to insert session", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}

	return session, nil
}

// Promote transitions a starting session to running and stores the
// controller container id. The partial unique index on (user_id) where
// status='running' rejects a second concurrent promotion for the same user.
func (s *Store) Promote(ctx context.Context, session *Session, controllerID string) error {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", StatusRunning).
		Set("container_id = ?", controllerID).
		Where("id = ?", session.ID).
		Where("status = ?", StatusStarting).
		Exec(ctx)
	if err != nil {
		if !pgutils.IsUniqueViolation(err) {
			s.log.Error("failed to promote session", logger.Error(err))
		}
		return promoteError(err)
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return apperror.ErrConflict.WithMessage("session is no longer in starting state")
	}

	session.Status = StatusRunning
	session.ContainerID = &controllerID
	return nil
}

// promoteError maps a promotion failure to its API error. The partial
// unique index on (user_id) WHERE status='running' fires when a concurrent
// request promoted first; that loss is a conflict, not a server fault.
func promoteError(err error) error {
	if pgutils.IsUniqueViolation(err) {
		return apperror.ErrConflict.WithMessage("another session is already running")
	}
	return apperror.ErrDatabase.WithInternal(err)
}

// Touch updates last_activity to now
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	_, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("last_activity = now()").
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to touch session", slog.String("session_id", sessionID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// Terminate moves a session to a terminal state
func (s *Store) Terminate(ctx context.Context, sessionID string, state SessionStatus) error {
	if !state.IsTerminal() {
		return fmt.Errorf("cannot terminate into non-terminal state %q", state)
	}

	_, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("status = ?", state).
		Where("id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		s.log.Error("failed to terminate session", slog.String("session_id", sessionID), logger.Error(err))
		return apperror.ErrDatabase.WithInternal(err)
	}
	return nil
}

// ListExpiredRunning returns running sessions whose TTL has elapsed
func (s *Store) ListExpiredRunning(ctx context.Context) ([]Session, error) {
	var sessions []Session
	err := s.db.NewSelect().
		Model(&sessions).
		Where("status = ?", StatusRunning).
		Where("expires_at < now()").
		Scan(ctx)
	if err != nil {
		s.log.Error("failed to list expired sessions", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return sessions, nil
}

// ListStaleStarting returns starting sessions older than the recovery
// window. These are stranded rows from crashes mid-provisioning.
func (s *Store) ListStaleStarting(ctx context.Context, window time.Duration) ([]Session, error) {
	var sessions []Session
	err := s.db.NewSelect().
		Model(&sessions).
		Where("status = ?", StatusStarting).
		Where("created_at < ?", time.Now().Add(-window)).
		Scan(ctx)
	if err != nil {
		s.log.Error("failed to list stale starting sessions", logger.Error(err))
		return nil, apperror.ErrDatabase.WithInternal(err)
	}
	return sessions, nil
}
