package sandbox

import (
	"context"
	"log/slog"

	"github.com/opslab/opslab/internal/config"
	"github.com/opslab/opslab/pkg/logger"
)

// Sweeper reaps expired sessions and ages out rows stranded in the
// starting state by a crash mid-provisioning. It runs on a fixed
// interval from the scheduler.
type Sweeper struct {
	store    *Store
	topology *TopologyManager
	cfg      *config.Config
	log      *slog.Logger
}

// NewSweeper creates a new session sweeper
func NewSweeper(store *Store, topology *TopologyManager, cfg *config.Config, log *slog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		topology: topology,
		cfg:      cfg,
		log:      log.With(logger.Scope("sandbox.sweeper")),
	}
}

// SweepStats summarizes one sweep pass
type SweepStats struct {
	Expired int
	Errored int
	Failed  int
}

// Sweep runs one pass. Per-session failures are logged and the sweep
// continues; a partially successful pass still frees resources.
func (s *Sweeper) Sweep(ctx context.Context) SweepStats {
	stats := SweepStats{}

	expired, err := s.store.ListExpiredRunning(ctx)
	if err != nil {
		s.log.Error("failed to list expired sessions", logger.Error(err))
	}
	for i := range expired {
		session := &expired[i]
		if _, err := s.topology.Destroy(ctx, session.TopologyName); err != nil {
			s.log.Error("failed to destroy expired topology",
				slog.String("session_id", session.ID),
				slog.String("topology", session.TopologyName),
				logger.Error(err))
			stats.Failed++
			continue
		}
		if err := s.store.Terminate(ctx, session.ID, StatusExpired); err != nil {
			s.log.Error("failed to expire session row",
				slog.String("session_id", session.ID),
				logger.Error(err))
			stats.Failed++
			continue
		}
		stats.Expired++
	}

	stale, err := s.store.ListStaleStarting(ctx, s.cfg.Sandbox.StartingRecoveryWindow)
	if err != nil {
		s.log.Error("failed to list stale starting sessions", logger.Error(err))
	}
	for i := range stale {
		session := &stale[i]
		// Best effort: provisioning may have partially succeeded before
		// the crash, so try to clear any leftover containers.
		if _, err := s.topology.Destroy(ctx, session.TopologyName); err != nil {
			s.log.Warn("failed to destroy stale topology",
				slog.String("topology", session.TopologyName),
				logger.Error(err))
		}
		if err := s.store.Terminate(ctx, session.ID, StatusError); err != nil {
			s.log.Error("failed to error out stale session",
				slog.String("session_id", session.ID),
				logger.Error(err))
			stats.Failed++
			continue
		}
		stats.Errored++
	}

	if stats.Expired > 0 || stats.Errored > 0 || stats.Failed > 0 {
		s.log.Info("sweep completed",
			slog.Int("expired", stats.Expired),
			slog.Int("errored", stats.Errored),
			slog.Int("failed", stats.Failed))
	}

	return stats
}
