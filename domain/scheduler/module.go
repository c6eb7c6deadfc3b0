package scheduler

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/opslab/opslab/domain/sandbox"
	"github.com/opslab/opslab/internal/config"
)

// Module provides scheduled maintenance tasks
var Module = fx.Module("scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for the scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler *Scheduler
	Sweeper   *sandbox.Sweeper
	Sandbox   *sandbox.Service
	Cfg       *config.Config
	Log       *slog.Logger
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if err := p.Scheduler.AddIntervalTask("session_sweep",
		p.Cfg.Sandbox.SweepInterval, func(ctx context.Context) error {
			p.Sweeper.Sweep(ctx)
			return nil
		}); err != nil {
		p.Log.Error("failed to register session sweep task",
			slog.String("error", err.Error()))
	}

	if err := p.Scheduler.AddIntervalTask("rate_limiter_prune",
		time.Hour, func(ctx context.Context) error {
			p.Sandbox.PruneLimiters()
			return nil
		}); err != nil {
		p.Log.Error("failed to register rate limiter prune task",
			slog.String("error", err.Error()))
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))

	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with the fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
