// Package main is the entry point for the opslab API server.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/opslab/opslab/domain/attempts"
	"github.com/opslab/opslab/domain/exercises"
	"github.com/opslab/opslab/domain/health"
	"github.com/opslab/opslab/domain/progress"
	"github.com/opslab/opslab/domain/sandbox"
	"github.com/opslab/opslab/domain/scheduler"
	"github.com/opslab/opslab/internal/config"
	"github.com/opslab/opslab/internal/database"
	"github.com/opslab/opslab/internal/migrate"
	"github.com/opslab/opslab/internal/server"
	"github.com/opslab/opslab/pkg/auth"
	"github.com/opslab/opslab/pkg/logger"
)

func main() {
	// Load .env files if present (for local development). Load() won't
	// overwrite existing vars, Overload() will.
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		migrate.Module,
		server.Module,

		// Auth module
		auth.Module,

		// Domain modules
		health.Module,
		exercises.Module,
		progress.Module,
		attempts.Module,
		sandbox.Module,

		// Scheduler module (session sweeper, limiter pruning)
		scheduler.Module,
	).Run()
}
