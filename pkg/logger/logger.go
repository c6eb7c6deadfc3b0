// Package logger provides the application's slog-based logging setup.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides logging dependencies.
var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewZapLogger,
		NewHTTPLogger,
	),
)

// NewLogger creates the application logger.
// Level comes from LOG_LEVEL; production (GO_ENV=production) emits JSON.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// NewZapLogger creates a zap logger for components that log through zap
// (currently the goose migrator).
func NewZapLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// parseLevel maps a LOG_LEVEL string to a slog.Level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Scope returns a standard attribute identifying a logging scope.
func Scope(name string) slog.Attr {
	return slog.String("scope", name)
}

// Error returns a standard attribute for an error value.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
