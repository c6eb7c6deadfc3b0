// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"8080"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Auth settings
	Auth AuthConfig

	// Sandbox settings
	Sandbox SandboxConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"600s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"opslab"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"opslab"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// AuthConfig holds token verification settings. Token issuance is owned by
// the external identity provider; we only need the shared verification key.
type AuthConfig struct {
	JWTSecret string `env:"AUTH_JWT_SECRET,required,notEmpty"`
}

// SandboxConfig holds the sandbox execution engine knobs.
type SandboxConfig struct {
	// ControllerImage is the Ansible-capable image for the control node.
	ControllerImage string `env:"SANDBOX_CONTROLLER_IMAGE" envDefault:"willhallonline/ansible:latest"`

	// NodeImage is the plain base image for managed nodes.
	NodeImage string `env:"SANDBOX_NODE_IMAGE" envDefault:"ubuntu:22.04"`

	// ManagedNodes is the number of managed nodes per topology.
	ManagedNodes int `env:"SANDBOX_MANAGED_NODES" envDefault:"2"`

	// MemoryBytes caps the controller container's memory.
	MemoryBytes int64 `env:"SANDBOX_MEMORY_BYTES" envDefault:"536870912"` // 512 MiB

	// NodeMemoryBytes caps each managed node's memory.
	NodeMemoryBytes int64 `env:"SANDBOX_NODE_MEMORY_BYTES" envDefault:"268435456"` // 256 MiB

	// CPUFraction is the controller's CPU share in [0, 1]; it is multiplied
	// into a quota over a 100ms period at container creation time.
	CPUFraction float64 `env:"SANDBOX_CPU_FRACTION" envDefault:"0.5"`

	// SessionTTL is how long a sandbox session lives before the sweeper
	// reaps it.
	SessionTTL time.Duration `env:"SANDBOX_SESSION_TTL" envDefault:"1h"`

	// SweepInterval is how often the sweeper scans for expired sessions.
	SweepInterval time.Duration `env:"SANDBOX_SWEEP_INTERVAL" envDefault:"5m"`

	// StartingRecoveryWindow is how long a session may stay in `starting`
	// before the sweeper terminates it as errored.
	StartingRecoveryWindow time.Duration `env:"SANDBOX_STARTING_RECOVERY_WINDOW" envDefault:"10m"`

	// RatePerMinute is the per-user submission rate limit.
	RatePerMinute int `env:"SANDBOX_RATE_PER_MINUTE" envDefault:"10"`

	// RateBurst is the per-user submission burst size.
	RateBurst int `env:"SANDBOX_RATE_BURST" envDefault:"3"`

	// DefaultTimeLimit is used when an exercise does not carry one.
	DefaultTimeLimit time.Duration `env:"SANDBOX_DEFAULT_TIME_LIMIT" envDefault:"300s"`

	// SetupWait is the pause after container start before SSH provisioning.
	SetupWait time.Duration `env:"SANDBOX_SETUP_WAIT" envDefault:"2s"`
}

// NewConfig loads and validates configuration from the environment.
func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would produce unusable sandboxes.
func (c *Config) Validate() error {
	s := c.Sandbox
	if s.ManagedNodes < 1 {
		return fmt.Errorf("config: SANDBOX_MANAGED_NODES must be at least 1, got %d", s.ManagedNodes)
	}
	if s.MemoryBytes <= 0 {
		return fmt.Errorf("config: SANDBOX_MEMORY_BYTES must be positive, got %d", s.MemoryBytes)
	}
	if s.CPUFraction <= 0 || s.CPUFraction > 1 {
		return fmt.Errorf("config: SANDBOX_CPU_FRACTION must be in (0, 1], got %g", s.CPUFraction)
	}
	if s.SessionTTL <= 0 {
		return fmt.Errorf("config: SANDBOX_SESSION_TTL must be positive, got %s", s.SessionTTL)
	}
	if s.SweepInterval <= 0 {
		return fmt.Errorf("config: SANDBOX_SWEEP_INTERVAL must be positive, got %s", s.SweepInterval)
	}
	if s.DefaultTimeLimit <= 0 {
		return fmt.Errorf("config: SANDBOX_DEFAULT_TIME_LIMIT must be positive, got %s", s.DefaultTimeLimit)
	}
	if s.RatePerMinute <= 0 {
		return fmt.Errorf("config: SANDBOX_RATE_PER_MINUTE must be positive, got %d", s.RatePerMinute)
	}
	return nil
}
