package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "secret")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 2, cfg.Sandbox.ManagedNodes)
	assert.Equal(t, int64(512*1024*1024), cfg.Sandbox.MemoryBytes)
	assert.Equal(t, 0.5, cfg.Sandbox.CPUFraction)
	assert.Equal(t, time.Hour, cfg.Sandbox.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.Sandbox.SweepInterval)
	assert.Equal(t, 10, cfg.Sandbox.RatePerMinute)
}

func TestNewConfig_RequiresJWTSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")

	_, err := NewConfig()
	assert.Error(t, err)
}

func TestValidate_RejectsBadSandboxKnobs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			"zero managed nodes",
			func(c *Config) { c.Sandbox.ManagedNodes = 0 },
			"SANDBOX_MANAGED_NODES",
		},
		{
			"zero memory",
			func(c *Config) { c.Sandbox.MemoryBytes = 0 },
			"SANDBOX_MEMORY_BYTES",
		},
		{
			"cpu fraction above one",
			func(c *Config) { c.Sandbox.CPUFraction = 1.5 },
			"SANDBOX_CPU_FRACTION",
		},
		{
			"cpu fraction zero",
			func(c *Config) { c.Sandbox.CPUFraction = 0 },
			"SANDBOX_CPU_FRACTION",
		},
		{
			"zero session ttl",
			func(c *Config) { c.Sandbox.SessionTTL = 0 },
			"SANDBOX_SESSION_TTL",
		},
		{
			"zero default time limit",
			func(c *Config) { c.Sandbox.DefaultTimeLimit = 0 },
			"SANDBOX_DEFAULT_TIME_LIMIT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "secret")
			cfg, err := NewConfig()
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "opslab", Password: "pw",
		Database: "opslab", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://opslab:pw@db:5432/opslab?sslmode=disable", d.DSN())
}
