package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_IsRunning(t *testing.T) {
	s := NewScheduler(slog.Default())

	assert.False(t, s.IsRunning())

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestScheduler_AddIntervalTask(t *testing.T) {
	s := NewScheduler(slog.Default())

	err := s.AddIntervalTask("sweep", 5*time.Minute, func(ctx context.Context) error {
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"sweep"}, s.ListTasks())
}

func TestScheduler_AddIntervalTask_ReplacesExisting(t *testing.T) {
	s := NewScheduler(slog.Default())

	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, s.AddIntervalTask("sweep", 5*time.Minute, noop))
	require.NoError(t, s.AddIntervalTask("sweep", 10*time.Minute, noop))

	assert.Len(t, s.ListTasks(), 1)
}

func TestScheduler_RemoveTask(t *testing.T) {
	s := NewScheduler(slog.Default())

	require.NoError(t, s.AddIntervalTask("sweep", 5*time.Minute, func(ctx context.Context) error {
		return nil
	}))
	s.RemoveTask("sweep")

	assert.Empty(t, s.ListTasks())
}

func TestScheduler_RunsTask(t *testing.T) {
	s := NewScheduler(slog.Default())

	var runs atomic.Int32
	require.NoError(t, s.AddIntervalTask("tick", 50*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool {
		return runs.Load() >= 1
	}, 2*time.Second, 20*time.Millisecond)
}
