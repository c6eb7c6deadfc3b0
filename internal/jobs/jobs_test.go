package jobs

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want string
	}{
		{
			name: "short message",
			msg:  "short error",
			want: "short error",
		},
		{
			name: "exactly 500 characters",
			msg:  strings.Repeat("a", 500),
			want: strings.Repeat("a", 500),
		},
		{
			name: "501 characters truncated to 500",
			msg:  strings.Repeat("a", 501),
			want: strings.Repeat("a", 500),
		},
		{
			name: "empty string",
			msg:  "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateError(tt.msg)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 500)
		})
	}
}

func TestDefaultQueueConfig(t *testing.T) {
	config := DefaultQueueConfig("submission_jobs")

	assert.Equal(t, "submission_jobs", config.TableName)
	assert.Equal(t, 3, config.MaxAttempts)
	assert.Equal(t, 30, config.BaseRetryDelaySec)
	assert.Equal(t, 600, config.MaxRetryDelaySec)
	assert.Equal(t, 5, config.BatchSize)
}

func TestJobStatusConstants(t *testing.T) {
	assert.Equal(t, JobStatus("pending"), StatusPending)
	assert.Equal(t, JobStatus("processing"), StatusProcessing)
	assert.Equal(t, JobStatus("completed"), StatusCompleted)
	assert.Equal(t, JobStatus("failed"), StatusFailed)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		base    int
		max     int
		attempt int
		want    time.Duration
	}{
		{"first attempt", 30, 600, 1, 30 * time.Second},
		{"second attempt quadratic", 30, 600, 2, 120 * time.Second},
		{"third attempt quadratic", 30, 600, 3, 270 * time.Second},
		{"capped at max", 30, 600, 10, 600 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RetryDelay(tt.base, tt.max, tt.attempt))
		})
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	config := DefaultWorkerConfig("submission-worker")

	assert.Equal(t, "submission-worker", config.Name)
	assert.Equal(t, 3*time.Second, config.PollInterval)
	assert.Equal(t, 5, config.BatchSize)
	assert.Equal(t, 10, config.StaleThresholdMinutes)
	assert.True(t, config.RecoverStaleOnStart)
}

func TestWorker_Increments(t *testing.T) {
	w := &Worker{}

	w.IncrementSuccess()
	w.IncrementSuccess()
	w.IncrementFailure()

	metrics := w.Metrics()
	assert.Equal(t, int64(3), metrics.Processed)
	assert.Equal(t, int64(2), metrics.Succeeded)
	assert.Equal(t, int64(1), metrics.Failed)
}

func TestWorker_IsRunning(t *testing.T) {
	w := &Worker{}
	assert.False(t, w.IsRunning())

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	assert.True(t, w.IsRunning())
}

func TestWorker_Metrics_Concurrent(t *testing.T) {
	w := &Worker{}

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				w.IncrementSuccess()
				w.IncrementFailure()
				_ = w.Metrics()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	metrics := w.Metrics()
	assert.Equal(t, int64(2000), metrics.Processed)
	assert.Equal(t, int64(1000), metrics.Succeeded)
	assert.Equal(t, int64(1000), metrics.Failed)
}
