package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToBurst(t *testing.T) {
	rl := NewRateLimiter(10, 3)

	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))
}

func TestRateLimiter_IsolatesUsers(t *testing.T) {
	rl := NewRateLimiter(10, 1)

	assert.True(t, rl.Allow("user-1"))
	assert.False(t, rl.Allow("user-1"))
	assert.True(t, rl.Allow("user-2"))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(10, 3)

	rl.Allow("user-1")
	rl.Allow("user-2")

	assert.Zero(t, rl.Prune(time.Minute))

	rl.mu.Lock()
	rl.limiters["user-1"].lastSeen = time.Now().Add(-2 * time.Hour)
	rl.mu.Unlock()

	assert.Equal(t, 1, rl.Prune(time.Hour))

	rl.mu.Lock()
	_, ok := rl.limiters["user-1"]
	rl.mu.Unlock()
	assert.False(t, ok)
}
