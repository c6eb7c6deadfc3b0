package sandbox

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces the per-user submission rate at the boundary.
// Limiters for idle users are pruned periodically.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*userLimiter
	limit    rate.Limit
	burst    int
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing perMinute submissions per user
// with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

// Allow reports whether the user may submit now
func (r *RateLimiter) Allow(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ul, ok := r.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[userID] = ul
	}
	ul.lastSeen = time.Now()

	return ul.limiter.Allow()
}

// Prune drops limiters idle for longer than maxIdle and returns the
// number removed.
func (r *RateLimiter) Prune(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for userID, ul := range r.limiters {
		if ul.lastSeen.Before(cutoff) {
			delete(r.limiters, userID)
			removed++
		}
	}
	return removed
}
