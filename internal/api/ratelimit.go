package api

import (
	"sync"
	"time"
)

// sweepInterval is how often the limiter drops principals that have gone
// quiet. Allow prunes the active principal's window inline, so the sweep
// only bounds memory for principals that stopped sending requests.
const sweepInterval = 5 * time.Minute

// RateLimiter is a sliding-window limiter keyed by the authenticated
// principal. Requests beyond the limit within the window are rejected.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	stop   chan struct{}
}

// NewRateLimiter creates a limiter allowing limit requests per principal
// within the given window. Stop releases its background sweep.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		stop:   make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Allow reports whether the principal may make another request. Each call
// counts as a request.
func (rl *RateLimiter) Allow(principal string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.prune(principal, now.Add(-rl.window))

	if len(valid) >= rl.limit {
		rl.hits[principal] = valid
		return false
	}

	rl.hits[principal] = append(valid, now)
	return true
}

// Stop terminates the background sweep.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// prune drops the principal's hits older than cutoff and returns the rest.
// Callers hold rl.mu.
func (rl *RateLimiter) prune(principal string, cutoff time.Time) []time.Time {
	hits := rl.hits[principal]
	valid := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-rl.window)
			for principal := range rl.hits {
				if valid := rl.prune(principal, cutoff); len(valid) == 0 {
					delete(rl.hits, principal)
				} else {
					rl.hits[principal] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}
