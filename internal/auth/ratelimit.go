package auth

import (
	"sync"
	"time"
)

// loginAttempts records a single connection's recent failures.
type loginAttempts struct {
	timestamps []time.Time
}

// RateLimiter tracks consecutive authentication failures per connection
// key (typically the remote address) using a sliding window, so that a
// client hammering `user` with bad passwords gets locked out without
// penalising everyone sharing a NAT gateway over the long run.
type RateLimiter struct {
	mu         sync.Mutex
	attempts   map[string]*loginAttempts
	maxFails   int
	windowSize time.Duration
}

// NewRateLimiter creates a limiter allowing maxFails failures per key
// within windowSize before further attempts are refused.
func NewRateLimiter(maxFails int, windowSize time.Duration) *RateLimiter {
	if maxFails <= 0 {
		maxFails = 3
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	return &RateLimiter{
		attempts:   make(map[string]*loginAttempts),
		maxFails:   maxFails,
		windowSize: windowSize,
	}
}

// Allowed reports whether key may attempt another login.
func (rl *RateLimiter) Allowed(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.attempts[key]
	if !ok {
		return true
	}
	rl.pruneUnsafe(entry)
	return len(entry.timestamps) < rl.maxFails
}

// RecordFailure records a failed attempt for key.
func (rl *RateLimiter) RecordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.attempts[key]
	if !ok {
		entry = &loginAttempts{}
		rl.attempts[key] = entry
	}
	rl.pruneUnsafe(entry)
	entry.timestamps = append(entry.timestamps, time.Now())
}

// RecordSuccess clears key's failure history.
func (rl *RateLimiter) RecordSuccess(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}

// RemainingLockout returns how long until key's oldest failure slides out
// of the window, or zero if key is not currently locked out.
func (rl *RateLimiter) RemainingLockout(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.attempts[key]
	if !ok {
		return 0
	}
	rl.pruneUnsafe(entry)
	if len(entry.timestamps) < rl.maxFails {
		return 0
	}
	return time.Until(entry.timestamps[0].Add(rl.windowSize))
}

// pruneUnsafe discards timestamps that have slid out of the window.
// Caller must hold rl.mu.
func (rl *RateLimiter) pruneUnsafe(entry *loginAttempts) {
	cutoff := time.Now().Add(-rl.windowSize)
	n := 0
	for _, t := range entry.timestamps {
		if t.After(cutoff) {
			entry.timestamps[n] = t
			n++
		}
	}
	entry.timestamps = entry.timestamps[:n]
}
