// Package ratelimit provides sliding-window request limiting keyed by
// client address.
//
// State is process-local. A client's window is pruned on every check and
// empty records are dropped, but idle addresses are otherwise never
// evicted.
package ratelimit

import (
	"sync"
	"time"
)

// Policy is a (window, max) pair bounding attempts per client address.
type Policy struct {
	Window time.Duration
	Max    int
}

// Limiter counts timestamped attempts per client address within a sliding
// window.
type Limiter struct {
	policy  Policy
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// New creates a limiter with the given policy.
func New(policy Policy) *Limiter {
	return &Limiter{
		policy:  policy,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Allow checks the window for addr and, if under the limit, records the
// attempt. When the limit is reached it returns false and how long the
// caller should wait before retrying.
func (l *Limiter) Allow(addr string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(addr, now)
	if len(window) >= l.policy.Max {
		return false, l.retryAfter(window, now)
	}
	l.windows[addr] = append(window, now)
	return true, 0
}

// Check reports whether addr is under the limit without recording an
// attempt.
func (l *Limiter) Check(addr string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	window := l.prune(addr, now)
	if len(window) >= l.policy.Max {
		return false, l.retryAfter(window, now)
	}
	return true, 0
}

// Record adds an attempt for addr without checking the limit. Used by the
// failed-login limiter, which counts only credential failures.
func (l *Limiter) Record(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.windows[addr] = append(l.prune(addr, now), now)
}

// prune drops timestamps older than the window. Caller must hold the lock.
func (l *Limiter) prune(addr string, now time.Time) []time.Time {
	cutoff := now.Add(-l.policy.Window)
	window := l.windows[addr]

	i := 0
	for i < len(window) && !window[i].After(cutoff) {
		i++
	}
	window = window[i:]

	if len(window) == 0 {
		delete(l.windows, addr)
		return nil
	}
	l.windows[addr] = window
	return window
}

// retryAfter is the time until the oldest counted attempt leaves the
// window. Caller must hold the lock.
func (l *Limiter) retryAfter(window []time.Time, now time.Time) time.Duration {
	wait := window[0].Add(l.policy.Window).Sub(now)
	if wait < 0 {
		wait = 0
	}
	return wait
}
