// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rateguard

import (
	"sync"
	"time"
)

// window tracks request timestamps for a single key
type window struct {
	attempts []time.Time
}

// Guard is a fixed-window request limiter keyed by an arbitrary
// string (typically client IP, or IP combined with the endpoint).
// When disabled it allows everything.
type Guard struct {
	mu       sync.Mutex
	windows  map[string]*window
	max      int
	duration time.Duration
	enabled  bool

	// now is swappable for tests
	now func() time.Time
}

// New creates a guard allowing max requests per key within the window
func New(max int, duration time.Duration, enabled bool) *Guard {
	return &Guard{
		windows:  make(map[string]*window),
		max:      max,
		duration: duration,
		enabled:  enabled,
		now:      time.Now,
	}
}

// Allow reports whether a request for the given key may proceed,
// and records it if so. Denied requests are not recorded.
func (g *Guard) Allow(key string) bool {
	if !g.enabled {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.duration)

	w, ok := g.windows[key]
	if !ok {
		w = &window{}
		g.windows[key] = w
	}

	// Drop attempts that fell out of the window
	live := w.attempts[:0]
	for _, t := range w.attempts {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}
	w.attempts = live

	if len(w.attempts) >= g.max {
		return false
	}

	w.attempts = append(w.attempts, now)
	return true
}

// Remaining reports how many attempts are left for the key
func (g *Guard) Remaining(key string) int {
	if !g.enabled {
		return g.max
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[key]
	if !ok {
		return g.max
	}

	cutoff := g.now().Add(-g.duration)
	count := 0
	for _, t := range w.attempts {
		if t.After(cutoff) {
			count++
		}
	}

	remaining := g.max - count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears all recorded attempts for the key
func (g *Guard) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.windows, key)
}
