package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count int
	start time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. Instances behind a load
// balancer each enforce the quota on their own.
type MemoryLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     Clock
	entries map[string]*window
}

// NewMemoryLimiter builds a limiter allowing limit attempts per window.
func NewMemoryLimiter(limit int, win time.Duration, clock Clock) *MemoryLimiter {
	limit, win = normalize(limit, win)
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{
		limit:   limit,
		window:  win,
		now:     clock,
		entries: make(map[string]*window),
	}
}

// Allow never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok || now.Sub(entry.start) > l.window {
		l.entries[key] = &window{count: 1, start: now}
		return true, nil
	}
	if entry.count >= l.limit {
		return false, nil
	}
	entry.count++
	return true, nil
}

// Sweep removes every entry whose window has elapsed.
func (l *MemoryLimiter) Sweep(_ context.Context) error {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, entry := range l.entries {
		if now.Sub(entry.start) > l.window {
			delete(l.entries, key)
		}
	}
	return nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
