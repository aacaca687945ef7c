// Package ratelimit bounds how many waitlist submissions one client may attempt
// within a fixed window.
package ratelimit

import (
	"context"
	"time"
)

// Defaults applied when a limiter is built with zero values.
const (
	DefaultLimit  = 3
	DefaultWindow = time.Hour
)

// Limiter decides whether a keyed caller may proceed.
type Limiter interface {
	// Allow counts one attempt for key and reports whether it is within quota.
	Allow(ctx context.Context, key string) (bool, error)
	// Sweep drops state for windows that have fully expired.
	Sweep(ctx context.Context) error
}

// Clock returns the current time; tests substitute a fake.
type Clock func() time.Time

func normalize(limit int, window time.Duration) (int, time.Duration) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return limit, window
}
