package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/revo-marketplace/waitlist/internal/ratelimit"
)

// StartRateLimitSweeper purges expired limiter windows every interval until
// ctx is cancelled. The returned func blocks until the goroutine has exited.
func StartRateLimitSweeper(ctx context.Context, limiter ratelimit.Limiter, interval time.Duration, logger *zap.Logger) (wait func()) {
	var wg sync.WaitGroup
	if limiter == nil || interval <= 0 {
		return wg.Wait
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Debug("rate limit sweeper stopped")
				return
			case <-ticker.C:
				if err := limiter.Sweep(ctx); err != nil {
					logger.Warn("rate limit sweep failed", zap.Error(err))
				}
			}
		}
	}()
	return wg.Wait
}
