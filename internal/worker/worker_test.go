package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingLimiter struct {
	sweeps atomic.Int32
}

func (l *countingLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (l *countingLimiter) Sweep(context.Context) error {
	l.sweeps.Add(1)
	return nil
}

func TestRateLimitSweeperRunsAndStops(t *testing.T) {
	limiter := &countingLimiter{}
	ctx, cancel := context.WithCancel(context.Background())

	wait := StartRateLimitSweeper(ctx, limiter, 5*time.Millisecond, zap.NewNop())

	assert.Eventually(t, func() bool { return limiter.sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	wait()
}

func TestRateLimitSweeperDisabled(t *testing.T) {
	wait := StartRateLimitSweeper(context.Background(), &countingLimiter{}, 0, zap.NewNop())
	wait()

	wait = StartRateLimitSweeper(context.Background(), nil, time.Second, zap.NewNop())
	wait()
}

func TestStartNotificationWorkerNil(t *testing.T) {
	StartNotificationWorker(nil)
}
