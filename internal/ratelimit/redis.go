package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:waitlist:"

// Counter creation and increment happen inside one script so concurrent
// instances cannot both pass a GET before either INCRs.
const fixedWindowScript = `
local current = redis.call("GET", KEYS[1])
if not current then
    redis.call("SET", KEYS[1], "1", "PX", ARGV[2])
    return 1
end
if tonumber(current) >= tonumber(ARGV[1]) then
    return 0
end
redis.call("INCR", KEYS[1])
return 1
`

// RedisLimiter shares the fixed window across every instance using one Redis.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	script *redis.Script
}

// NewRedisLimiter builds a limiter backed by client.
func NewRedisLimiter(client *redis.Client, limit int, win time.Duration) *RedisLimiter {
	limit, win = normalize(limit, win)
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: win,
		script: redis.NewScript(fixedWindowScript),
	}
}

// Allow runs the window script for key.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	res, err := l.script.Run(ctx, l.client, []string{keyPrefix + key}, l.limit, l.window.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return res == 1, nil
}

// Sweep is a no-op; keys carry their own TTL.
func (l *RedisLimiter) Sweep(context.Context) error {
	return nil
}
