// Package rate implements a fixed-window counter against Redis. The
// increment and the conditional expiry run inside one Lua script so a
// counter can never outlive its window, even when two workers race on the
// first hit.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable marks store faults; callers must treat the request as
// denied (fail closed).
var ErrRedisUnavailable = errors.New("redis unavailable")

const keyPrefix = "nn:rl:"

const consumeScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

var consumeLua = redis.NewScript(consumeScript)

// Result reports the outcome of one consumed attempt.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Limiter enforces per-key fixed-window budgets.
type Limiter struct {
	redis redis.UniversalClient
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient) *Limiter {
	return &Limiter{redis: redisClient}
}

// CheckAndConsume atomically counts one attempt for key and reports whether
// it fits within maxAttempts per window. The attempt is consumed regardless
// of the outcome; denied attempts still advance the counter.
func (l *Limiter) CheckAndConsume(ctx context.Context, key string, maxAttempts int, window time.Duration) (Result, error) {
	res, err := consumeLua.Run(ctx, l.redis, []string{keyPrefix + key}, window.Milliseconds()).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return Result{}, fmt.Errorf("%w: unexpected script response", ErrRedisUnavailable)
	}
	count, ok1 := parts[0].(int64)
	ttlMillis, ok2 := parts[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("%w: unexpected script response", ErrRedisUnavailable)
	}

	remaining := int64(maxAttempts) - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   count <= int64(maxAttempts),
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttlMillis) * time.Millisecond,
	}, nil
}

// Reset clears the counter for key. Used by tests and administrative tooling.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
