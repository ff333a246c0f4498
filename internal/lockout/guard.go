// Package lockout tracks failed login attempts per username and converts
// them into a temporary lockout flag. The per-username state cycles
// Clear → Accumulating → Locked → Clear; the flag always takes precedence
// over the counter, and only natural expiry (or an administrative unlock)
// clears a flag.
package lockout

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

const (
	flagPrefix = "nn:lock:flag:"
	failPrefix = "nn:lock:fail:"
)

// recordFailureScript short-circuits while the flag is set so the counter
// cannot drift during a lockout, then increments, arming the counter TTL on
// the first failure. The counter TTL equals the lockout duration: stale
// failures age out even when the threshold is never reached. Reaching the
// threshold converts the counter into the flag in the same script.
const recordFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return {1, 0}
end
local count = redis.call("INCR", KEYS[2])
if count == 1 then
  redis.call("EXPIRE", KEYS[2], ARGV[2])
end
if count >= tonumber(ARGV[1]) then
  redis.call("SET", KEYS[1], "1", "EX", ARGV[2])
  redis.call("DEL", KEYS[2])
  return {1, count}
end
return {0, count}
`

var recordFailureLua = redis.NewScript(recordFailureScript)

// Config holds the lockout policy.
type Config struct {
	MaxAttempts int
	Duration    time.Duration
}

// Status reports the post-failure state of a username.
type Status struct {
	Locked   bool
	Attempts int
}

// Guard is the Redis-backed lockout state machine.
type Guard struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Guard] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Guard {
	return &Guard{redis: redisClient, config: cfg}
}

// RecordFailure registers one failed login for username. When the failure
// count reaches the configured threshold the lockout flag is set atomically
// and the counter is cleared. While locked, further failures do not
// increment anything.
func (g *Guard) RecordFailure(ctx context.Context, username string) (Status, error) {
	res, err := recordFailureLua.Run(
		ctx,
		g.redis,
		[]string{flagPrefix + username, failPrefix + username},
		g.config.MaxAttempts,
		int(g.config.Duration.Seconds()),
	).Result()
	if err != nil {
		return Status{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return Status{}, fmt.Errorf("%w: unexpected script response", ErrRedisUnavailable)
	}
	locked, ok1 := parts[0].(int64)
	attempts, ok2 := parts[1].(int64)
	if !ok1 || !ok2 {
		return Status{}, fmt.Errorf("%w: unexpected script response", ErrRedisUnavailable)
	}

	return Status{Locked: locked == 1, Attempts: int(attempts)}, nil
}

// RecordSuccess clears the failure counter. An already-set lockout flag is
// left alone: a correct guess after the threshold must not erase a lockout.
func (g *Guard) RecordSuccess(ctx context.Context, username string) error {
	if err := g.redis.Del(ctx, failPrefix+username).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsLocked reports whether the lockout flag is active for username.
func (g *Guard) IsLocked(ctx context.Context, username string) (bool, error) {
	n, err := g.redis.Exists(ctx, flagPrefix+username).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// LockoutTTL returns the remaining lockout duration in whole seconds, or 0
// when the username is not locked.
func (g *Guard) LockoutTTL(ctx context.Context, username string) (int, error) {
	ttl, err := g.redis.TTL(ctx, flagPrefix+username).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return int(ttl.Seconds()), nil
}

// Unlock removes the lockout flag and failure counter. Administrative
// operation; never called from the login path.
func (g *Guard) Unlock(ctx context.Context, username string) error {
	if err := g.redis.Del(ctx, flagPrefix+username, failPrefix+username).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
