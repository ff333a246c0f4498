// Package session owns the persisted half of every refresh token: one Redis
// record per (principal, token-hash) pair with an absolute TTL. A refresh
// token is live exactly while its record exists; deleting the record is
// revocation. Raw tokens never reach this package, only digests.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable marks store faults; refresh validation fails closed on it.
var ErrRedisUnavailable = errors.New("redis unavailable")

const scanBatch = 1000

// Registry is the Redis-backed set of live refresh-token records.
type Registry struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRegistry creates a [Registry]. prefix namespaces every key; it must not
// collide with the rate-limiter or lockout namespaces.
func NewRegistry(redisClient redis.UniversalClient, prefix string) *Registry {
	return &Registry{redis: redisClient, prefix: prefix}
}

func (r *Registry) key(principalID, tokenHash string) string {
	return r.prefix + ":" + principalID + ":" + tokenHash
}

func (r *Registry) principalPattern(principalID string) string {
	return r.prefix + ":" + principalID + ":*"
}

// Put stores a session record with an absolute TTL. Idempotent: re-putting
// the same pair refreshes the record in place.
func (r *Registry) Put(ctx context.Context, principalID, tokenHash string, ttl time.Duration) error {
	value := strconv.FormatInt(time.Now().Unix(), 10)
	if err := r.redis.Set(ctx, r.key(principalID, tokenHash), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Exists reports whether the record is live. This is the revocation check:
// a missing record means the token was revoked, rotated, or expired.
func (r *Registry) Exists(ctx context.Context, principalID, tokenHash string) (bool, error) {
	n, err := r.redis.Exists(ctx, r.key(principalID, tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Revoke deletes one record. No-op when the record is already gone; the
// returned bool reports whether anything was deleted.
func (r *Registry) Revoke(ctx context.Context, principalID, tokenHash string) (bool, error) {
	n, err := r.redis.Del(ctx, r.key(principalID, tokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// RevokeAll deletes every record for the principal and returns the count.
// The scan is scoped to the principal's key namespace, never the whole store.
func (r *Registry) RevokeAll(ctx context.Context, principalID string) (int, error) {
	var (
		cursor  uint64
		revoked int
	)

	for {
		keys, next, err := r.redis.Scan(ctx, cursor, r.principalPattern(principalID), scanBatch).Result()
		if err != nil {
			return revoked, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := r.redis.Del(ctx, keys...).Result()
			if err != nil {
				return revoked, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			revoked += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return revoked, nil
}

// ActiveCount returns the number of live records for the principal.
// O(keys-per-principal); introspection and admin tooling only.
func (r *Registry) ActiveCount(ctx context.Context, principalID string) (int, error) {
	var (
		cursor uint64
		total  int
	)

	for {
		keys, next, err := r.redis.Scan(ctx, cursor, r.principalPattern(principalID), scanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return total, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (r *Registry) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
