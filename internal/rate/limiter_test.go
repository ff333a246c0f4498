package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client), mr
}

func TestConsumeWithinBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := limiter.CheckAndConsume(ctx, "login:10.0.0.1", 5, time.Minute)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d denied inside the budget", i)
		}
		if res.Remaining != 5-i {
			t.Fatalf("attempt %d remaining = %d, want %d", i, res.Remaining, 5-i)
		}
	}

	res, err := limiter.CheckAndConsume(ctx, "login:10.0.0.1", 5, time.Minute)
	if err != nil {
		t.Fatalf("over-budget attempt: %v", err)
	}
	if res.Allowed {
		t.Fatal("sixth attempt must be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", res.Remaining)
	}
	if res.ResetIn <= 0 || res.ResetIn > time.Minute {
		t.Fatalf("ResetIn = %v, want within (0, window]", res.ResetIn)
	}
}

func TestWindowExpiryResetsCounter(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.CheckAndConsume(ctx, "login:10.0.0.1", 2, time.Minute)
	}

	mr.FastForward(time.Minute + time.Second)

	res, err := limiter.CheckAndConsume(ctx, "login:10.0.0.1", 2, time.Minute)
	if err != nil {
		t.Fatalf("after window: %v", err)
	}
	if !res.Allowed || res.Remaining != 1 {
		t.Fatalf("counter did not reset: %+v", res)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.CheckAndConsume(ctx, "login:10.0.0.1", 2, time.Minute)
	}

	res, err := limiter.CheckAndConsume(ctx, "login:10.0.0.2", 2, time.Minute)
	if err != nil {
		t.Fatalf("other key: %v", err)
	}
	if !res.Allowed {
		t.Fatal("unrelated key must not share the budget")
	}
}

func TestResetClearsBudget(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.CheckAndConsume(ctx, "login:10.0.0.1", 2, time.Minute)
	}
	if err := limiter.Reset(ctx, "login:10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	res, err := limiter.CheckAndConsume(ctx, "login:10.0.0.1", 2, time.Minute)
	if err != nil {
		t.Fatalf("after reset: %v", err)
	}
	if !res.Allowed {
		t.Fatal("reset key must admit again")
	}
}

func TestStoreFaultSurfaces(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	mr.SetError("connection refused")

	_, err := limiter.CheckAndConsume(context.Background(), "login:10.0.0.1", 5, time.Minute)
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("got %v, want ErrRedisUnavailable", err)
	}
}
