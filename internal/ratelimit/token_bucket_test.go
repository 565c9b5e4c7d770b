package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestBucket(t *testing.T, capacity int, refillPerSecond float64) *TokenBucket {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenBucket(client, capacity, refillPerSecond, time.Hour)
}

func TestAllowConsumesCapacity(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t, 3, 0)

	for i := 0; i < 3; i++ {
		allowed, err := b.Allow(ctx, "trigger:run")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("request %d should be within capacity", i)
		}
	}

	allowed, err := b.Allow(ctx, "trigger:run")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatal("bucket exhausted, request should be rejected")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	b := newTestBucket(t, 1, 0)

	if allowed, _ := b.Allow(ctx, "a"); !allowed {
		t.Fatal("first request on key a should pass")
	}
	if allowed, _ := b.Allow(ctx, "a"); allowed {
		t.Fatal("key a is exhausted")
	}
	if allowed, _ := b.Allow(ctx, "b"); !allowed {
		t.Fatal("key b has its own bucket")
	}
}
