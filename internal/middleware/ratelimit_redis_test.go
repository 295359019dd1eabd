package middleware

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newRedisClient connects to a local Redis or skips the test.
func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func uniqueKey(name string) string {
	return name + "-" + strconv.FormatInt(time.Now().UnixNano(), 10)
}

func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	ctx := context.Background()
	key := uniqueKey("viewer:allow")
	t.Cleanup(func() { client.Del(ctx, store.prefix+key) })

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, cfg)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 4-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 4-i)
		}
	}

	allowed, remaining, retryAfter := store.Allow(ctx, key, cfg)
	if allowed || remaining != 0 {
		t.Errorf("6th request: allowed=%v remaining=%d", allowed, remaining)
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestRedisRateLimitStore_WindowExpiry(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisRateLimitStore(client, nil, nil)
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 100 * time.Millisecond}
	ctx := context.Background()
	key := uniqueKey("ip:expiry")
	t.Cleanup(func() { client.Del(ctx, store.prefix+key) })

	if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
		t.Fatal("first request should be allowed")
	}
	if allowed, _, _ := store.Allow(ctx, key, cfg); allowed {
		t.Fatal("second request should be blocked")
	}
	time.Sleep(150 * time.Millisecond)
	if allowed, _, _ := store.Allow(ctx, key, cfg); !allowed {
		t.Error("request after window expiry should be allowed")
	}
}

func TestRedisRateLimitStore_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	metrics := NewMetrics()
	store := NewRedisRateLimitStore(client, metrics, nil)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}

	allowed, remaining, _ := store.Allow(context.Background(), "viewer:u1", cfg)
	if !allowed {
		t.Error("should fail open when Redis is unavailable")
	}
	if remaining != cfg.RequestsPerWindow {
		t.Errorf("remaining = %d, want full quota", remaining)
	}
	if got := counterValue(t, metrics.rateLimitRedisErrors); got != 1 {
		t.Errorf("redis errors = %v, want 1", got)
	}
}
