package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/pixelboard/internal/metrics"
)

// cooldownKey returns the key holding an actor's last accepted action.
func cooldownKey(actorID string) string {
	return fmt.Sprintf("cooldown:%s", actorID)
}

// RedisLimiter is a Limiter backed by Redis, for deployments that share
// cooldown state between processes. The key's TTL is the cooldown, so expiry
// is measured by the Redis server clock.
type RedisLimiter struct {
	client   *redis.Client
	cooldown time.Duration
}

// NewRedisLimiter creates a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cooldown time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, cooldown: cooldown}
}

// CheckAndRecord uses SET NX PX as a single atomic check-and-record.
func (l *RedisLimiter) CheckAndRecord(ctx context.Context, actorID string, now time.Time) (Decision, error) {
	// A zero TTL would make the key permanent.
	if l.cooldown <= 0 {
		return Decision{Admitted: true}, nil
	}

	defer observeRedis(time.Now())

	key := cooldownKey(actorID)

	// Two attempts: the key may expire between SET NX and PTTL.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := l.client.SetNX(ctx, key, now.UnixMilli(), l.cooldown).Result()
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return Decision{Admitted: true}, nil
		}

		ttl, err := l.client.PTTL(ctx, key).Result()
		if err != nil {
			return Decision{}, err
		}
		if ttl > 0 {
			return Decision{RetryAt: now.Add(ttl)}, nil
		}
	}

	return Decision{RetryAt: now}, nil
}

// RedisWindow is a WindowLimiter backed by Redis counters.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisWindow allows limit requests per key per window.
func NewRedisWindow(client *redis.Client, prefix string, limit int, window time.Duration) *RedisWindow {
	return &RedisWindow{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one request for key with INCR and reports whether it fits.
func (w *RedisWindow) Allow(ctx context.Context, key string, now time.Time) (WindowResult, error) {
	defer observeRedis(time.Now())

	bucket, resetAt := windowBounds(now, w.window)
	windowKey := fmt.Sprintf("%s:%s:%d", w.prefix, key, bucket)

	pipe := w.client.Pipeline()
	incr := pipe.Incr(ctx, windowKey)
	pipe.Expire(ctx, windowKey, w.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return WindowResult{}, err
	}

	return newWindowResult(w.limit, int(incr.Val()), resetAt), nil
}

func observeRedis(start time.Time) {
	metrics.RedisLatency.Observe(time.Since(start).Seconds())
}
