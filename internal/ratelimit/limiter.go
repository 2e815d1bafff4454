// Package ratelimit decides whether an actor may act now.
//
// Limiter enforces the placement cooldown: one accepted write per actor per
// cooldown window. WindowLimiter enforces a coarse request budget, N requests
// per key per fixed window, independent of the cooldown. Each has an in-memory
// implementation for a single process and a Redis implementation for callers
// that need the state shared across processes.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the result of a cooldown check.
type Decision struct {
	Admitted bool
	RetryAt  time.Time // Earliest time the actor will be admitted again; zero when admitted
}

// RetryAfter returns how long the actor has to wait, relative to now.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Admitted || !d.RetryAt.After(now) {
		return 0
	}
	return d.RetryAt.Sub(now)
}

// Limiter enforces a fixed cooldown between accepted actions of one actor.
//
// CheckAndRecord must be atomic per actor: on admission the actor's record is
// updated to now before returning, so two concurrent calls for the same actor
// can never both be admitted within one cooldown window. A denied call leaves
// the record untouched.
type Limiter interface {
	CheckAndRecord(ctx context.Context, actorID string, now time.Time) (Decision, error)
}

// WindowResult is the result of a fixed-window check.
type WindowResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// WindowLimiter counts requests per key in fixed windows.
type WindowLimiter interface {
	Allow(ctx context.Context, key string, now time.Time) (WindowResult, error)
}

// windowBounds returns the bucket number and end of the fixed window containing now.
func windowBounds(now time.Time, window time.Duration) (int64, time.Time) {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	bucket := now.UnixMilli() / ms
	return bucket, time.UnixMilli((bucket + 1) * ms)
}
