package ratelimit

import (
	"context"
	"sync"
	"time"
)

type actorEntry struct {
	mu   sync.Mutex
	last time.Time
	dead bool // removed from the table by Sweep
}

// MemoryLimiter is a process-local Limiter. Each actor has its own lock, so
// checks for different actors never wait on each other. State is lost on restart.
type MemoryLimiter struct {
	cooldown time.Duration
	actors   sync.Map // actorID -> *actorEntry
}

// NewMemoryLimiter creates a limiter with the given cooldown.
func NewMemoryLimiter(cooldown time.Duration) *MemoryLimiter {
	return &MemoryLimiter{cooldown: cooldown}
}

// Cooldown returns the configured cooldown.
func (l *MemoryLimiter) Cooldown() time.Duration {
	return l.cooldown
}

// CheckAndRecord admits the actor if its last accepted action is at least one
// cooldown old, recording now as the new last action.
func (l *MemoryLimiter) CheckAndRecord(_ context.Context, actorID string, now time.Time) (Decision, error) {
	for {
		v, ok := l.actors.Load(actorID)
		if !ok {
			v, _ = l.actors.LoadOrStore(actorID, &actorEntry{})
		}
		e := v.(*actorEntry)

		e.mu.Lock()
		if e.dead {
			// Lost a race with Sweep; the next Load sees a fresh entry.
			e.mu.Unlock()
			continue
		}
		if !e.last.IsZero() && now.Sub(e.last) < l.cooldown {
			retryAt := e.last.Add(l.cooldown)
			e.mu.Unlock()
			return Decision{RetryAt: retryAt}, nil
		}
		e.last = now
		e.mu.Unlock()
		return Decision{Admitted: true}, nil
	}
}

// Sweep drops entries whose cooldown has fully elapsed. Dropping them does not
// change any decision: a missing entry and an expired entry both admit.
func (l *MemoryLimiter) Sweep(now time.Time) int {
	removed := 0
	l.actors.Range(func(key, value any) bool {
		e := value.(*actorEntry)
		e.mu.Lock()
		if !e.last.IsZero() && now.Sub(e.last) >= l.cooldown {
			e.dead = true
			l.actors.Delete(key)
			removed++
		}
		e.mu.Unlock()
		return true
	})
	return removed
}

// Len returns the number of tracked actors.
func (l *MemoryLimiter) Len() int {
	n := 0
	l.actors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Run sweeps on every tick until ctx is cancelled.
func (l *MemoryLimiter) Run(ctx context.Context, interval time.Duration) {
	runSweeper(ctx, interval, func(now time.Time) { l.Sweep(now) })
}

type windowCount struct {
	bucket int64
	count  int
}

// MemoryWindow is a process-local WindowLimiter.
type MemoryWindow struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	counts map[string]*windowCount
}

// NewMemoryWindow allows limit requests per key per window.
func NewMemoryWindow(limit int, window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		limit:  limit,
		window: window,
		counts: make(map[string]*windowCount),
	}
}

// Allow counts one request for key and reports whether it fits the window.
func (w *MemoryWindow) Allow(_ context.Context, key string, now time.Time) (WindowResult, error) {
	bucket, resetAt := windowBounds(now, w.window)

	w.mu.Lock()
	c, ok := w.counts[key]
	if !ok || c.bucket != bucket {
		c = &windowCount{bucket: bucket}
		w.counts[key] = c
	}
	c.count++
	count := c.count
	w.mu.Unlock()

	return newWindowResult(w.limit, count, resetAt), nil
}

// Sweep drops counters from past windows.
func (w *MemoryWindow) Sweep(now time.Time) int {
	bucket, _ := windowBounds(now, w.window)

	w.mu.Lock()
	defer w.mu.Unlock()

	removed := 0
	for key, c := range w.counts {
		if c.bucket < bucket {
			delete(w.counts, key)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (w *MemoryWindow) Run(ctx context.Context, interval time.Duration) {
	runSweeper(ctx, interval, func(now time.Time) { w.Sweep(now) })
}

func newWindowResult(limit, count int, resetAt time.Time) WindowResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return WindowResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}

func runSweeper(ctx context.Context, interval time.Duration, sweep func(time.Time)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			sweep(now)
		}
	}
}
