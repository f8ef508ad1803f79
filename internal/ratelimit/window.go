// Package ratelimit implements the in-process rolling-window limiter that
// paces outbound relay and listing calls.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
)

// Config bounds calls to Limit per Window, and additionally to Burst within
// any trailing BurstWindow. Burst <= 0 or BurstWindow <= 0 disables the
// burst cap; Burst above Limit is clamped to Limit.
type Config struct {
	Limit       int
	Window      time.Duration
	Burst       int
	BurstWindow time.Duration
}

// Normalize returns cfg with the limit and burst cap clamped into range.
func (c Config) Normalize() Config {
	if c.Limit < 1 {
		c.Limit = 1
	}
	if c.Burst > c.Limit {
		c.Burst = c.Limit
	}
	if c.Burst <= 0 || c.BurstWindow <= 0 {
		c.Burst, c.BurstWindow = 0, 0
	}
	return c
}

// Window is a sliding-window limiter. A single mutex serialises
// prune, check and record, so concurrent callers never overshoot.
type Window struct {
	cfg Config

	mu    sync.Mutex
	stamp []time.Time // ascending, all within cfg.Window of the last prune

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Window limiter.
func New(cfg Config) *Window {
	return &Window{
		cfg:   cfg.Normalize(),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// TryAcquire records a call and returns true if the budget allows it now.
func (w *Window) TryAcquire(_ context.Context) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok, _ := w.tryLocked(w.now())
	return ok, nil
}

// Acquire blocks until a call is allowed. It fails only when ctx ends.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		ok, wait := w.tryLocked(w.now())
		w.mu.Unlock()
		if ok {
			return nil
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// tryLocked prunes expired stamps and, if both caps allow, records now.
// On refusal it returns how long until the oldest blocking stamp expires.
// Caller must hold w.mu.
func (w *Window) tryLocked(now time.Time) (bool, time.Duration) {
	cut := 0
	for cut < len(w.stamp) && now.Sub(w.stamp[cut]) >= w.cfg.Window {
		cut++
	}
	w.stamp = w.stamp[cut:]

	if len(w.stamp) >= w.cfg.Limit {
		return false, w.stamp[0].Add(w.cfg.Window).Sub(now)
	}

	if w.cfg.Burst > 0 {
		recent := 0
		for i := len(w.stamp) - 1; i >= 0 && now.Sub(w.stamp[i]) < w.cfg.BurstWindow; i-- {
			recent++
		}
		if recent >= w.cfg.Burst {
			oldest := w.stamp[len(w.stamp)-recent]
			return false, oldest.Add(w.cfg.BurstWindow).Sub(now)
		}
	}

	w.stamp = append(w.stamp, now)
	return true, 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*Window)(nil)
