package domain

import (
	"context"
	"time"
)

// RateLimiter budgets outbound calls over a rolling window.
type RateLimiter interface {
	// TryAcquire records a call and returns true if the budget allows it.
	TryAcquire(ctx context.Context) (bool, error)
	// Acquire blocks until a slot is available or ctx is done.
	Acquire(ctx context.Context) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
