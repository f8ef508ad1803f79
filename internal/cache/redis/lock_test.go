package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestLockHeldByAnotherHolder(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	lm := NewLockManager(c)

	unlock, err := lm.Acquire(ctx, "run:0xABC", time.Minute)
	require.NoError(t, err)
	require.True(t, mr.Exists("polyredeem:lock:run:0xabc"))

	_, err = lm.Acquire(ctx, "run:0xabc", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	require.False(t, mr.Exists("polyredeem:lock:run:0xabc"))

	again, err := lm.Acquire(ctx, "run:0xabc", time.Minute)
	require.NoError(t, err)
	again()
}

func TestExpiredHolderCannotReleaseNewerLock(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	key := "polyredeem:lock:run:0xabc"

	stale, err := lm.Acquire(ctx, "run:0xabc", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	fresh, err := lm.Acquire(ctx, "run:0xabc", time.Minute)
	require.NoError(t, err)
	token, err := mr.Get(key)
	require.NoError(t, err)

	stale()
	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, token, got)

	fresh()
	require.False(t, mr.Exists(key))
}
