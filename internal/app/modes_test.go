package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/config"
	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/alanyoungcy/polyredeem/internal/notify"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	mu      sync.Mutex
	modes   []domain.RunMode
	results []error
	onRun   func(n int)
}

func (f *fakeRunner) Run(_ context.Context, _ string, mode domain.RunMode) (domain.RunSummary, error) {
	f.mu.Lock()
	f.modes = append(f.modes, mode)
	n := len(f.modes)
	var err error
	if n <= len(f.results) {
		err = f.results[n-1]
	}
	f.mu.Unlock()

	if f.onRun != nil {
		f.onRun(n)
	}
	return domain.RunSummary{Mode: mode}, err
}

type fakeLocks struct {
	held     bool
	keys     []string
	released int
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.keys = append(l.keys, key)
	if l.held {
		return nil, fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}
	return func() { l.released++ }, nil
}

type countingSender struct {
	mu     sync.Mutex
	titles []string
}

func (c *countingSender) Send(_ context.Context, title, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	return nil
}

func (c *countingSender) Name() string { return "count" }

func newTestApp(t *testing.T) *App {
	cfg := config.Defaults()
	cfg.Vault.Path = filepath.Join(t.TempDir(), "vault.json")
	return New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCheckModeUsesCheckRun(t *testing.T) {
	a := newTestApp(t)
	runner := &fakeRunner{}
	sender := &countingSender{}
	deps := &Dependencies{
		ProxyAddress: "0xProxy",
		Runner:       runner,
		Notifier:     notify.NewNotifier([]notify.Sender{sender}, nil, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}

	summary, err := a.CheckMode(context.Background(), deps)
	require.NoError(t, err)
	require.True(t, summary.ExitOK())
	require.Equal(t, []domain.RunMode{domain.RunModeCheck}, runner.modes)
	require.Equal(t, []string{"Redemption check"}, sender.titles)
}

func TestRedeemModeHoldsRunLock(t *testing.T) {
	a := newTestApp(t)
	locks := &fakeLocks{}
	runner := &fakeRunner{}
	deps := &Dependencies{ProxyAddress: "0xAbC", Runner: runner, LockManager: locks}

	_, err := a.RedeemMode(context.Background(), deps)
	require.NoError(t, err)
	require.Equal(t, []string{"run:0xabc"}, locks.keys)
	require.Equal(t, 1, locks.released)
	require.Equal(t, []domain.RunMode{domain.RunModeRedeem}, runner.modes)
}

func TestRedeemModeSkipsWhenLockHeld(t *testing.T) {
	a := newTestApp(t)
	runner := &fakeRunner{}
	deps := &Dependencies{ProxyAddress: "0xabc", Runner: runner, LockManager: &fakeLocks{held: true}}

	_, err := a.RedeemMode(context.Background(), deps)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	require.Empty(t, runner.modes)
}

func TestScheduleModeContinuesAfterFailures(t *testing.T) {
	a := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := &fakeRunner{
		results: []error{domain.ErrUpstreamUnavailable, errors.New("rate limit backend down")},
		onRun: func(n int) {
			if n == 3 {
				cancel()
			}
		},
	}
	deps := &Dependencies{ProxyAddress: "0xabc", Runner: runner}

	require.NoError(t, a.ScheduleMode(ctx, deps, time.Millisecond))
	require.Len(t, runner.modes, 3)
}

func TestScheduleModeRejectsZeroInterval(t *testing.T) {
	a := newTestApp(t)
	require.Error(t, a.ScheduleMode(context.Background(), &Dependencies{Runner: &fakeRunner{}}, 0))
}

func TestCheckWithoutVault(t *testing.T) {
	a := newTestApp(t)
	_, err := a.Check(context.Background(), "pw")
	require.ErrorIs(t, err, domain.ErrVaultNotInitialized)
}
