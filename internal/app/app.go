// Package app provides the top-level application lifecycle for polyredeem. It
// unlocks the credential vault, wires the redemption pipeline (clients,
// limiter, builder, submitter, notifications) and runs it in check, one-shot
// or scheduled mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/config"
	"github.com/alanyoungcy/polyredeem/internal/crypto"
	"github.com/alanyoungcy/polyredeem/internal/domain"
)

// App is the root application object. It owns the configuration, logger,
// vault and a list of cleanup functions that are called in reverse order on
// shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	vault   *crypto.Vault
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		vault:  crypto.NewVault(cfg.Vault.Path, logger),
	}
}

// Vault returns the credential vault at the configured path.
func (a *App) Vault() *crypto.Vault {
	return a.vault
}

// Interval returns the redeem schedule; zero means a single run.
func (a *App) Interval() time.Duration {
	return a.cfg.Redeem.Interval.Duration
}

// SetInterval overrides the configured redeem schedule.
func (a *App) SetInterval(d time.Duration) {
	a.cfg.Redeem.Interval.Duration = d
}

// Check unlocks the vault and lists redeemable positions without submitting
// anything. The run is bounded by redeem.check_timeout.
func (a *App) Check(ctx context.Context, password string) (domain.RunSummary, error) {
	deps, err := a.start(ctx, password)
	if err != nil {
		return domain.RunSummary{}, err
	}
	return a.CheckMode(ctx, deps)
}

// Redeem unlocks the vault and performs one redemption run.
func (a *App) Redeem(ctx context.Context, password string) (domain.RunSummary, error) {
	deps, err := a.start(ctx, password)
	if err != nil {
		return domain.RunSummary{}, err
	}
	return a.RedeemMode(ctx, deps)
}

// RedeemEvery unlocks the vault once and redeems on a fixed schedule until
// ctx is cancelled. Failed runs are logged and reported, never fatal.
func (a *App) RedeemEvery(ctx context.Context, password string) error {
	deps, err := a.start(ctx, password)
	if err != nil {
		return err
	}
	return a.ScheduleMode(ctx, deps, a.Interval())
}

func (a *App) start(ctx context.Context, password string) (*Dependencies, error) {
	bundle, err := a.vault.Unlock(password)
	if err != nil {
		return nil, fmt.Errorf("app: unlock vault: %w", err)
	}
	a.logger.InfoContext(ctx, "credentials loaded", slog.Any("credentials", bundle))

	deps, cleanup, err := Wire(ctx, a.cfg, bundle, a.logger)
	if err != nil {
		return nil, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)
	return deps, nil
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
