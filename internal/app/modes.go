package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
)

// runLockTTL bounds how long a crashed process can block other runs for the
// same wallet.
const runLockTTL = 15 * time.Minute

// CheckMode lists candidates without submitting.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) (domain.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Redeem.CheckTimeout.Duration)
	defer cancel()

	summary, err := deps.Runner.Run(ctx, deps.ProxyAddress, domain.RunModeCheck)
	a.report(ctx, deps, summary, err)
	return summary, err
}

// RedeemMode performs one live run. With Redis configured the run holds the
// wallet's run lock; if another process holds it, the run is skipped and
// ErrLockHeld is returned.
func (a *App) RedeemMode(ctx context.Context, deps *Dependencies) (domain.RunSummary, error) {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, "run:"+strings.ToLower(deps.ProxyAddress), runLockTTL)
		if err != nil {
			return domain.RunSummary{}, fmt.Errorf("app: run lock: %w", err)
		}
		defer unlock()
	}

	summary, err := deps.Runner.Run(ctx, deps.ProxyAddress, domain.RunModeRedeem)
	a.report(ctx, deps, summary, err)
	return summary, err
}

// ScheduleMode runs RedeemMode immediately and then every interval until
// ctx is cancelled. A failing run never stops the schedule.
func (a *App) ScheduleMode(ctx context.Context, deps *Dependencies, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("app: schedule interval must be positive, got %s", interval)
	}
	a.logger.InfoContext(ctx, "scheduled redemption started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		summary, err := a.RedeemMode(ctx, deps)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			a.logger.WarnContext(ctx, "another process is redeeming, run skipped")
		case err != nil:
			a.logger.ErrorContext(ctx, "scheduled run failed", slog.String("error", err.Error()))
		case !summary.ExitOK():
			a.logger.WarnContext(ctx, "scheduled run incomplete",
				slog.Int("attempted", summary.Attempted()),
				slog.Int("succeeded", summary.Succeeded()),
			)
		}

		if ctx.Err() != nil {
			a.logger.Info("scheduled redemption stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			a.logger.Info("scheduled redemption stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (a *App) report(ctx context.Context, deps *Dependencies, summary domain.RunSummary, runErr error) {
	if !deps.Notifier.Enabled() {
		return
	}
	// Reports still go out when the run was cut short by ctx.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()

	var err error
	if runErr != nil {
		err = deps.Notifier.ReportError(ctx, runErr)
	} else {
		err = deps.Notifier.ReportRun(ctx, summary)
	}
	if err != nil {
		a.logger.Warn("notification failed", slog.String("error", err.Error()))
	}
}
