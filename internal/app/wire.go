package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/polyredeem/internal/cache/redis"
	"github.com/alanyoungcy/polyredeem/internal/config"
	"github.com/alanyoungcy/polyredeem/internal/crypto"
	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/alanyoungcy/polyredeem/internal/executor"
	"github.com/alanyoungcy/polyredeem/internal/notify"
	"github.com/alanyoungcy/polyredeem/internal/platform/polymarket"
	"github.com/alanyoungcy/polyredeem/internal/ratelimit"
	"github.com/alanyoungcy/polyredeem/internal/service"
	"github.com/ethereum/go-ethereum/common"
)

// Runner performs one redemption run for a wallet.
type Runner interface {
	Run(ctx context.Context, address string, mode domain.RunMode) (domain.RunSummary, error)
}

// Dependencies bundles everything the run modes need. It is constructed by
// Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// ProxyAddress is the Safe that holds the positions.
	ProxyAddress string

	Runner      Runner
	RateLimiter domain.RateLimiter
	// LockManager is nil when Redis is not configured.
	LockManager domain.LockManager
	Notifier    *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and unlocked credentials, and returns them together with a
// cleanup function that should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, bundle domain.CredentialBundle, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{ProxyAddress: bundle.ProxyAddress}

	// --- Signing ---
	signer, err := crypto.NewSigner(bundle.SigningKey, int64(cfg.Polymarket.ChainID))
	if err != nil {
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}
	closers = append(closers, signer.Destroy)
	auth := crypto.NewBuilderAuth(bundle)

	// --- Rate limiting and run locks ---
	limitCfg := ratelimit.Config{
		Limit:       cfg.RateLimit.Requests,
		Window:      cfg.RateLimit.Window.Duration,
		Burst:       cfg.RateLimit.Burst,
		BurstWindow: cfg.RateLimit.BurstWindow.Duration,
	}
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient, strings.ToLower(bundle.ProxyAddress), limitCfg)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		deps.RateLimiter = ratelimit.New(limitCfg)
	}

	// --- Polymarket clients ---
	dataClient := polymarket.NewDataClient(cfg.Polymarket.DataAPIHost, cfg.HTTP.RequestTimeout.Duration, logger)
	relayer := polymarket.NewRelayerClient(polymarket.RelayerConfig{
		BaseURL:        cfg.Polymarket.RelayerHost,
		RequestTimeout: cfg.HTTP.RequestTimeout.Duration,
		PollInterval:   cfg.Redeem.PollInterval.Duration,
	}, signer, auth, common.HexToAddress(bundle.ProxyAddress), logger)

	// --- Executor ---
	builder, err := executor.NewTxBuilder(executor.Contracts{
		CTF:            common.HexToAddress(cfg.Contracts.CTF),
		Collateral:     common.HexToAddress(cfg.Contracts.Collateral),
		NegRiskAdapter: common.HexToAddress(cfg.Contracts.NegRiskAdapter),
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: tx builder: %w", err)
	}
	submitter := executor.NewSubmitter(relayer, executor.DefaultBreakerConfig(), executor.SubmitterConfig{
		Retries:           cfg.HTTP.Retries,
		InitialBackoff:    cfg.HTTP.InitialBackoff.Duration,
		MaxBackoff:        cfg.HTTP.MaxBackoff.Duration,
		BackoffMultiplier: cfg.HTTP.BackoffMultiplier,
		LabelMaxLen:       cfg.Redeem.LabelMaxLen,
		Timeout:           cfg.Redeem.RedeemTimeout.Duration,
	}, logger)

	// --- Services ---
	positions := service.NewPositionService(dataClient, deps.RateLimiter, cfg.MinSizeDecimal(), logger)
	deps.Runner = service.NewRedeemService(positions, builder, submitter, deps.RateLimiter, service.RedeemOptions{
		Delay: cfg.Redeem.Delay.Duration,
	}, logger)

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
