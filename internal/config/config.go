// Package config defines the top-level configuration for polyredeem and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/alanyoungcy/polyredeem/internal/notify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYREDEEM_* environment variables.
type Config struct {
	Vault      VaultConfig      `toml:"vault"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Contracts  ContractsConfig  `toml:"contracts"`
	HTTP       HTTPConfig       `toml:"http"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Redeem     RedeemConfig     `toml:"redeem"`
	Redis      RedisConfig      `toml:"redis"`
	Notify     NotifyConfig     `toml:"notify"`
	LogLevel   string           `toml:"log_level"`
}

// VaultConfig locates the encrypted credential file.
type VaultConfig struct {
	Path string `toml:"path"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	DataAPIHost string `toml:"data_api_host"`
	RelayerHost string `toml:"relayer_host"`
	ChainID     int    `toml:"chain_id"`
}

// ContractsConfig holds the on-chain redemption targets.
type ContractsConfig struct {
	CTF            string `toml:"ctf"`
	Collateral     string `toml:"collateral"`
	NegRiskAdapter string `toml:"neg_risk_adapter"`
}

// HTTPConfig holds outbound request and relay retry parameters.
type HTTPConfig struct {
	RequestTimeout    duration `toml:"request_timeout"`
	Retries           int      `toml:"retries"`
	BackoffMultiplier float64  `toml:"backoff_multiplier"`
	InitialBackoff    duration `toml:"initial_backoff"`
	MaxBackoff        duration `toml:"max_backoff"`
}

// RateLimitConfig bounds outbound calls per rolling window.
type RateLimitConfig struct {
	Requests    int      `toml:"requests"`
	Window      duration `toml:"window"`
	Burst       int      `toml:"burst"`
	BurstWindow duration `toml:"burst_window"`
}

// RedeemConfig holds run-loop parameters.
type RedeemConfig struct {
	// MinSize is the dust threshold, a decimal string such as "0.01".
	MinSize       string   `toml:"min_size"`
	// MaxConcurrent is reserved; submissions are always sequential.
	MaxConcurrent int      `toml:"max_concurrent"`
	Delay         duration `toml:"delay"`
	CheckTimeout  duration `toml:"check_timeout"`
	RedeemTimeout duration `toml:"redeem_timeout"`
	// Interval repeats redeem runs on a schedule; zero runs once.
	Interval     duration `toml:"interval"`
	LabelMaxLen  int      `toml:"label_max_len"`
	PollInterval duration `toml:"poll_interval"`
}

// RedisConfig holds Redis connection parameters. An empty Addr disables
// Redis and the limiter falls back to the in-process window.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in polyredeem.example.toml.
func Defaults() Config {
	return Config{
		Vault: VaultConfig{
			Path: ".encrypted_keys",
		},
		Polymarket: PolymarketConfig{
			DataAPIHost: "https://data-api.polymarket.com",
			RelayerHost: "https://relayer-v2.polymarket.com",
			ChainID:     137,
		},
		Contracts: ContractsConfig{
			CTF:            "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045",
			Collateral:     "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
			NegRiskAdapter: "0xd91E80cF2E7be2e162c6513ceD06f1dD0dA35296",
		},
		HTTP: HTTPConfig{
			RequestTimeout:    duration{30 * time.Second},
			Retries:           3,
			BackoffMultiplier: 2,
			InitialBackoff:    duration{time.Second},
			MaxBackoff:        duration{30 * time.Second},
		},
		RateLimit: RateLimitConfig{
			Requests:    10,
			Window:      duration{time.Minute},
			Burst:       3,
			BurstWindow: duration{time.Second},
		},
		Redeem: RedeemConfig{
			MinSize:       "0.01",
			MaxConcurrent: 1,
			Delay:         duration{2 * time.Second},
			CheckTimeout:  duration{115 * time.Second},
			RedeemTimeout: duration{120 * time.Second},
			LabelMaxLen:   40,
			PollInterval:  duration{2 * time.Second},
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			Events: []string{notify.EventRunSummary, notify.EventRedeemFailed},
		},
		LogLevel: "info",
	}
}

// validEvents enumerates the accepted values for NotifyConfig.Events.
var validEvents = map[string]bool{
	notify.EventRunSummary:   true,
	notify.EventRedeemFailed: true,
	notify.EventError:        true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// MinSizeDecimal parses Redeem.MinSize. Validate reports a malformed value.
func (c *Config) MinSizeDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Redeem.MinSize))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Vault
	if strings.TrimSpace(c.Vault.Path) == "" {
		errs = append(errs, "vault: path must not be empty")
	}

	// Polymarket endpoints
	if !isHTTPURL(c.Polymarket.DataAPIHost) {
		errs = append(errs, fmt.Sprintf("polymarket: data_api_host must be an http(s) URL, got %q", c.Polymarket.DataAPIHost))
	}
	if !isHTTPURL(c.Polymarket.RelayerHost) {
		errs = append(errs, fmt.Sprintf("polymarket: relayer_host must be an http(s) URL, got %q", c.Polymarket.RelayerHost))
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}

	// Contracts
	for name, addr := range map[string]string{
		"ctf":              c.Contracts.CTF,
		"collateral":       c.Contracts.Collateral,
		"neg_risk_adapter": c.Contracts.NegRiskAdapter,
	} {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("contracts: %s must be a hex address, got %q", name, addr))
		}
	}

	// HTTP
	if c.HTTP.RequestTimeout.Duration <= 0 {
		errs = append(errs, "http: request_timeout must be > 0")
	}
	if c.HTTP.Retries < 1 {
		errs = append(errs, "http: retries must be >= 1")
	}
	if c.HTTP.BackoffMultiplier < 1 {
		errs = append(errs, "http: backoff_multiplier must be >= 1")
	}
	if c.HTTP.InitialBackoff.Duration < 0 {
		errs = append(errs, "http: initial_backoff must be >= 0")
	}
	if c.HTTP.MaxBackoff.Duration < c.HTTP.InitialBackoff.Duration {
		errs = append(errs, "http: max_backoff must not be below initial_backoff")
	}

	// Rate limit
	if c.RateLimit.Requests < 1 {
		errs = append(errs, "rate_limit: requests must be >= 1")
	}
	if c.RateLimit.Window.Duration <= 0 {
		errs = append(errs, "rate_limit: window must be > 0")
	}
	if c.RateLimit.Burst < 0 {
		errs = append(errs, "rate_limit: burst must be >= 0")
	}
	if c.RateLimit.Burst > c.RateLimit.Requests {
		errs = append(errs, "rate_limit: burst must not exceed requests")
	}
	if c.RateLimit.Burst > 0 && c.RateLimit.BurstWindow.Duration <= 0 {
		errs = append(errs, "rate_limit: burst_window must be > 0 when burst is set")
	}

	// Redeem
	if d, err := decimal.NewFromString(strings.TrimSpace(c.Redeem.MinSize)); err != nil {
		errs = append(errs, fmt.Sprintf("redeem: min_size must be a decimal, got %q", c.Redeem.MinSize))
	} else if d.IsNegative() {
		errs = append(errs, "redeem: min_size must be >= 0")
	}
	if c.Redeem.MaxConcurrent < 1 {
		errs = append(errs, "redeem: max_concurrent must be >= 1")
	}
	if c.Redeem.Delay.Duration < 0 {
		errs = append(errs, "redeem: delay must be >= 0")
	}
	if c.Redeem.CheckTimeout.Duration <= 0 {
		errs = append(errs, "redeem: check_timeout must be > 0")
	}
	if c.Redeem.RedeemTimeout.Duration <= 0 {
		errs = append(errs, "redeem: redeem_timeout must be > 0")
	}
	if c.Redeem.Interval.Duration != 0 && c.Redeem.Interval.Duration < time.Minute {
		errs = append(errs, "redeem: interval must be 0 or at least 1m")
	}
	if c.Redeem.LabelMaxLen < 0 {
		errs = append(errs, "redeem: label_max_len must be >= 0")
	}
	if c.Redeem.PollInterval.Duration <= 0 {
		errs = append(errs, "redeem: poll_interval must be > 0")
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Notify.DiscordWebhookURL != "" && !isHTTPURL(c.Notify.DiscordWebhookURL) {
		errs = append(errs, "notify: discord_webhook_url must be an http(s) URL")
	}
	for _, ev := range c.Notify.Events {
		if !validEvents[ev] {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", domain.ErrConfigInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
