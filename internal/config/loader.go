package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYREDEEM_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults are
// used as-is. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYREDEEM_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty).
func applyEnvOverrides(cfg *Config) {
	// ── Vault ──
	setStr(&cfg.Vault.Path, "POLYREDEEM_VAULT_PATH")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.DataAPIHost, "POLYREDEEM_POLYMARKET_DATA_API_HOST")
	setStr(&cfg.Polymarket.RelayerHost, "POLYREDEEM_POLYMARKET_RELAYER_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYREDEEM_POLYMARKET_CHAIN_ID")

	// ── Contracts ──
	setStr(&cfg.Contracts.CTF, "POLYREDEEM_CONTRACTS_CTF")
	setStr(&cfg.Contracts.Collateral, "POLYREDEEM_CONTRACTS_COLLATERAL")
	setStr(&cfg.Contracts.NegRiskAdapter, "POLYREDEEM_CONTRACTS_NEG_RISK_ADAPTER")

	// ── HTTP ──
	setDuration(&cfg.HTTP.RequestTimeout, "POLYREDEEM_HTTP_REQUEST_TIMEOUT")
	setInt(&cfg.HTTP.Retries, "POLYREDEEM_HTTP_RETRIES")
	setFloat64(&cfg.HTTP.BackoffMultiplier, "POLYREDEEM_HTTP_BACKOFF_MULTIPLIER")
	setDuration(&cfg.HTTP.InitialBackoff, "POLYREDEEM_HTTP_INITIAL_BACKOFF")
	setDuration(&cfg.HTTP.MaxBackoff, "POLYREDEEM_HTTP_MAX_BACKOFF")

	// ── Rate limit ──
	setInt(&cfg.RateLimit.Requests, "POLYREDEEM_RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "POLYREDEEM_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.Burst, "POLYREDEEM_RATE_LIMIT_BURST")
	setDuration(&cfg.RateLimit.BurstWindow, "POLYREDEEM_RATE_LIMIT_BURST_WINDOW")

	// ── Redeem ──
	setStr(&cfg.Redeem.MinSize, "POLYREDEEM_REDEEM_MIN_SIZE")
	setInt(&cfg.Redeem.MaxConcurrent, "POLYREDEEM_REDEEM_MAX_CONCURRENT")
	setDuration(&cfg.Redeem.Delay, "POLYREDEEM_REDEEM_DELAY")
	setDuration(&cfg.Redeem.CheckTimeout, "POLYREDEEM_REDEEM_CHECK_TIMEOUT")
	setDuration(&cfg.Redeem.RedeemTimeout, "POLYREDEEM_REDEEM_REDEEM_TIMEOUT")
	setDuration(&cfg.Redeem.Interval, "POLYREDEEM_REDEEM_INTERVAL")
	setInt(&cfg.Redeem.LabelMaxLen, "POLYREDEEM_REDEEM_LABEL_MAX_LEN")
	setDuration(&cfg.Redeem.PollInterval, "POLYREDEEM_REDEEM_POLL_INTERVAL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYREDEEM_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYREDEEM_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYREDEEM_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYREDEEM_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYREDEEM_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYREDEEM_REDIS_TLS_ENABLED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYREDEEM_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYREDEEM_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYREDEEM_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYREDEEM_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYREDEEM_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
