package executor

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the per-candidate relay circuit breaker.
type BreakerConfig struct {
	// ConsecutiveFailures trips the breaker after this many failed relay
	// calls in a row; 0 leaves it closed.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig trips after 3 consecutive relay failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute}
}

// NewRelayBreaker returns a circuit breaker that stops retrying a candidate
// the relayer keeps refusing. Each candidate gets its own breaker, so one
// candidate tripping never blocks the next.
func NewRelayBreaker(name string, cfg BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
}
