package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/sony/gobreaker"
)

const labelEllipsis = "..."

// SubmitterConfig controls retries and labelling of relay submissions.
type SubmitterConfig struct {
	// Retries is the maximum number of attempts per candidate (at least 1).
	Retries           int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// LabelMaxLen caps the relay label in runes; 0 disables truncation.
	LabelMaxLen int
	// Timeout bounds one candidate's send and wait; 0 means no bound.
	Timeout time.Duration
}

// Submitter sends one redemption call through the relayer and classifies
// the outcome. It never returns an error: every failure is folded into the
// SubmissionResult so one bad candidate cannot abort a run.
type Submitter struct {
	relayer domain.Relayer
	breaker BreakerConfig
	cfg     SubmitterConfig
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewSubmitter wires a relayer. Every Submit call guards its retries with a
// fresh breaker built from breaker.
func NewSubmitter(relayer domain.Relayer, breaker BreakerConfig, cfg SubmitterConfig, logger *slog.Logger) *Submitter {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	return &Submitter{
		relayer: relayer,
		breaker: breaker,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "submitter")),
		sleep:   sleepCtx,
	}
}

// Submit sends call for candidate c. Attempts are repeated only while the
// relayer has not handed back any transaction reference; once it has, the
// call may already be on its way to the chain and is never sent again.
func (s *Submitter) Submit(ctx context.Context, call domain.ChainCall, c domain.RedemptionCandidate) domain.SubmissionResult {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	label := TruncateLabel(c.Label(), s.cfg.LabelMaxLen)
	log := s.logger.With(
		slog.String("market_id", c.MarketID),
		slog.String("kind", string(call.Kind)),
	)

	breaker := NewRelayBreaker("relayer:"+c.MarketID, s.breaker, log)

	var lastErr error
	attempts := 0
	for attempts < s.cfg.Retries {
		out, err := breaker.Execute(func() (interface{}, error) {
			attempts++
			return s.relayer.Execute(ctx, call, label)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		receipt, _ := out.(domain.RelayReceipt)

		if err == nil {
			res := classify(c, receipt)
			res.Attempts = attempts
			return res
		}

		lastErr = err
		log.Warn("relay attempt failed",
			slog.Int("attempt", attempts),
			slog.String("error", err.Error()),
		)

		if receipt.TransactionID != "" || receipt.TransactionHash != "" {
			break
		}
		if attempts >= s.cfg.Retries || breaker.State() == gobreaker.StateOpen {
			break
		}
		if err := s.sleep(ctx, s.backoff(attempts)); err != nil {
			break
		}
	}

	return domain.SubmissionResult{
		Candidate:     c,
		Settled:       false,
		FailureKind:   domain.FailureRelayError,
		FailureReason: fmt.Errorf("%w: %w", domain.ErrRelaySubmissionFailed, lastErr).Error(),
		Attempts:      attempts,
	}
}

// classify maps a settled relay receipt onto a SubmissionResult.
func classify(c domain.RedemptionCandidate, r domain.RelayReceipt) domain.SubmissionResult {
	res := domain.SubmissionResult{Candidate: c, TransactionRef: r.TransactionHash}

	switch {
	case r.State == domain.RelayStateInvalid:
		res.FailureKind = domain.FailureRelayRejected
		res.FailureReason = fmt.Sprintf("relayer rejected transaction %s", r.TransactionID)
	case r.State == domain.RelayStateFailed:
		res.Settled = true
		if res.TransactionRef == "" {
			res.TransactionRef = r.TransactionID
		}
		res.FailureKind = domain.FailureChainReverted
		res.FailureReason = "transaction failed on chain"
	case r.TransactionHash == "":
		res.FailureKind = domain.FailureNoReference
		res.FailureReason = fmt.Sprintf("no transaction hash after waiting (relay id %q, state %q)",
			r.TransactionID, r.State)
	default:
		res.Settled = true
	}
	return res
}

// backoff returns the delay before attempt n+1.
func (s *Submitter) backoff(n int) time.Duration {
	d := float64(s.cfg.InitialBackoff) * math.Pow(s.cfg.BackoffMultiplier, float64(n-1))
	if s.cfg.MaxBackoff > 0 && d > float64(s.cfg.MaxBackoff) {
		return s.cfg.MaxBackoff
	}
	return time.Duration(d)
}

// TruncateLabel shortens label to at most limit runes, ending in "..." when
// cut. limit <= 0 leaves it unchanged.
func TruncateLabel(label string, limit int) string {
	runes := []rune(label)
	if limit <= 0 || len(runes) <= limit {
		return label
	}
	if limit <= len(labelEllipsis) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(labelEllipsis)]) + labelEllipsis
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
