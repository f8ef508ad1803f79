package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/google/uuid"
)

// CandidateSource lists the redemption candidates for a wallet.
type CandidateSource interface {
	FetchCandidates(ctx context.Context, address string) ([]domain.RedemptionCandidate, error)
}

// CallBuilder encodes the contract call for one candidate.
type CallBuilder interface {
	Build(c domain.RedemptionCandidate) (domain.ChainCall, error)
}

// CallSubmitter relays one call and classifies the result. It must not fail.
type CallSubmitter interface {
	Submit(ctx context.Context, call domain.ChainCall, c domain.RedemptionCandidate) domain.SubmissionResult
}

// RunState is the orchestrator's position in a run.
type RunState int

const (
	StateIdle RunState = iota
	StateCredentialsLoaded
	StateCandidatesFetched
	StateCheckModeDone
	StateSubmitting
	StateSummarized
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCredentialsLoaded:
		return "credentials_loaded"
	case StateCandidatesFetched:
		return "candidates_fetched"
	case StateCheckModeDone:
		return "check_mode_done"
	case StateSubmitting:
		return "submitting"
	case StateSummarized:
		return "summarized"
	}
	return fmt.Sprintf("RunState(%d)", int(s))
}

// RedeemOptions tunes the submission loop. Submissions are strictly
// sequential.
type RedeemOptions struct {
	// Delay is the cooldown between consecutive submissions.
	Delay time.Duration
}

// RedeemService drives one redemption run: fetch candidates, then either
// report them (check mode) or build, submit and record each in order. It is
// constructed only after the credential vault is unlocked.
type RedeemService struct {
	source    CandidateSource
	builder   CallBuilder
	submitter CallSubmitter
	limiter   domain.RateLimiter
	opts      RedeemOptions
	logger    *slog.Logger

	mu    sync.Mutex
	state RunState

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRedeemService wires the run loop.
func NewRedeemService(
	source CandidateSource,
	builder CallBuilder,
	submitter CallSubmitter,
	limiter domain.RateLimiter,
	opts RedeemOptions,
	logger *slog.Logger,
) *RedeemService {
	return &RedeemService{
		source:    source,
		builder:   builder,
		submitter: submitter,
		limiter:   limiter,
		opts:      opts,
		logger:    logger.With(slog.String("component", "redeem")),
		state:     StateCredentialsLoaded,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// State returns the state of the current or most recent run.
func (s *RedeemService) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run performs one run for address. The returned error is non-nil only for
// failures that abort the whole run (listing, rate-limit backend, or an
// unbuildable candidate); per-candidate relay failures are recorded in the
// summary instead.
//
// Cancelling ctx stops the run between candidates. A submission already
// handed to the relayer is allowed to finish and is recorded first.
func (s *RedeemService) Run(ctx context.Context, address string, mode domain.RunMode) (domain.RunSummary, error) {
	summary := domain.RunSummary{
		RunID:     uuid.NewString(),
		Mode:      mode,
		StartedAt: s.now(),
	}
	log := s.logger.With(slog.String("run_id", summary.RunID), slog.String("mode", string(mode)))
	s.transition(log, StateCredentialsLoaded)

	candidates, err := s.source.FetchCandidates(ctx, address)
	if err != nil {
		summary.UpstreamFailed = true
		return s.finish(log, summary), err
	}
	summary.Candidates = candidates
	s.transition(log, StateCandidatesFetched)

	if mode == domain.RunModeCheck {
		summary.Unattempted = candidates
		s.transition(log, StateCheckModeDone)
		return s.finish(log, summary), nil
	}

	s.transition(log, StateSubmitting)
	for i, c := range candidates {
		if ctx.Err() != nil {
			return s.interrupt(log, summary, candidates[i:]), nil
		}

		if err := s.limiter.Acquire(ctx); err != nil {
			if ctx.Err() != nil {
				return s.interrupt(log, summary, candidates[i:]), nil
			}
			return s.finish(log, summary), fmt.Errorf("service/redeem: rate limit: %w", err)
		}

		call, err := s.builder.Build(c)
		if err != nil {
			return s.finish(log, summary), fmt.Errorf("service/redeem: %w", err)
		}

		res := s.submitter.Submit(context.WithoutCancel(ctx), call, c)

		summary.Results = append(summary.Results, res)
		logResult(log, res)

		if i == len(candidates)-1 {
			break
		}
		if err := s.sleep(ctx, s.opts.Delay); err != nil {
			return s.interrupt(log, summary, candidates[i+1:]), nil
		}
	}

	return s.finish(log, summary), nil
}

func (s *RedeemService) interrupt(log *slog.Logger, summary domain.RunSummary, rest []domain.RedemptionCandidate) domain.RunSummary {
	summary.Interrupted = true
	summary.Unattempted = rest
	log.Warn("run interrupted", slog.Int("unattempted", len(rest)))
	return s.finish(log, summary)
}

func (s *RedeemService) finish(log *slog.Logger, summary domain.RunSummary) domain.RunSummary {
	summary.FinishedAt = s.now()
	s.transition(log, StateSummarized)
	log.Info("run summarized",
		slog.Int("candidates", len(summary.Candidates)),
		slog.Int("attempted", summary.Attempted()),
		slog.Int("succeeded", summary.Succeeded()),
		slog.Bool("exit_ok", summary.ExitOK()),
		slog.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary
}

func (s *RedeemService) transition(log *slog.Logger, next RunState) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	s.mu.Unlock()
	log.Debug("state", slog.String("from", prev.String()), slog.String("to", next.String()))
}

func logResult(log *slog.Logger, res domain.SubmissionResult) {
	attrs := []any{
		slog.String("market_id", res.Candidate.MarketID),
		slog.String("title", res.Candidate.Title),
		slog.Int("attempts", res.Attempts),
	}
	if res.Success() {
		log.Info("redeemed", append(attrs, slog.String("tx", res.TransactionRef))...)
		return
	}
	log.Warn("redemption failed", append(attrs,
		slog.String("failure", string(res.FailureKind)),
		slog.String("reason", res.FailureReason),
		slog.String("tx", res.TransactionRef),
	)...)
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
