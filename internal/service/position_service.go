package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/shopspring/decimal"
)

// PositionService turns a wallet's redeemable holdings into one redemption
// candidate per market.
type PositionService struct {
	lister  domain.PositionLister
	limiter domain.RateLimiter
	minSize decimal.Decimal
	logger  *slog.Logger
}

// NewPositionService creates a PositionService. Holdings at or below
// minSize are dropped. limiter may be nil.
func NewPositionService(
	lister domain.PositionLister,
	limiter domain.RateLimiter,
	minSize decimal.Decimal,
	logger *slog.Logger,
) *PositionService {
	return &PositionService{
		lister:  lister,
		limiter: limiter,
		minSize: minSize,
		logger:  logger.With(slog.String("component", "positions")),
	}
}

// FetchCandidates lists redeemable holdings for address once and groups
// them by market. Listing failures are returned unchanged and are fatal to
// the caller's run.
func (s *PositionService) FetchCandidates(ctx context.Context, address string) ([]domain.RedemptionCandidate, error) {
	if s.limiter != nil {
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("service/positions: rate limit: %w", err)
		}
	}

	holdings, err := s.lister.ListRedeemable(ctx, address, s.minSize)
	if err != nil {
		return nil, fmt.Errorf("service/positions: %w", err)
	}

	kept := holdings[:0:0]
	for _, h := range holdings {
		if h.Size.GreaterThan(s.minSize) {
			kept = append(kept, h)
		}
	}
	if dropped := len(holdings) - len(kept); dropped > 0 {
		s.logger.Debug("dust holdings dropped", slog.Int("count", dropped))
	}

	candidates := Aggregate(kept)
	s.logger.Info("redeemable positions listed",
		slog.Int("holdings", len(kept)),
		slog.Int("markets", len(candidates)),
	)
	return candidates, nil
}

// Aggregate groups holdings by market id. Markets appear in the order their
// first holding was seen, and outcomes keep their original order within a
// market. A market counts as multi-outcome if any of its holdings is
// flagged negative-risk.
func Aggregate(holdings []domain.Holding) []domain.RedemptionCandidate {
	type group struct {
		marketID string
		title    string
		multi    bool
		outcomes []domain.Outcome
	}

	index := make(map[string]int)
	var groups []*group

	for _, h := range holdings {
		i, ok := index[h.MarketID]
		if !ok {
			i = len(groups)
			index[h.MarketID] = i
			groups = append(groups, &group{marketID: h.MarketID})
		}
		g := groups[i]
		if g.title == "" {
			g.title = h.Title
		}
		g.multi = g.multi || h.NegativeRisk
		g.outcomes = append(g.outcomes, domain.Outcome{
			Label:        h.OutcomeLabel,
			Index:        h.OutcomeIndex,
			HeldSize:     h.Size,
			CurrentValue: h.CurrentValue,
		})
	}

	out := make([]domain.RedemptionCandidate, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.NewRedemptionCandidate(g.marketID, g.title, g.multi, g.outcomes))
	}
	return out
}
