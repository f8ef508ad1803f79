package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func holding(market, label string, idx int, size, value string) domain.Holding {
	return domain.Holding{
		MarketID:     market,
		Title:        "Market " + market,
		OutcomeLabel: label,
		OutcomeIndex: idx,
		Size:         decimal.RequireFromString(size),
		CurrentValue: decimal.RequireFromString(value),
		Redeemable:   true,
	}
}

func TestAggregateGroupsInFirstSeenOrder(t *testing.T) {
	got := Aggregate([]domain.Holding{
		holding("mktA", "YES", 0, "10", "10"),
		holding("mktB", "YES", 0, "5", "5"),
		holding("mktA", "NO", 1, "0", "0"),
	})

	require.Len(t, got, 2)

	a := got[0]
	require.Equal(t, "mktA", a.MarketID)
	require.Equal(t, "Market mktA", a.Title)
	require.Len(t, a.Outcomes(), 2)
	require.Equal(t, "YES", a.Outcomes()[0].Label)
	require.Equal(t, "NO", a.Outcomes()[1].Label)
	require.True(t, a.TotalValue().Equal(decimal.NewFromInt(10)))
	require.True(t, a.TotalSize().Equal(decimal.NewFromInt(10)))

	b := got[1]
	require.Equal(t, "mktB", b.MarketID)
	require.Len(t, b.Outcomes(), 1)
	require.True(t, b.TotalValue().Equal(decimal.NewFromInt(5)))
}

func TestAggregateTotalsAreExactSums(t *testing.T) {
	got := Aggregate([]domain.Holding{
		holding("m", "A", 0, "0.1", "0.1"),
		holding("m", "B", 1, "0.2", "0.2"),
	})
	require.Len(t, got, 1)
	require.Equal(t, "0.3", got[0].TotalSize().String())
	require.Equal(t, "0.3", got[0].TotalValue().String())
}

func TestAggregateMultiOutcomeFlag(t *testing.T) {
	h1 := holding("m", "A", 0, "1", "1")
	h2 := holding("m", "B", 1, "1", "1")
	h2.NegativeRisk = true

	got := Aggregate([]domain.Holding{h1, h2})
	require.Len(t, got, 1)
	require.True(t, got[0].IsMultiOutcome)
}

func TestAggregateEmpty(t *testing.T) {
	require.Empty(t, Aggregate(nil))
}

func TestCandidateOutcomesAreCopied(t *testing.T) {
	got := Aggregate([]domain.Holding{holding("m", "A", 0, "1", "1")})
	outs := got[0].Outcomes()
	outs[0].Label = "mutated"
	require.Equal(t, "A", got[0].Outcomes()[0].Label)
}

type stubLister struct {
	holdings []domain.Holding
	err      error
	calls    int
	minSize  decimal.Decimal
}

func (s *stubLister) ListRedeemable(_ context.Context, _ string, minSize decimal.Decimal) ([]domain.Holding, error) {
	s.calls++
	s.minSize = minSize
	return s.holdings, s.err
}

func TestFetchCandidates(t *testing.T) {
	lister := &stubLister{holdings: []domain.Holding{holding("m", "A", 0, "1", "1")}}
	svc := NewPositionService(lister, nil, decimal.RequireFromString("0.01"), discardLogger())

	got, err := svc.FetchCandidates(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 1, lister.calls)
	require.Equal(t, "0.01", lister.minSize.String())
}

func TestFetchCandidatesDropsDust(t *testing.T) {
	lister := &stubLister{holdings: []domain.Holding{
		holding("a", "YES", 0, "0.005", "0.005"),
		holding("b", "YES", 0, "0.01", "0.01"),
		holding("c", "NO", 1, "0.011", "0.011"),
		holding("a", "NO", 1, "3", "3"),
	}}
	svc := NewPositionService(lister, nil, decimal.RequireFromString("0.01"), discardLogger())

	got, err := svc.FetchCandidates(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].MarketID)
	require.Len(t, got[0].Outcomes(), 1)
	require.Equal(t, "NO", got[0].Outcomes()[0].Label)
	require.Equal(t, "c", got[1].MarketID)
}

func TestFetchCandidatesUpstreamFailure(t *testing.T) {
	lister := &stubLister{err: fmtUpstream()}
	svc := NewPositionService(lister, nil, decimal.Zero, discardLogger())

	_, err := svc.FetchCandidates(context.Background(), "0xabc")
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Equal(t, 1, lister.calls)
}

func fmtUpstream() error {
	return errors.Join(domain.ErrUpstreamUnavailable, errors.New("502 bad gateway"))
}
