package domain

import "github.com/shopspring/decimal"

// Holding is one redeemable position row as reported by the position
// listing service.
type Holding struct {
	MarketID     string
	Title        string
	OutcomeLabel string
	OutcomeIndex int
	Size         decimal.Decimal
	CurrentValue decimal.Decimal
	NegativeRisk bool
	Redeemable   bool
}

// Outcome is one held outcome inside a redemption candidate.
type Outcome struct {
	Label        string
	Index        int
	HeldSize     decimal.Decimal
	CurrentValue decimal.Decimal
}

// RedemptionCandidate is one market with at least one redeemable holding.
// Totals are computed at construction and the outcome list is only exposed
// as a copy, so a candidate never changes after it is built.
type RedemptionCandidate struct {
	MarketID       string
	Title          string
	IsMultiOutcome bool

	outcomes   []Outcome
	totalSize  decimal.Decimal
	totalValue decimal.Decimal
}

// NewRedemptionCandidate builds a candidate and sums its outcomes.
func NewRedemptionCandidate(marketID, title string, multiOutcome bool, outcomes []Outcome) RedemptionCandidate {
	c := RedemptionCandidate{
		MarketID:       marketID,
		Title:          title,
		IsMultiOutcome: multiOutcome,
		outcomes:       append([]Outcome(nil), outcomes...),
		totalSize:      decimal.Zero,
		totalValue:     decimal.Zero,
	}
	for _, o := range outcomes {
		c.totalSize = c.totalSize.Add(o.HeldSize)
		c.totalValue = c.totalValue.Add(o.CurrentValue)
	}
	return c
}

// Outcomes returns the held outcomes in first-seen order.
func (c RedemptionCandidate) Outcomes() []Outcome {
	return append([]Outcome(nil), c.outcomes...)
}

func (c RedemptionCandidate) TotalSize() decimal.Decimal  { return c.totalSize }
func (c RedemptionCandidate) TotalValue() decimal.Decimal { return c.totalValue }

// Label is the human-readable tag attached to a relay submission.
func (c RedemptionCandidate) Label() string {
	if c.Title != "" {
		return c.Title
	}
	return c.MarketID
}
