package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PositionLister reads redeemable holdings for a wallet.
type PositionLister interface {
	ListRedeemable(ctx context.Context, user string, minSize decimal.Decimal) ([]Holding, error)
}

// Relayer submits a call gaslessly under a human label and waits for the
// relayer to settle it.
type Relayer interface {
	Execute(ctx context.Context, call ChainCall, label string) (RelayReceipt, error)
}
