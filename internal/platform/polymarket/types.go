package polymarket

import (
	"encoding/json"
	"strings"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/shopspring/decimal"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Data API
// responses work whether flags are sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Data API DTOs
// --------------------------------------------------------------------------

// APIPosition is one row of GET /positions on the Data API.
type APIPosition struct {
	ProxyWallet  string          `json:"proxyWallet"`
	Asset        string          `json:"asset"`
	ConditionID  string          `json:"conditionId"`
	Size         decimal.Decimal `json:"size"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	Title        string          `json:"title"`
	Outcome      string          `json:"outcome"`
	OutcomeIndex int             `json:"outcomeIndex"`
	NegativeRisk flexBool        `json:"negativeRisk"`
	Redeemable   flexBool        `json:"redeemable"`
}

// ToDomainHolding converts the DTO to a domain.Holding.
func (p APIPosition) ToDomainHolding() domain.Holding {
	return domain.Holding{
		MarketID:     p.ConditionID,
		Title:        p.Title,
		OutcomeLabel: p.Outcome,
		OutcomeIndex: p.OutcomeIndex,
		Size:         p.Size,
		CurrentValue: p.CurrentValue,
		NegativeRisk: bool(p.NegativeRisk),
		Redeemable:   bool(p.Redeemable),
	}
}

// --------------------------------------------------------------------------
// Relayer DTOs
// --------------------------------------------------------------------------

// relayerNonce is the body of GET /nonce.
type relayerNonce struct {
	Nonce json.Number `json:"nonce"`
}

// SignatureParams carries the Safe gas fields the relayer needs to rebuild
// the signed transaction.
type SignatureParams struct {
	GasPrice       string `json:"gasPrice"`
	Operation      string `json:"operation"`
	SafeTxnGas     string `json:"safeTxnGas"`
	BaseGas        string `json:"baseGas"`
	GasToken       string `json:"gasToken"`
	RefundReceiver string `json:"refundReceiver"`
}

// SubmitRequest is the body of POST /submit for a Safe transaction.
type SubmitRequest struct {
	From            string          `json:"from"`
	To              string          `json:"to"`
	ProxyWallet     string          `json:"proxyWallet"`
	Data            string          `json:"data"`
	Nonce           string          `json:"nonce"`
	Signature       string          `json:"signature"`
	SignatureParams SignatureParams `json:"signatureParams"`
	Type            string          `json:"type"`
	Metadata        string          `json:"metadata"`
}

// APIRelayerTransaction is the relayer's view of a submitted transaction,
// returned by POST /submit and GET /transaction.
type APIRelayerTransaction struct {
	TransactionID   string `json:"transactionID"`
	TransactionHash string `json:"transactionHash"`
	State           string `json:"state"`
}

// ToDomainReceipt converts the DTO to a domain.RelayReceipt.
func (t APIRelayerTransaction) ToDomainReceipt() domain.RelayReceipt {
	return domain.RelayReceipt{
		TransactionID:   t.TransactionID,
		TransactionHash: t.TransactionHash,
		State:           domain.RelayState(t.State),
	}
}
