package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/crypto"
	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DefaultRelayerURL is the Polymarket builder relayer root.
const DefaultRelayerURL = "https://relayer-v2.polymarket.com"

const relayerTxTypeSafe = "SAFE"

// RelayerConfig configures the relayer client.
type RelayerConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	// PollInterval is the delay between status checks while waiting.
	PollInterval time.Duration
}

// RelayerClient submits Safe transactions through the Polymarket builder
// relayer, which executes them on-chain and pays the gas. The wallet owner
// only signs.
type RelayerClient struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration

	signer *crypto.Signer
	auth   *crypto.BuilderAuth
	proxy  common.Address
	logger *slog.Logger
}

// NewRelayerClient creates a relayer client that signs as signer for the
// Safe at proxy and authenticates with auth.
func NewRelayerClient(cfg RelayerConfig, signer *crypto.Signer, auth *crypto.BuilderAuth, proxy common.Address, logger *slog.Logger) *RelayerClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RelayerClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: timeout},
		pollInterval: poll,
		signer:       signer,
		auth:         auth,
		proxy:        proxy,
		logger:       logger.With(slog.String("component", "relayer")),
	}
}

// Execute signs call as a Safe transaction, submits it under label and waits
// for the relayer to settle it. It returns an error only when the relayer did
// not accept the request, so a failed Execute is always safe to repeat.
//
// When ctx ends before a terminal state is seen, Execute returns the last
// receipt it observed and a nil error.
func (r *RelayerClient) Execute(ctx context.Context, call domain.ChainCall, label string) (domain.RelayReceipt, error) {
	nonce, err := r.Nonce(ctx)
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("polymarket/relayer: %w", err)
	}

	receipt, err := r.Submit(ctx, call, label, nonce)
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("polymarket/relayer: %w", err)
	}
	r.logger.Info("relay accepted",
		slog.String("transaction_id", receipt.TransactionID),
		slog.String("label", label),
	)

	if receipt.State.Terminal() {
		return receipt, nil
	}
	return r.Wait(ctx, receipt)
}

// Nonce fetches the Safe nonce the relayer expects for the signer.
func (r *RelayerClient) Nonce(ctx context.Context) (*big.Int, error) {
	params := url.Values{}
	params.Set("address", r.signer.Address().Hex())
	params.Set("type", relayerTxTypeSafe)

	body, err := doRequest(ctx, r.httpClient, http.MethodGet, r.baseURL+"/nonce?"+params.Encode(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	var resp relayerNonce
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	nonce, ok := new(big.Int).SetString(resp.Nonce.String(), 10)
	if !ok {
		return nil, fmt.Errorf("decode nonce: invalid value %q", resp.Nonce)
	}
	return nonce, nil
}

// Submit signs and posts one call. It does not wait.
func (r *RelayerClient) Submit(ctx context.Context, call domain.ChainCall, label string, nonce *big.Int) (domain.RelayReceipt, error) {
	tx := crypto.SafeTx{
		To:        call.To,
		Data:      call.Data,
		Operation: crypto.SafeOperationCall,
		Nonce:     nonce,
	}
	sig, err := r.signer.SignSafeTx(r.proxy, tx)
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("sign safe tx: %w", err)
	}

	zero := common.Address{}.Hex()
	payload, err := json.Marshal(SubmitRequest{
		From:        r.signer.Address().Hex(),
		To:          call.To.Hex(),
		ProxyWallet: r.proxy.Hex(),
		Data:        hexutil.Encode(call.Data),
		Nonce:       nonce.String(),
		Signature:   sig,
		SignatureParams: SignatureParams{
			GasPrice:       "0",
			Operation:      fmt.Sprint(uint8(crypto.SafeOperationCall)),
			SafeTxnGas:     "0",
			BaseGas:        "0",
			GasToken:       zero,
			RefundReceiver: zero,
		},
		Type:     relayerTxTypeSafe,
		Metadata: label,
	})
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("marshal submit: %w", err)
	}

	const path = "/submit"
	headers := r.auth.Headers(http.MethodPost, path, string(payload))
	body, err := doRequest(ctx, r.httpClient, http.MethodPost, r.baseURL+path, payload, headers)
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("submit: %w", err)
	}

	var resp APIRelayerTransaction
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("decode submit: %w", err)
	}
	if resp.TransactionID == "" {
		return domain.RelayReceipt{}, errors.New("submit: relayer returned no transaction id")
	}
	return resp.ToDomainReceipt(), nil
}

// Wait polls the relayer until the transaction reaches a terminal state or
// ctx ends. Poll failures are logged and retried on the next tick.
func (r *RelayerClient) Wait(ctx context.Context, receipt domain.RelayReceipt) (domain.RelayReceipt, error) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Warn("stopped waiting for relay settlement",
				slog.String("transaction_id", receipt.TransactionID),
				slog.String("state", string(receipt.State)),
			)
			return receipt, nil
		case <-ticker.C:
		}

		latest, err := r.Status(ctx, receipt.TransactionID)
		if err != nil {
			r.logger.Debug("relay status poll failed",
				slog.String("transaction_id", receipt.TransactionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if latest.TransactionHash == "" {
			latest.TransactionHash = receipt.TransactionHash
		}
		receipt = latest
		if receipt.State.Terminal() {
			return receipt, nil
		}
	}
}

// Status fetches the relayer's current view of a transaction.
func (r *RelayerClient) Status(ctx context.Context, transactionID string) (domain.RelayReceipt, error) {
	params := url.Values{}
	params.Set("id", transactionID)

	body, err := doRequest(ctx, r.httpClient, http.MethodGet, r.baseURL+"/transaction?"+params.Encode(), nil, nil)
	if err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("get transaction: %w", err)
	}

	var txs []APIRelayerTransaction
	if err := json.Unmarshal(body, &txs); err != nil {
		return domain.RelayReceipt{}, fmt.Errorf("decode transaction: %w", err)
	}
	if len(txs) == 0 {
		return domain.RelayReceipt{}, fmt.Errorf("transaction %s: %w", transactionID, domain.ErrNotFound)
	}
	receipt := txs[0].ToDomainReceipt()
	if receipt.TransactionID == "" {
		receipt.TransactionID = transactionID
	}
	return receipt, nil
}

// Compile-time interface check.
var _ domain.Relayer = (*RelayerClient)(nil)
