package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// CredentialBundle is the decrypted secret material needed to sign and to
// authenticate with the relayer. It only exists in memory after a vault
// unlock and must never be written or logged in clear.
//
// Field order is the canonical serialisation order.
type CredentialBundle struct {
	SigningKey    string `json:"privateKey"`
	ProxyAddress  string `json:"proxyAddress"`
	APIKey        string `json:"apiKey"`
	APISecret     string `json:"apiSecret"`
	APIPassphrase string `json:"apiPassphrase"`
}

// Validate checks that every field is present, that the signing key is a
// valid secp256k1 private key in hex and that the proxy is a hex address.
func (b CredentialBundle) Validate() error {
	var errs []string
	if _, err := ethcrypto.HexToECDSA(strings.TrimPrefix(b.SigningKey, "0x")); err != nil {
		errs = append(errs, "signing key must be a 32-byte hex private key")
	}
	if !common.IsHexAddress(b.ProxyAddress) {
		errs = append(errs, "proxy address must be a 20-byte hex address")
	}
	if b.APIKey == "" {
		errs = append(errs, "api key is required")
	}
	if b.APISecret == "" {
		errs = append(errs, "api secret is required")
	}
	if b.APIPassphrase == "" {
		errs = append(errs, "api passphrase is required")
	}
	if len(errs) > 0 {
		return errors.New("credential bundle: " + strings.Join(errs, "; "))
	}
	return nil
}

// String returns a redacted representation suitable for logging.
func (b CredentialBundle) String() string {
	return fmt.Sprintf("CredentialBundle{proxy=%s, key=****, apiKey=%s}",
		b.ProxyAddress, redact(b.APIKey))
}

// LogValue keeps secrets out of structured logs.
func (b CredentialBundle) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("proxy", b.ProxyAddress),
		slog.String("api_key", redact(b.APIKey)),
	)
}

func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
