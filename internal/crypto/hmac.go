package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
)

// Builder relayer authentication header names.
const (
	HeaderBuilderAPIKey     = "POLY_BUILDER_API_KEY"
	HeaderBuilderTimestamp  = "POLY_BUILDER_TIMESTAMP"
	HeaderBuilderPassphrase = "POLY_BUILDER_PASSPHRASE"
	HeaderBuilderSignature  = "POLY_BUILDER_SIGNATURE"
)

// BuilderAuth holds the API credentials that authenticate requests against
// the Polymarket builder relayer.
type BuilderAuth struct {
	Key        string
	Secret     string // base64 (url-safe or standard); raw bytes as a fallback
	Passphrase string

	now func() time.Time
}

// NewBuilderAuth takes the API credentials out of an unlocked bundle.
func NewBuilderAuth(b domain.CredentialBundle) *BuilderAuth {
	return &BuilderAuth{Key: b.APIKey, Secret: b.APISecret, Passphrase: b.APIPassphrase}
}

// Headers returns the HTTP headers for a relayer request. The signature is
// HMAC-SHA256(secret, timestamp+method+path+body) in url-safe base64.
func (h *BuilderAuth) Headers(method, path, body string) map[string]string {
	now := time.Now
	if h.now != nil {
		now = h.now
	}
	return h.HeadersAt(method, path, body, now().Unix())
}

// HeadersAt is like Headers but lets the caller supply the Unix timestamp.
func (h *BuilderAuth) HeadersAt(method, path, body string, unixTS int64) map[string]string {
	ts := strconv.FormatInt(unixTS, 10)
	sig := hmacSHA256Base64(h.secretBytes(), ts+method+path+body)

	return map[string]string{
		HeaderBuilderAPIKey:     h.Key,
		HeaderBuilderTimestamp:  ts,
		HeaderBuilderPassphrase: h.Passphrase,
		HeaderBuilderSignature:  sig,
	}
}

// String returns a redacted representation suitable for logging.
func (h *BuilderAuth) String() string {
	redact := func(s string) string {
		if len(s) <= 4 {
			return "****"
		}
		return s[:4] + "****"
	}
	return fmt.Sprintf("BuilderAuth{key=%s, secret=%s}", redact(h.Key), redact(h.Secret))
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (h *BuilderAuth) secretBytes() []byte {
	if b, err := base64.URLEncoding.DecodeString(h.Secret); err == nil {
		return b
	}
	if b, err := base64.StdEncoding.DecodeString(h.Secret); err == nil {
		return b
	}
	// Fall back to raw bytes so the caller gets an obviously-wrong signature
	// rather than a panic.
	return []byte(h.Secret)
}

// hmacSHA256Base64 computes HMAC-SHA256 of message using key and returns the
// result as url-safe base64.
func hmacSHA256Base64(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
