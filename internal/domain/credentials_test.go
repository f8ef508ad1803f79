package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSigningKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validBundle() CredentialBundle {
	return CredentialBundle{
		SigningKey:    testSigningKey,
		ProxyAddress:  "0x1111111111111111111111111111111111111111",
		APIKey:        "builder-key",
		APISecret:     "c2VjcmV0",
		APIPassphrase: "phrase",
	}
}

func TestCredentialBundleValidate(t *testing.T) {
	require.NoError(t, validBundle().Validate())

	tests := []struct {
		name   string
		mutate func(*CredentialBundle)
		want   string
	}{
		{"short key", func(b *CredentialBundle) { b.SigningKey = "0x1234" }, "signing key"},
		{"non-hex key", func(b *CredentialBundle) { b.SigningKey = "0x" + string(make([]byte, 64)) }, "signing key"},
		{"zero key", func(b *CredentialBundle) {
			b.SigningKey = "0x0000000000000000000000000000000000000000000000000000000000000000"
		}, "signing key"},
		{"bad proxy", func(b *CredentialBundle) { b.ProxyAddress = "0x12" }, "proxy address"},
		{"missing secret", func(b *CredentialBundle) { b.APISecret = "" }, "api secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := validBundle()
			tt.mutate(&b)
			err := b.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCredentialBundleNeverPrintsKey(t *testing.T) {
	b := validBundle()
	for _, out := range []string{b.String(), fmt.Sprintf("%v", b), fmt.Sprintf("%+v", b)} {
		require.NotContains(t, out, "4c08")
		require.NotContains(t, out, "c2VjcmV0")
	}
	require.Contains(t, b.String(), "key=****")
}
