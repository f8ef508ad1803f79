package polymarket

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const positionsJSON = `[
  {"proxyWallet":"0xabc","conditionId":"0xA","size":10,"currentValue":10,"title":"Market A","outcome":"Yes","outcomeIndex":0,"negativeRisk":false,"redeemable":true},
  {"proxyWallet":"0xabc","conditionId":"0xB","size":"5.5","currentValue":"5.5","title":"Market B","outcome":"No","outcomeIndex":1,"negativeRisk":"true","redeemable":true},
  {"proxyWallet":"0xabc","conditionId":"0xC","size":1,"currentValue":0,"title":"Market C","outcome":"Yes","outcomeIndex":0,"negativeRisk":false,"redeemable":false}
]`

func TestListRedeemable(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		gotQuery = map[string]string{
			"user":          r.URL.Query().Get("user"),
			"redeemable":    r.URL.Query().Get("redeemable"),
			"sizeThreshold": r.URL.Query().Get("sizeThreshold"),
			"limit":         r.URL.Query().Get("limit"),
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(positionsJSON))
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL, time.Second, nil)
	holdings, err := c.ListRedeemable(context.Background(), "0xabc", decimal.RequireFromString("0.01"))
	require.NoError(t, err)

	require.Equal(t, map[string]string{
		"user":          "0xabc",
		"redeemable":    "true",
		"sizeThreshold": "0.01",
		"limit":         "500",
	}, gotQuery)

	require.Len(t, holdings, 2)
	require.Equal(t, "0xA", holdings[0].MarketID)
	require.True(t, holdings[0].Size.Equal(decimal.NewFromInt(10)))
	require.False(t, holdings[0].NegativeRisk)
	require.Equal(t, "0xB", holdings[1].MarketID)
	require.Equal(t, "No", holdings[1].OutcomeLabel)
	require.Equal(t, 1, holdings[1].OutcomeIndex)
	require.True(t, holdings[1].Size.Equal(decimal.RequireFromString("5.5")))
	require.True(t, holdings[1].NegativeRisk)
}

func TestListRedeemableUpstreamFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewDataClient(srv.URL, time.Second, nil)
	_, err := c.ListRedeemable(context.Background(), "0xabc", decimal.Zero)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	require.Equal(t, 1, calls, "listing is not retried")
}

func TestListRedeemableBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	_, err := NewDataClient(srv.URL, time.Second, nil).ListRedeemable(context.Background(), "0xabc", decimal.Zero)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestListRedeemableUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewDataClient(url, time.Second, nil).ListRedeemable(context.Background(), "0xabc", decimal.Zero)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestListRedeemableWarnsOnFullPage(t *testing.T) {
	rows := make([]string, positionsPageLimit)
	for i := range rows {
		rows[i] = fmt.Sprintf(`{"conditionId":"0x%d","size":1,"currentValue":1,"title":"M","outcome":"Yes","outcomeIndex":0,"redeemable":true}`, i)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[" + strings.Join(rows, ",") + "]"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	c := NewDataClient(srv.URL, time.Second, slog.New(slog.NewTextHandler(&logs, nil)))
	holdings, err := c.ListRedeemable(context.Background(), "0xabc", decimal.Zero)
	require.NoError(t, err)
	require.Len(t, holdings, positionsPageLimit)
	require.Contains(t, logs.String(), "positions page is full")
}
