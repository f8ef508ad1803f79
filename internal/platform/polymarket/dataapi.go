package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/polyredeem/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultDataAPIURL is the public Data API root.
const DefaultDataAPIURL = "https://data-api.polymarket.com"

// positionsPageLimit is the largest page the Data API serves. Listing is a
// single request, so a full page may mean holdings were left out.
const positionsPageLimit = 500

// DataClient is the REST client for the Polymarket Data API, which reports
// wallet holdings.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDataClient creates a Data API client. A zero timeout falls back to 30s.
func NewDataClient(baseURL string, timeout time.Duration, logger *slog.Logger) *DataClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DataClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(slog.String("component", "data_api")),
	}
}

// ListRedeemable returns the redeemable holdings of user whose size exceeds
// minSize. It issues a single request and does not retry; any transport or
// status failure is reported as domain.ErrUpstreamUnavailable.
func (d *DataClient) ListRedeemable(ctx context.Context, user string, minSize decimal.Decimal) ([]domain.Holding, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("redeemable", "true")
	params.Set("sizeThreshold", minSize.String())
	params.Set("limit", fmt.Sprint(positionsPageLimit))

	body, err := doRequest(ctx, d.httpClient, http.MethodGet, d.baseURL+"/positions?"+params.Encode(), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: list positions: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	var rows []APIPosition
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	if len(rows) >= positionsPageLimit {
		d.logger.WarnContext(ctx, "positions page is full, some holdings may be missing",
			slog.Int("limit", positionsPageLimit),
		)
	}

	holdings := make([]domain.Holding, 0, len(rows))
	for i := range rows {
		if !rows[i].Redeemable || rows[i].ConditionID == "" {
			continue
		}
		holdings = append(holdings, rows[i].ToDomainHolding())
	}
	return holdings, nil
}

// Compile-time interface check.
var _ domain.PositionLister = (*DataClient)(nil)
