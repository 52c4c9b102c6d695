package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/currency"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseSize caps the body read from the rate provider (1MB)
const maxResponseSize = 1 << 20

// ErrUnsupportedCurrency is returned when the provider has no rate for the target
var ErrUnsupportedCurrency = errors.New("currency: target not quoted by provider")

// latestResponse is the payload of GET {base_url}/latest/{base}
type latestResponse struct {
	Result         string                     `json:"result"`
	BaseCode       string                     `json:"base_code"`
	TimeLastUpdate int64                      `json:"time_last_update_unix"`
	Rates          map[string]decimal.Decimal `json:"rates"`
	ErrorType      string                     `json:"error-type"`
}

// HTTPProvider fetches rates from an open.er-api.com compatible endpoint
type HTTPProvider struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewHTTPProvider creates a provider. The client transport is traced.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now: time.Now,
	}
}

// Fetch returns the price of one base unit in target
func (p *HTTPProvider) Fetch(ctx context.Context, base, target string) (currency.Rate, error) {
	base = strings.ToUpper(base)
	target = strings.ToUpper(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/latest/"+base, nil)
	if err != nil {
		return currency.Rate{}, fmt.Errorf("failed to build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return currency.Rate{}, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return currency.Rate{}, fmt.Errorf("failed to read rate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return currency.Rate{}, fmt.Errorf("rate provider returned HTTP %d", resp.StatusCode)
	}

	var payload latestResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return currency.Rate{}, fmt.Errorf("failed to decode rate response: %w", err)
	}
	if payload.Result != "" && payload.Result != "success" {
		return currency.Rate{}, fmt.Errorf("rate provider error: %s", payload.ErrorType)
	}
	value, ok := payload.Rates[target]
	if !ok {
		return currency.Rate{}, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, target)
	}

	fetchedAt := p.now()
	return currency.NewRate(base, target, value, p.baseURL, fetchedAt)
}

var _ currency.Provider = (*HTTPProvider)(nil)
