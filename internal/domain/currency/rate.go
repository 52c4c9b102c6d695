package currency

import (
	"context"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Rate is the price of one unit of Base expressed in Target
type Rate struct {
	Base      string          `json:"base"`
	Target    string          `json:"target"`
	Rate      decimal.Decimal `json:"rate"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
	Stale     bool            `json:"stale"`
}

// NewRate validates a fetched rate
func NewRate(base, target string, value decimal.Decimal, source string, fetchedAt time.Time) (Rate, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	target = strings.ToUpper(strings.TrimSpace(target))
	if len(base) != 3 || len(target) != 3 {
		return Rate{}, shared.NewDomainError("INVALID_CURRENCY", "Currency codes must have three letters")
	}
	if !value.IsPositive() {
		return Rate{}, shared.NewDomainError("INVALID_RATE", "Exchange rate must be positive")
	}
	return Rate{Base: base, Target: target, Rate: value, Source: source, FetchedAt: fetchedAt}, nil
}

// Age returns how old the rate is at now
func (r Rate) Age(now time.Time) time.Duration {
	return now.Sub(r.FetchedAt)
}

// Convert converts an amount of Base into Target
func (r Rate) Convert(amount decimal.Decimal) decimal.Decimal {
	return shared.RoundMoney(amount.Mul(r.Rate))
}

// Provider fetches live exchange rates
type Provider interface {
	Fetch(ctx context.Context, base, target string) (Rate, error)
}

// Cache stores the last known rate per pair
type Cache interface {
	Get(ctx context.Context, base, target string) (*Rate, error)
	Set(ctx context.Context, rate Rate) error
}
