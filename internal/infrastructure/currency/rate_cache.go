package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flora/backend/internal/domain/currency"
	"github.com/flora/backend/internal/infrastructure/cache"
)

// StoreRateCache keeps the last known rate per pair in a cache.Store.
// Entries outlive the freshness TTL so a stale rate can be served while the
// provider is down.
type StoreRateCache struct {
	store     cache.Store
	retention time.Duration
}

// NewStoreRateCache creates a rate cache. A non-positive retention keeps rates forever.
func NewStoreRateCache(store cache.Store, retention time.Duration) *StoreRateCache {
	return &StoreRateCache{store: store, retention: retention}
}

func rateKey(base, target string) string {
	return "currency:" + base + ":" + target
}

// Get returns the cached rate or nil when none is stored
func (c *StoreRateCache) Get(ctx context.Context, base, target string) (*currency.Rate, error) {
	data, err := c.store.Get(ctx, rateKey(base, target))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r currency.Rate
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached rate: %w", err)
	}
	return &r, nil
}

// Set stores a rate
func (c *StoreRateCache) Set(ctx context.Context, r currency.Rate) error {
	r.Stale = false
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, rateKey(r.Base, r.Target), data, c.retention)
}

var _ currency.Cache = (*StoreRateCache)(nil)
