package currency

import (
	"context"
	"strings"
	"time"

	"github.com/flora/backend/internal/domain/currency"
	"github.com/flora/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// BaseCurrency is the currency every quote is expressed for
const BaseCurrency = "USD"

// fetchTimeout bounds a provider call shared by concurrent callers
const fetchTimeout = 15 * time.Second

// Service serves the USD rate, refreshing it from the provider when the cached
// value is older than the TTL
type Service struct {
	provider currency.Provider
	cache    currency.Cache
	target   string
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a currency service
func NewService(provider currency.Provider, cache currency.Cache, target string, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		cache:    cache,
		target:   strings.ToUpper(target),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// USDRate returns the USD rate in the configured target currency.
// A stale value is returned with Stale set when the provider fails;
// shared.ErrUnavailable when there is no value at all.
func (s *Service) USDRate(ctx context.Context) (*currency.Rate, error) {
	cached, err := s.cache.Get(ctx, BaseCurrency, s.target)
	if err != nil {
		s.logger.Warn("failed to read cached exchange rate", zap.Error(err))
		cached = nil
	}
	if cached != nil && cached.Age(s.now()) < s.ttl {
		return cached, nil
	}

	rate, err := s.fetch(ctx)
	if err == nil {
		return rate, nil
	}

	if cached != nil {
		s.logger.Warn("exchange rate provider failed, serving stale rate",
			zap.Time("fetched_at", cached.FetchedAt),
			zap.Error(err),
		)
		stale := *cached
		stale.Stale = true
		return &stale, nil
	}
	s.logger.Error("exchange rate unavailable", zap.Error(err))
	return nil, shared.ErrUnavailable
}

// Refresh fetches the rate from the provider and caches it regardless of the
// age of the cached value
func (s *Service) Refresh(ctx context.Context) (*currency.Rate, error) {
	rate, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("exchange rate refreshed", zap.String("target", s.target), zap.String("rate", rate.Rate.String()))
	return rate, nil
}

// fetch collapses concurrent provider calls into one. The call runs detached
// from ctx since other callers may be waiting on it; ctx only bounds how long
// this caller waits.
func (s *Service) fetch(ctx context.Context) (*currency.Rate, error) {
	ch := s.group.DoChan(BaseCurrency+s.target, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		rate, err := s.provider.Fetch(fetchCtx, BaseCurrency, s.target)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(fetchCtx, rate); err != nil {
			s.logger.Warn("failed to cache exchange rate", zap.Error(err))
		}
		return rate, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		rate := res.Val.(currency.Rate)
		return &rate, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
