// Package fetch pulls data from external providers under per-provider
// budgets, with two-tier caching and coalescing of concurrent requests.
package fetch

import (
	"context"
	"errors"

	"github.com/SolanaSergio/ApexBets-sub005/internal/cache"
	"github.com/SolanaSergio/ApexBets-sub005/internal/ratelimit"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrNoData is returned when every provider in the chain is exhausted or
// erroring. Callers receive this explicit miss, never fabricated data.
var ErrNoData = errors.New("no data available from any provider")

// ErrOverloaded is returned by provider calls that hit an overload signal
// (HTTP 429 or equivalent). The fetcher responds by putting the provider
// into cooldown and moving down the chain.
var ErrOverloaded = errors.New("provider overloaded")

// ProviderCall is one link in a priority-ordered fallback chain.
type ProviderCall struct {
	Provider string
	Fn       func(ctx context.Context) ([]byte, error)
}

// Fetcher is the rate-limited fetch/cache layer.
type Fetcher struct {
	cache   *cache.Cache
	budgets *ratelimit.Registry
	group   singleflight.Group
	log     *logrus.Logger
}

// New creates a fetcher over the given cache and budget registry.
func New(c *cache.Cache, budgets *ratelimit.Registry, log *logrus.Logger) *Fetcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Fetcher{cache: c, budgets: budgets, log: log}
}

// Get reads key from the cache tiers without touching any provider.
func (f *Fetcher) Get(ctx context.Context, key, dataType string) ([]byte, bool) {
	return f.cache.Get(ctx, key, dataType)
}

// Invalidate drops cached entries for a data type and scope.
func (f *Fetcher) Invalidate(ctx context.Context, dataType, scope string) {
	f.cache.Invalidate(ctx, dataType, scope)
}

// FetchAndCache returns the cached value for key or walks the provider
// chain to produce one. Concurrent callers for the same key are coalesced
// into a single in-flight fetch; all of them receive its result.
func (f *Fetcher) FetchAndCache(ctx context.Context, key, dataType, scope string, chain []ProviderCall) ([]byte, error) {
	if value, ok := f.cache.Get(ctx, key, dataType); ok {
		return value, nil
	}

	result, err, _ := f.group.Do(key, func() (interface{}, error) {
		// A coalesced waiter may arrive after the winner already populated
		// the cache.
		if value, ok := f.cache.Get(ctx, key, dataType); ok {
			return value, nil
		}
		return f.fetchChain(ctx, key, dataType, chain)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// fetchChain walks the fallback chain in priority order, skipping providers
// that are over budget or cooling down.
func (f *Fetcher) fetchChain(ctx context.Context, key, dataType string, chain []ProviderCall) ([]byte, error) {
	for _, call := range chain {
		entry := f.log.WithFields(logrus.Fields{
			"provider":  call.Provider,
			"data_type": dataType,
		})

		if budget := f.budgets.Get(call.Provider); budget != nil && !budget.Allow() {
			entry.Debug("provider over budget, trying next in chain")
			continue
		}

		value, err := call.Fn(ctx)
		if err != nil {
			if errors.Is(err, ErrOverloaded) {
				if budget := f.budgets.Get(call.Provider); budget != nil {
					budget.ReportOverload()
				}
				entry.Warn("provider overloaded, entering cooldown")
			} else {
				entry.WithError(err).Warn("provider call failed, trying next in chain")
			}
			continue
		}

		f.cache.Set(ctx, key, dataType, value)
		return value, nil
	}

	return nil, ErrNoData
}
