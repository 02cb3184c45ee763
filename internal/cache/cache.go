// Package cache is the read-through rate cache. It shields callers from
// slow or broken sources: fresh entries are served without a network
// call, live fetches are collapsed per key and bounded by a timeout, and
// a failed refresh degrades to the last-known-good value instead of an
// error whenever one exists.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ratewatch/internal/rate"
	"ratewatch/internal/store"
)

const (
	DefaultTTL          = 300 * time.Second
	DefaultFetchTimeout = 15 * time.Second
)

// Store is the slice of the persistent store the cache needs.
type Store interface {
	GetCachedRate(ctx context.Context, provider, symbol string) (*store.CachedRate, error)
	UpsertCachedRate(ctx context.Context, provider, symbol string, rateData []byte, fetchedAt time.Time) error
}

// Resolver resolves a provider id to its adapter.
type Resolver interface {
	Resolve(id string) (rate.Provider, error)
}

type Cache struct {
	store     Store
	providers Resolver
	ttl       time.Duration
	timeout   time.Duration
	log       *zap.Logger

	group singleflight.Group
}

func New(st Store, providers Resolver, ttl, fetchTimeout time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: st, providers: providers, ttl: ttl, timeout: fetchTimeout, log: log}
}

// GetOrFetch returns the rate for (provider, symbol), serving the cached
// entry when it is within the TTL and refreshing it live otherwise.
// Concurrent calls for the same key collapse to one in-flight fetch.
func (c *Cache) GetOrFetch(ctx context.Context, provider, symbol string) (rate.Rate, error) {
	// A stale menu selection naming a removed provider is a caller
	// error, not a transient failure.
	adapter, err := c.providers.Resolve(provider)
	if err != nil {
		return rate.Rate{}, err
	}

	if r, ok, err := c.lookup(ctx, provider, symbol); err != nil {
		return rate.Rate{}, err
	} else if ok {
		c.log.Debug("cache hit", zap.String("provider", provider), zap.String("symbol", symbol))
		return r, nil
	}

	key := provider + "\x00" + symbol
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Another flight may have refreshed the row while this caller
		// queued up.
		if r, ok, err := c.lookup(ctx, provider, symbol); err == nil && ok {
			return r, nil
		}
		return c.refresh(ctx, adapter, provider, symbol)
	})
	if err != nil {
		return rate.Rate{}, err
	}
	return v.(rate.Rate), nil
}

// lookup reads the persistent row and reports whether it is fresh.
func (c *Cache) lookup(ctx context.Context, provider, symbol string) (rate.Rate, bool, error) {
	row, err := c.store.GetCachedRate(ctx, provider, symbol)
	if err != nil {
		return rate.Rate{}, false, fmt.Errorf("cache read %s/%s: %w", provider, symbol, err)
	}
	if row == nil || time.Since(row.FetchedAt) > c.ttl {
		return rate.Rate{}, false, nil
	}
	r, err := decode(row)
	if err != nil {
		// A corrupt row is treated as a miss; the next fetch overwrites it.
		c.log.Warn("corrupt cache entry",
			zap.String("provider", provider), zap.String("symbol", symbol), zap.Error(err))
		return rate.Rate{}, false, nil
	}
	return r, true, nil
}

// refresh performs the live fetch, upserts on success, and degrades to
// the stale entry on failure when one exists.
func (c *Cache) refresh(ctx context.Context, adapter rate.Provider, provider, symbol string) (rate.Rate, error) {
	c.log.Info("fetching", zap.String("provider", provider), zap.String("symbol", symbol))

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	r, fetchErr := adapter.Fetch(fetchCtx, symbol)
	if fetchErr == nil {
		data, err := json.Marshal(r)
		if err != nil {
			return rate.Rate{}, fmt.Errorf("encode rate %s/%s: %w", provider, symbol, err)
		}
		if err := c.store.UpsertCachedRate(ctx, provider, symbol, data, r.FetchedAt); err != nil {
			// The caller still gets the fresh rate; only persistence failed.
			c.log.Error("cache write failed",
				zap.String("provider", provider), zap.String("symbol", symbol), zap.Error(err))
		}
		return r, nil
	}

	row, err := c.store.GetCachedRate(ctx, provider, symbol)
	if err != nil || row == nil {
		return rate.Rate{}, fetchErr
	}
	stale, err := decode(row)
	if err != nil {
		return rate.Rate{}, fetchErr
	}
	stale.Stale = true
	stale.StaleFor = time.Since(row.FetchedAt)
	c.log.Warn("serving stale rate",
		zap.String("provider", provider),
		zap.String("symbol", symbol),
		zap.Duration("age", stale.StaleFor),
		zap.Error(fetchErr))
	return stale, nil
}

func decode(row *store.CachedRate) (rate.Rate, error) {
	var r rate.Rate
	if err := json.Unmarshal(row.RateData, &r); err != nil {
		return rate.Rate{}, err
	}
	return r, nil
}
