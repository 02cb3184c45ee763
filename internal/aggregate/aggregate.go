// Package aggregate answers "all rates for user U" by fanning the
// watchlist out over the cache and reassembling per-subscription results
// in listing order, failures included.
package aggregate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"ratewatch/internal/rate"
	"ratewatch/internal/store"
)

const DefaultMaxConcurrent = 8

// Fetcher is the cache surface the aggregator dispatches to.
type Fetcher interface {
	GetOrFetch(ctx context.Context, provider, symbol string) (rate.Rate, error)
}

// SubscriptionLister enumerates a user's watchlist.
type SubscriptionLister interface {
	ListSubscriptions(ctx context.Context, telegramID int64) ([]store.Subscription, error)
}

// Entry is one report slot. Exactly one of Rate and Err is meaningful.
type Entry struct {
	Provider string
	Symbol   string
	Rate     rate.Rate
	Err      error
}

// Report holds one Entry per subscription, in listing order regardless
// of completion order.
type Report struct {
	Entries []Entry
}

type Aggregator struct {
	subs          SubscriptionLister
	cache         Fetcher
	maxConcurrent int
	log           *zap.Logger
}

func New(subs SubscriptionLister, cache Fetcher, maxConcurrent int, log *zap.Logger) *Aggregator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{subs: subs, cache: cache, maxConcurrent: maxConcurrent, log: log}
}

// RatesFor resolves every pair on the user's watchlist concurrently.
// Individual failures land in their slot; only a store enumeration
// failure aborts the whole report. A user with no subscriptions gets an
// empty report.
func (a *Aggregator) RatesFor(ctx context.Context, userID int64) (Report, error) {
	subs, err := a.subs.ListSubscriptions(ctx, userID)
	if err != nil {
		return Report{}, err
	}
	if len(subs) == 0 {
		return Report{Entries: []Entry{}}, nil
	}

	entries := make([]Entry, len(subs))
	sem := make(chan struct{}, a.maxConcurrent)
	var wg sync.WaitGroup
	for i, s := range subs {
		entries[i] = Entry{Provider: s.Provider, Symbol: s.Symbol}
		wg.Add(1)
		go func(i int, provider, symbol string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				entries[i].Err = ctx.Err()
				return
			}
			r, err := a.cache.GetOrFetch(ctx, provider, symbol)
			if err != nil {
				a.log.Warn("rate unavailable",
					zap.String("provider", provider), zap.String("symbol", symbol), zap.Error(err))
				entries[i].Err = err
				return
			}
			entries[i].Rate = r
		}(i, s.Provider, s.Symbol)
	}
	wg.Wait()

	return Report{Entries: entries}, nil
}
