package ratelimit

import (
	"context"
	"sync"
	"time"

	"ratewatch/internal/rate"
)

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	P        rate.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) Name() string           { return m.P.Name() }
func (m *MinInterval) Symbols() []rate.Symbol { return m.P.Symbols() }

func (m *MinInterval) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	if m.Interval > 0 {
		m.mu.Lock()
		wait := time.Until(m.last.Add(m.Interval))
		m.mu.Unlock()
		if wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return rate.Rate{}, rate.Unreachable(m.P.Name(), symbol, ctx.Err())
			case <-t.C:
			}
		}
	}
	r, err := m.P.Fetch(ctx, symbol)
	if m.Interval > 0 {
		m.mu.Lock()
		m.last = time.Now()
		m.mu.Unlock()
	}
	return r, err
}
