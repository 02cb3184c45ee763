package ratelimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/provider/ratelimit"
	"ratewatch/internal/rate"
)

type stubProvider struct {
	mu    sync.Mutex
	calls []time.Time
}

func (s *stubProvider) Name() string           { return "stub" }
func (s *stubProvider) Symbols() []rate.Symbol { return []rate.Symbol{{Code: "USD/RUB"}} }

func (s *stubProvider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	s.mu.Lock()
	s.calls = append(s.calls, time.Now())
	s.mu.Unlock()
	return rate.Rate{Provider: "stub", Symbol: symbol}, nil
}

func TestMinInterval_SpacesCalls(t *testing.T) {
	stub := &stubProvider{}
	p := &ratelimit.MinInterval{P: stub, Interval: 50 * time.Millisecond}

	_, err := p.Fetch(context.Background(), "USD/RUB")
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), "USD/RUB")
	require.NoError(t, err)

	require.Len(t, stub.calls, 2)
	gap := stub.calls[1].Sub(stub.calls[0])
	require.GreaterOrEqual(t, gap, 45*time.Millisecond)
}

func TestMinInterval_CanceledWait(t *testing.T) {
	stub := &stubProvider{}
	p := &ratelimit.MinInterval{P: stub, Interval: time.Minute}

	_, err := p.Fetch(context.Background(), "USD/RUB")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx, "USD/RUB")
	require.Equal(t, rate.KindUnreachable, rate.KindOf(err))
	require.Len(t, stub.calls, 1)
}

func TestTokenBucket_BurstThenThrottle(t *testing.T) {
	stub := &stubProvider{}
	p := &ratelimit.TokenBucketProvider{P: stub, TB: ratelimit.NewTokenBucket(1000, 2)}

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := p.Fetch(context.Background(), "USD/RUB")
		require.NoError(t, err)
	}
	// Two burst tokens are free; the third call waits roughly 1ms for a refill.
	require.Len(t, stub.calls, 3)
	require.Less(t, time.Since(start), time.Second)
}

func TestTokenBucket_CanceledWaitIsRateLimited(t *testing.T) {
	stub := &stubProvider{}
	p := &ratelimit.TokenBucketProvider{P: stub, TB: ratelimit.NewTokenBucket(0.001, 1)}

	_, err := p.Fetch(context.Background(), "USD/RUB")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Fetch(ctx, "USD/RUB")
	require.Equal(t, rate.KindRateLimited, rate.KindOf(err))
}

func TestWrappersForwardIdentity(t *testing.T) {
	stub := &stubProvider{}
	mi := &ratelimit.MinInterval{P: stub}
	tb := &ratelimit.TokenBucketProvider{P: stub}
	require.Equal(t, "stub", mi.Name())
	require.Equal(t, "stub", tb.Name())
	require.Equal(t, stub.Symbols(), mi.Symbols())
	require.Equal(t, stub.Symbols(), tb.Symbols())
}
