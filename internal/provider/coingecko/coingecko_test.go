package coingecko_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/httpx"
	"ratewatch/internal/provider/coingecko"
	"ratewatch/internal/rate"
)

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "tether", r.URL.Query().Get("ids"))
		require.Equal(t, "rub", r.URL.Query().Get("vs_currencies"))
		fmt.Fprint(w, `{"tether":{"rub":98.12}}`)
	}))
	defer srv.Close()

	p := coingecko.New(coingecko.Config{URL: srv.URL}, httpx.New(5*time.Second))
	r, err := p.Fetch(context.Background(), "USDT/RUB")
	require.NoError(t, err)
	require.Equal(t, "grx", r.Provider)
	require.Equal(t, "98.12", r.Value.String())
	require.Equal(t, "RUB", r.Quote)
}

func TestFetch_CoinMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	p := coingecko.New(coingecko.Config{URL: srv.URL}, httpx.New(5*time.Second))
	_, err := p.Fetch(context.Background(), "BTC/RUB")
	require.Equal(t, rate.KindParseFailure, rate.KindOf(err))
}

func TestFetch_TooManyRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := coingecko.New(coingecko.Config{URL: srv.URL}, httpx.New(5*time.Second))
	_, err := p.Fetch(context.Background(), "ETH/RUB")
	require.Equal(t, rate.KindRateLimited, rate.KindOf(err))
}
