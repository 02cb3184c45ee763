package binance_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"ratewatch/internal/httpx"
	"ratewatch/internal/provider/binance"
	"ratewatch/internal/rate"
)

func TestFetchSpot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"64250.10"}`)
	}))
	defer srv.Close()

	p := binance.New(binance.Config{SpotURL: srv.URL}, httpx.New(5*time.Second))
	r, err := p.Fetch(context.Background(), "BTC/USDT")
	require.NoError(t, err)
	require.Equal(t, "binance", r.Provider)
	require.Equal(t, "64250.1", r.Value.String())
	require.Equal(t, "USDT", r.Quote)
}

func TestFetchSpot_ErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer srv.Close()

	p := binance.New(binance.Config{SpotURL: srv.URL}, httpx.New(5*time.Second))
	_, err := p.Fetch(context.Background(), "ETH/USDT")
	require.Equal(t, rate.KindParseFailure, rate.KindOf(err))
}

func TestFetchP2P_MedianOfBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var search map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&search))
		require.Equal(t, "USDT", search["asset"])
		require.Equal(t, "RUB", search["fiat"])
		require.Equal(t, "BUY", search["tradeType"])

		// Ads arrive unsorted. Sorted: 95..99, median (index 2) is 97.
		var ads []string
		for _, price := range []string{"99.0", "95.5", "97.0", "98.2", "96.1"} {
			ads = append(ads, fmt.Sprintf(`{"adv":{"price":"%s"}}`, price))
		}
		fmt.Fprintf(w, `{"data":[%s]}`, strings.Join(ads, ","))
	}))
	defer srv.Close()

	p := binance.New(binance.Config{P2PURL: srv.URL}, httpx.New(5*time.Second))
	r, err := p.Fetch(context.Background(), "P2P USDT/RUB")
	require.NoError(t, err)
	require.Equal(t, "97", r.Value.String())
	require.Equal(t, "RUB", r.Quote)
}

func TestFetchP2P_EmptyBoard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	p := binance.New(binance.Config{P2PURL: srv.URL}, httpx.New(5*time.Second))
	_, err := p.Fetch(context.Background(), "P2P USDT/RUB")
	require.Equal(t, rate.KindParseFailure, rate.KindOf(err))
}

func TestFetch_BanStatusIsRateLimited(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := httpx.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Return(&http.Response{
		StatusCode: http.StatusTeapot,
		Body:       io.NopCloser(strings.NewReader("banned")),
	}, nil)

	p := binance.New(binance.Config{}, &httpx.Client{HTTP: doer})
	_, err := p.Fetch(context.Background(), "BTC/USDT")
	require.Equal(t, rate.KindRateLimited, rate.KindOf(err))
}

func TestFetch_UnknownSymbol(t *testing.T) {
	p := binance.New(binance.Config{}, nil)
	_, err := p.Fetch(context.Background(), "DOGE/EUR")
	require.Equal(t, rate.KindSymbolNotFound, rate.KindOf(err))
}
