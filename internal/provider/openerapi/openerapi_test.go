package openerapi_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/httpx"
	"ratewatch/internal/provider/openerapi"
	"ratewatch/internal/rate"
)

func boardServer(t *testing.T, hits *atomic.Int64, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_InvertsToCNYPerUnit(t *testing.T) {
	var hits atomic.Int64
	srv := boardServer(t, &hits, `{"result":"success","base_code":"CNY","time_last_update_unix":1756400000,"rates":{"CNY":1,"USD":0.125,"EUR":0.1}}`)

	p := openerapi.New(openerapi.Config{URL: srv.URL}, httpx.New(5*time.Second))

	r, err := p.Fetch(context.Background(), "USD")
	require.NoError(t, err)
	require.Equal(t, "boc", r.Provider)
	// 1 CNY buys 0.125 USD, so 1 USD costs 8 CNY.
	require.Equal(t, "8", r.Value.String())
	require.Equal(t, "CNY", r.Quote)
	require.NotNil(t, r.SourceTime)
	require.Equal(t, int64(1756400000), r.SourceTime.Unix())
}

func TestFetch_ReusesBoardWithinDocTTL(t *testing.T) {
	var hits atomic.Int64
	srv := boardServer(t, &hits, `{"result":"success","base_code":"CNY","rates":{"USD":0.125,"EUR":0.1}}`)

	p := openerapi.New(openerapi.Config{URL: srv.URL, DocTTL: time.Minute}, httpx.New(5*time.Second))

	_, err := p.Fetch(context.Background(), "USD")
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), "EUR")
	require.NoError(t, err)
	require.Equal(t, int64(1), hits.Load())
}

func TestFetch_FailedResultIsParseFailure(t *testing.T) {
	var hits atomic.Int64
	srv := boardServer(t, &hits, `{"result":"error","error-type":"invalid-key"}`)

	p := openerapi.New(openerapi.Config{URL: srv.URL}, httpx.New(5*time.Second))

	_, err := p.Fetch(context.Background(), "USD")
	require.Equal(t, rate.KindParseFailure, rate.KindOf(err))
}

func TestFetch_UnsupportedCode(t *testing.T) {
	p := openerapi.New(openerapi.Config{}, nil)
	_, err := p.Fetch(context.Background(), "XAU")
	require.Equal(t, rate.KindSymbolNotFound, rate.KindOf(err))
}
