package xe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

func TestExtractRate_ResultText(t *testing.T) {
	v, err := extractRate(`<main><p class="result">1 USD = 103.6178 RUB</p></main>`)
	require.NoError(t, err)
	require.Equal(t, "103.6178", v.String())
}

func TestExtractRate_ResultTextWithThousandsSeparator(t *testing.T) {
	v, err := extractRate(`1 XAU = 2,412.55 USD`)
	require.NoError(t, err)
	require.Equal(t, "2412.55", v.String())
}

func TestExtractRate_ScriptBlob(t *testing.T) {
	v, err := extractRate(`<script>window.__state={"pair":{"rate": 103.62,"ts":1}}</script>`)
	require.NoError(t, err)
	require.Equal(t, "103.62", v.String())
}

func TestExtractRate_DataAmount(t *testing.T) {
	v, err := extractRate(`<span data-amount="103.61">converted</span>`)
	require.NoError(t, err)
	require.Equal(t, "103.61", v.String())
}

func TestExtractRate_RulesTriedInOrder(t *testing.T) {
	page := `1 USD = 103.6178 RUB <script>{"rate":999}</script> <span data-amount="1"></span>`
	v, err := extractRate(page)
	require.NoError(t, err)
	require.Equal(t, "103.6178", v.String())
}

func TestExtractRate_NoRuleMatches(t *testing.T) {
	_, err := extractRate(`<html><body>Please enable JavaScript</body></html>`)
	require.Error(t, err)
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "USD", r.URL.Query().Get("From"))
		require.Equal(t, "RUB", r.URL.Query().Get("To"))
		require.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		fmt.Fprint(w, `<html>1 USD = 103.6178 RUB</html>`)
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL}, httpx.New(5*time.Second))
	r, err := p.Fetch(context.Background(), "USD/RUB")
	require.NoError(t, err)
	require.Equal(t, "103.6178", r.Value.String())
	require.Equal(t, "RUB", r.Quote)
}

func TestFetch_BotWall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Checking your browser</body></html>`)
	}))
	defer srv.Close()

	p := New(Config{URL: srv.URL}, httpx.New(5*time.Second))
	_, err := p.Fetch(context.Background(), "EUR/USD")
	require.Equal(t, rate.KindParseFailure, rate.KindOf(err))
}
