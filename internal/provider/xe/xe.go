// Package xe scrapes the public XE currency converter page. The page has
// no documented contract; extraction follows three version-pinned rules
// and any miss is reported as a parse failure rather than a guess.
package xe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const (
	defaultURL = "https://www.xe.com/currencyconverter/convert/"

	maxBody = 4 << 20
)

type Config struct {
	Name string
	URL  string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "xe"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

var pairs = []rate.Symbol{
	{Code: "USD/RUB", Label: "US Dollar → Ruble"},
	{Code: "EUR/RUB", Label: "Euro → Ruble"},
	{Code: "CNY/RUB", Label: "Yuan → Ruble"},
	{Code: "GBP/RUB", Label: "Pound → Ruble"},
	{Code: "CHF/RUB", Label: "Franc → Ruble"},
	{Code: "TRY/RUB", Label: "Lira → Ruble"},
	{Code: "KZT/RUB", Label: "Tenge → Ruble"},
	{Code: "AED/RUB", Label: "Dirham → Ruble"},
	{Code: "XAU/USD", Label: "Gold oz → USD"},
	{Code: "GBP/USD", Label: "Pound → USD"},
	{Code: "EUR/USD", Label: "Euro → USD"},
	{Code: "USD/CNY", Label: "Dollar → Yuan"},
	{Code: "USD/JPY", Label: "Dollar → Yen"},
	{Code: "USD/CHF", Label: "Dollar → Franc"},
	{Code: "USD/CAD", Label: "Dollar → CAD"},
	{Code: "USD/TRY", Label: "Dollar → Lira"},
	{Code: "USD/KZT", Label: "Dollar → Tenge"},
	{Code: "AUD/USD", Label: "AUD → Dollar"},
	{Code: "NZD/USD", Label: "NZD → Dollar"},
	{Code: "EUR/GBP", Label: "Euro → Pound"},
	{Code: "EUR/CNY", Label: "Euro → Yuan"},
	{Code: "GBP/CNY", Label: "Pound → Yuan"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, len(pairs))
	copy(out, pairs)
	return out
}

var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept-Language": "en-US,en;q=0.9",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Referer":         "https://www.xe.com/",
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	base, counter, ok := splitPair(symbol)
	if !ok {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	q := req.URL.Query()
	q.Add("From", base)
	q.Add("To", counter)
	q.Add("Amount", "1")
	req.URL.RawQuery = q.Encode()
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return rate.Rate{}, rate.RateLimited(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}

	value, err := extractRate(string(body))
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     value,
		Quote:     counter,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// Extraction rules, pinned against the converter page as of 2024:
//  1. the prominent result text "1 XXX = 103.6178 RUB"
//  2. a "rate":103.6178 blob inside an embedded <script>
//  3. a data-amount attribute on a result element
var (
	reResultText = regexp.MustCompile(`1\s+[A-Z]{3}\s*=\s*([\d,]+\.?\d*)\s+[A-Z]{3}`)
	reRateBlob   = regexp.MustCompile(`"rate"\s*:\s*([\d.]+)`)
	reDataAmount = regexp.MustCompile(`data-amount="([\d.]+)"`)
)

func extractRate(html string) (decimal.Decimal, error) {
	if m := reResultText.FindStringSubmatch(html); m != nil {
		return decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	}
	if m := reRateBlob.FindStringSubmatch(html); m != nil {
		return decimal.NewFromString(m[1])
	}
	if m := reDataAmount.FindStringSubmatch(html); m != nil {
		return decimal.NewFromString(m[1])
	}
	return decimal.Decimal{}, fmt.Errorf("no extraction rule matched the page")
}

func splitPair(symbol string) (base, counter string, ok bool) {
	for _, s := range pairs {
		if s.Code == symbol {
			base, counter, ok = strings.Cut(symbol, "/")
			return base, counter, ok
		}
	}
	return "", "", false
}
