// Package rapira fetches the USDT/RUB orderbook top from the public
// Rapira exchange API.
package rapira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const defaultURL = "https://api.rapira.net/market/exchange-plate-mini"

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
		cfg.Name = "rapira"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

var pairs = []rate.Symbol{
	{Code: "USDT/RUB", Label: "Tether ↔ Ruble (buy/sell)"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, len(pairs))
	copy(out, pairs)
	return out
}

type plateSide struct {
	Items []struct {
		Price json.Number `json:"price"`
	} `json:"items"`
}

type plateResponse struct {
	Bid plateSide `json:"bid"`
	Ask plateSide `json:"ask"`
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	if !supports(symbol) {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	q := req.URL.Query()
	q.Add("symbol", symbol)
	req.URL.RawQuery = q.Encode()

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

	var body plateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	if len(body.Bid.Items) == 0 || len(body.Ask.Items) == 0 {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("orderbook side is empty"))
	}

	bid, err := decimal.NewFromString(body.Bid.Items[0].Price.String())
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("bid price: %w", err))
	}
	ask, err := decimal.NewFromString(body.Ask.Items[0].Price.String())
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("ask price: %w", err))
	}

	// Value is the mid so cached comparisons have a single number; the
	// book top survives in Bid/Ask.
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     mid,
		Bid:       &bid,
		Ask:       &ask,
		Quote:     "RUB",
		FetchedAt: time.Now().UTC(),
	}, nil
}

func supports(symbol string) bool {
	for _, s := range pairs {
		if s.Code == symbol {
			return true
		}
	}
	return false
}
