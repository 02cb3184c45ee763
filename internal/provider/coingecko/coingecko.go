// Package coingecko fetches crypto/RUB rates from the free CoinGecko
// simple-price API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const defaultURL = "https://api.coingecko.com/api/v3/simple/price"

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
		cfg.Name = "grx"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

type coin struct {
	id    string
	label string
}

var coins = map[string]coin{
	"USDT/RUB": {"tether", "Tether → Ruble"},
	"BTC/RUB":  {"bitcoin", "Bitcoin → Ruble"},
	"ETH/RUB":  {"ethereum", "Ethereum → Ruble"},
	"SOL/RUB":  {"solana", "Solana → Ruble"},
	"XRP/RUB":  {"ripple", "Ripple → Ruble"},
	"BNB/RUB":  {"binancecoin", "BNB → Ruble"},
	"DOGE/RUB": {"dogecoin", "Dogecoin → Ruble"},
	"TON/RUB":  {"the-open-network", "Toncoin → Ruble"},
	"LTC/RUB":  {"litecoin", "Litecoin → Ruble"},
	"ADA/RUB":  {"cardano", "Cardano → Ruble"},
	"DOT/RUB":  {"polkadot", "Polkadot → Ruble"},
	"AVAX/RUB": {"avalanche-2", "Avalanche → Ruble"},
	"TRX/RUB":  {"tron", "Tron → Ruble"},
	"LINK/RUB": {"chainlink", "Chainlink → Ruble"},
	"NOT/RUB":  {"notcoin", "Notcoin → Ruble"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, 0, len(coins))
	for code, c := range coins {
		out = append(out, rate.Symbol{Code: code, Label: c.label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	c, ok := coins[symbol]
	if !ok {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	q := req.URL.Query()
	q.Add("ids", c.id)
	q.Add("vs_currencies", "rub")
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

	// {"tether": {"rub": 98.12}}
	var body map[string]map[string]json.Number
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	quotes, ok := body[c.id]
	if !ok {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("coin %s missing from response", c.id))
	}
	rub, ok := quotes["rub"]
	if !ok {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("no rub quote for %s", c.id))
	}
	value, err := decimal.NewFromString(rub.String())
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}

	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     value,
		Quote:     "RUB",
		FetchedAt: time.Now().UTC(),
	}, nil
}
