// Package binance fetches spot tickers from the public Binance REST API
// and P2P board medians from the friendly c2c search endpoint.
package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const (
	defaultSpotURL = "https://api.binance.com/api/v3/ticker/price"
	defaultP2PURL  = "https://p2p.binance.com/bapi/c2c/v2/friendly/c2c/adv/search"

	p2pRows = 10
)

type Config struct {
	Name    string
	SpotURL string
	P2PURL  string
}

type Provider struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "binance"
	}
	if cfg.SpotURL == "" {
		cfg.SpotURL = defaultSpotURL
	}
	if cfg.P2PURL == "" {
		cfg.P2PURL = defaultP2PURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

var spotSymbols = map[string]string{
	"BTC/USDT": "BTCUSDT",
	"ETH/USDT": "ETHUSDT",
	"BNB/USDT": "BNBUSDT",
	"SOL/USDT": "SOLUSDT",
	"XRP/USDT": "XRPUSDT",
}

// p2pPairs maps a symbol to the (asset, fiat) searched on the P2P board.
var p2pPairs = map[string][2]string{
	"P2P USDT/RUB": {"USDT", "RUB"},
	"P2P USDT/CNY": {"USDT", "CNY"},
	"P2P BTC/RUB":  {"BTC", "RUB"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, 0, len(spotSymbols)+len(p2pPairs))
	for code := range spotSymbols {
		out = append(out, rate.Symbol{Code: code, Label: "Spot " + code})
	}
	for code, af := range p2pPairs {
		out = append(out, rate.Symbol{Code: code, Label: fmt.Sprintf("P2P %s → %s (median)", af[0], af[1])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	if _, ok := spotSymbols[symbol]; ok {
		return p.fetchSpot(ctx, symbol)
	}
	if _, ok := p2pPairs[symbol]; ok {
		return p.fetchP2P(ctx, symbol)
	}
	return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
}

type spotResponse struct {
	Symbol string          `json:"symbol"`
	Price  json.Number     `json:"price"`
	Code   json.RawMessage `json:"code"` // present on error payloads
	Msg    string          `json:"msg"`
}

func (p *Provider) fetchSpot(ctx context.Context, symbol string) (rate.Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.SpotURL, nil)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	q := req.URL.Query()
	q.Add("symbol", spotSymbols[symbol])
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(p.cfg.Name, symbol, resp.StatusCode); err != nil {
		return rate.Rate{}, err
	}

	var body spotResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	if body.Price == "" {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("response has no price: %s", body.Msg))
	}
	value, err := decimal.NewFromString(body.Price.String())
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     value,
		Quote:     quoteOf(symbol),
		FetchedAt: time.Now().UTC(),
	}, nil
}

type p2pSearch struct {
	Fiat       string   `json:"fiat"`
	Page       int      `json:"page"`
	Rows       int      `json:"rows"`
	TradeType  string   `json:"tradeType"`
	Asset      string   `json:"asset"`
	Countries  []string `json:"countries"`
	PayTypes   []string `json:"payTypes"`
	Classifies []string `json:"classifies"`
}

type p2pResponse struct {
	Data []struct {
		Adv struct {
			Price json.Number `json:"price"`
		} `json:"adv"`
	} `json:"data"`
}

// fetchP2P takes the median of the first page of buy advertisements,
// matching how a human reads the board.
func (p *Provider) fetchP2P(ctx context.Context, symbol string) (rate.Rate, error) {
	af := p2pPairs[symbol]
	payload, _ := json.Marshal(p2pSearch{
		Fiat:       af[1],
		Page:       1,
		Rows:       p2pRows,
		TradeType:  "BUY",
		Asset:      af[0],
		Countries:  []string{},
		PayTypes:   []string{},
		Classifies: []string{"mass", "profession", "fiat_trade"},
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.P2PURL, bytes.NewReader(payload))
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(p.cfg.Name, symbol, resp.StatusCode); err != nil {
		return rate.Rate{}, err
	}

	var body p2pResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	if len(body.Data) == 0 {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("no advertisements in response"))
	}

	prices := make([]decimal.Decimal, 0, len(body.Data))
	for _, ad := range body.Data {
		d, err := decimal.NewFromString(ad.Adv.Price.String())
		if err != nil {
			return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("ad price %q: %w", ad.Adv.Price, err))
		}
		prices = append(prices, d)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })
	median := prices[len(prices)/2]

	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     median,
		Quote:     af[1],
		FetchedAt: time.Now().UTC(),
	}, nil
}

func classifyStatus(provider, symbol string, status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		// Binance signals bans with 429 and 418.
		return rate.RateLimited(provider, symbol, fmt.Errorf("status %d", status))
	default:
		return rate.Unreachable(provider, symbol, fmt.Errorf("status %d", status))
	}
}

func quoteOf(symbol string) string {
	if _, quote, ok := strings.Cut(symbol, "/"); ok {
		return quote
	}
	return ""
}
