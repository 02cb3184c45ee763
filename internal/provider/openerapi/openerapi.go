// Package openerapi serves Bank-of-China-style CNY board rates from the
// free open.er-api.com daily feed. The feed quotes how much 1 CNY buys in
// each currency; values are inverted to CNY per 1 unit before returning.
package openerapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const defaultURL = "https://open.er-api.com/v6/latest/CNY"

type Config struct {
	Name string
	URL  string
	// DocTTL caches the whole board between calls; the feed updates daily,
	// so successive symbols reuse one document.
	DocTTL time.Duration
}

type Provider struct {
	cfg    Config
	client *httpx.Client

	mu         sync.RWMutex
	doc        *document
	docExpires time.Time
}

type document struct {
	rates      map[string]decimal.Decimal
	sourceTime *time.Time
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "boc"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

var supported = map[string]string{
	"USD": "US Dollar (CNY rate)",
	"EUR": "Euro (CNY rate)",
	"GBP": "British Pound (CNY rate)",
	"HKD": "Hong Kong Dollar (CNY rate)",
	"JPY": "Japanese Yen (CNY rate)",
	"CAD": "Canadian Dollar (CNY rate)",
	"AUD": "Australian Dollar (CNY rate)",
	"CHF": "Swiss Franc (CNY rate)",
	"SGD": "Singapore Dollar (CNY rate)",
	"KRW": "South Korean Won (CNY rate)",
	"THB": "Thai Baht (CNY rate)",
	"NZD": "New Zealand Dollar (CNY rate)",
	"RUB": "Russian Ruble (CNY rate)",
	"TRY": "Turkish Lira (CNY rate)",
	"MYR": "Malaysian Ringgit (CNY rate)",
	"SEK": "Swedish Krona (CNY rate)",
	"NOK": "Norwegian Krone (CNY rate)",
	"DKK": "Danish Krone (CNY rate)",
	"INR": "Indian Rupee (CNY rate)",
	"AED": "UAE Dirham (CNY rate)",
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, 0, len(supported))
	for code, label := range supported {
		out = append(out, rate.Symbol{Code: code, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

type apiResponse struct {
	Result             string                 `json:"result"`
	BaseCode           string                 `json:"base_code"`
	TimeLastUpdateUnix int64                  `json:"time_last_update_unix"`
	Rates              map[string]json.Number `json:"rates"`
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	if _, ok := supported[symbol]; !ok {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	doc, err := p.board(ctx, symbol)
	if err != nil {
		return rate.Rate{}, err
	}

	perCNY, ok := doc.rates[symbol]
	if !ok {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}
	if perCNY.IsZero() {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("zero rate for %s", symbol))
	}

	// perCNY = how much 1 CNY buys in <symbol>; invert for CNY per unit.
	return rate.Rate{
		Provider:   p.cfg.Name,
		Symbol:     symbol,
		Value:      decimal.NewFromInt(1).Div(perCNY),
		Quote:      "CNY",
		SourceTime: doc.sourceTime,
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (p *Provider) board(ctx context.Context, symbol string) (*document, error) {
	if p.cfg.DocTTL > 0 {
		p.mu.RLock()
		if p.doc != nil && time.Now().Before(p.docExpires) {
			doc := p.doc
			p.mu.RUnlock()
			return doc, nil
		}
		p.mu.RUnlock()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return nil, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, rate.RateLimited(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, rate.Unreachable(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, rate.ParseFailure(p.cfg.Name, symbol, err)
	}
	if body.Result != "success" || len(body.Rates) == 0 {
		return nil, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("result=%q with %d rates", body.Result, len(body.Rates)))
	}

	doc := &document{rates: make(map[string]decimal.Decimal, len(body.Rates))}
	for code, n := range body.Rates {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return nil, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("rate %s=%q: %w", code, n, err))
		}
		doc.rates[code] = d
	}
	if body.TimeLastUpdateUnix > 0 {
		t := time.Unix(body.TimeLastUpdateUnix, 0).UTC()
		doc.sourceTime = &t
	}

	if p.cfg.DocTTL > 0 {
		p.mu.Lock()
		p.doc = doc
		p.docExpires = time.Now().Add(p.cfg.DocTTL)
		p.mu.Unlock()
	}
	return doc, nil
}
