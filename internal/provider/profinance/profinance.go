// Package profinance scrapes forex buy/sell quotes from the
// profinance.ru quotes page. One page carries every supported pair, so
// the parsed table is cached briefly inside the adapter.
package profinance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const (
	defaultURL = "https://www.profinance.ru/quote/show.asp"

	maxBody = 4 << 20
)

type Config struct {
	Name string
	URL  string
	// DocTTL caches the scraped table between calls for users holding
	// several profinance pairs.
	DocTTL time.Duration
}

type Provider struct {
	cfg    Config
	client *httpx.Client

	mu         sync.RWMutex
	doc        map[string]quote
	docExpires time.Time
}

type quote struct {
	buy  decimal.Decimal
	sell decimal.Decimal
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "profinance"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

var pairs = []rate.Symbol{
	{Code: "USD/RUB", Label: "Dollar / Ruble (Forex)"},
	{Code: "EUR/RUB", Label: "Euro / Ruble (Forex)"},
	{Code: "CNY/RUB", Label: "Yuan / Ruble (Forex)"},
	{Code: "EUR/USD", Label: "Euro / Dollar (Forex)"},
	{Code: "GBP/USD", Label: "Pound / Dollar (Forex)"},
	{Code: "USD/CHF", Label: "Dollar / Franc (Forex)"},
	{Code: "USD/JPY", Label: "Dollar / Yen (Forex)"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, len(pairs))
	copy(out, pairs)
	return out
}

var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Accept-Language": "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	if !supports(symbol) {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	doc, err := p.table(ctx, symbol)
	if err != nil {
		return rate.Rate{}, err
	}
	q, ok := doc[symbol]
	if !ok {
		// The anchor row is absent; scraped sources drift, so fail loudly.
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, fmt.Errorf("pair row not found on page"))
	}

	mid := q.buy.Add(q.sell).Div(decimal.NewFromInt(2))
	bid, ask := q.buy, q.sell
	return rate.Rate{
		Provider:  p.cfg.Name,
		Symbol:    symbol,
		Value:     mid,
		Bid:       &bid,
		Ask:       &ask,
		Quote:     quoteOf(symbol),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) table(ctx context.Context, symbol string) (map[string]quote, error) {
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
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, rate.Unreachable(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, rate.Unreachable(p.cfg.Name, symbol, err)
	}

	doc, err := parseTable(string(body))
	if err != nil {
		return nil, rate.ParseFailure(p.cfg.Name, symbol, err)
	}

	if p.cfg.DocTTL > 0 {
		p.mu.Lock()
		p.doc = doc
		p.docExpires = time.Now().Add(p.cfg.DocTTL)
		p.mu.Unlock()
	}
	return doc, nil
}

// Extraction rule, pinned: quote rows are <tr class="curs"> whose first
// cell carries class "iname" with the pair inside an <a> tag, followed by
// the buy and sell cells.
var (
	reRow   = regexp.MustCompile(`(?is)<tr[^>]*class="[^"]*curs[^"]*"[^>]*>(.*?)</tr>`)
	reCell  = regexp.MustCompile(`(?is)<td[^>]*>(.*?)</td>`)
	reTag   = regexp.MustCompile(`(?s)<[^>]*>`)
	reIname = regexp.MustCompile(`(?i)class="[^"]*iname[^"]*"`)
)

func parseTable(html string) (map[string]quote, error) {
	known := make(map[string]struct{}, len(pairs))
	for _, s := range pairs {
		known[s.Code] = struct{}{}
	}

	out := make(map[string]quote)
	for _, row := range reRow.FindAllStringSubmatch(html, -1) {
		cells := reCell.FindAllStringSubmatch(row[1], -1)
		if len(cells) < 3 {
			continue
		}
		if !reIname.MatchString(cells[0][0]) {
			continue
		}
		pair := strings.ToUpper(cellText(cells[0][1]))
		if _, ok := known[pair]; !ok {
			continue
		}
		buy, err := decimal.NewFromString(cellText(cells[1][1]))
		if err != nil {
			continue
		}
		sell, err := decimal.NewFromString(cellText(cells[2][1]))
		if err != nil {
			continue
		}
		out[pair] = quote{buy: buy, sell: sell}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no quote rows matched the pinned selector")
	}
	return out, nil
}

func cellText(s string) string {
	return strings.TrimSpace(reTag.ReplaceAllString(s, ""))
}

func supports(symbol string) bool {
	for _, s := range pairs {
		if s.Code == symbol {
			return true
		}
	}
	return false
}

func quoteOf(symbol string) string {
	_, counter, _ := strings.Cut(symbol, "/")
	return counter
}
