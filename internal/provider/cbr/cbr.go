// Package cbr fetches official Central Bank of Russia rates from the
// daily XML feed at https://www.cbr.ru/scripts/XML_daily.asp.
package cbr

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"

	"ratewatch/internal/httpx"
	"ratewatch/internal/rate"
)

const defaultURL = "https://www.cbr.ru/scripts/XML_daily.asp"

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
		cfg.Name = "cbr"
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// pairs is the closed symbol universe. All rates are quoted in RUB per
// 1 unit of the base currency (the feed's Nominal is divided out).
var pairs = []rate.Symbol{
	{Code: "USD/RUB", Label: "US Dollar → Ruble"},
	{Code: "EUR/RUB", Label: "Euro → Ruble"},
	{Code: "CNY/RUB", Label: "Yuan → Ruble"},
	{Code: "GBP/RUB", Label: "Pound → Ruble"},
	{Code: "JPY/RUB", Label: "Yen → Ruble"},
	{Code: "TRY/RUB", Label: "Lira → Ruble"},
	{Code: "KZT/RUB", Label: "Tenge → Ruble"},
	{Code: "CHF/RUB", Label: "Swiss Franc → Ruble"},
	{Code: "CAD/RUB", Label: "Canadian Dollar → Ruble"},
	{Code: "AUD/RUB", Label: "Australian Dollar → Ruble"},
	{Code: "SGD/RUB", Label: "Singapore Dollar → Ruble"},
	{Code: "AED/RUB", Label: "UAE Dirham → Ruble"},
	{Code: "KRW/RUB", Label: "Korean Won → Ruble"},
	{Code: "INR/RUB", Label: "Indian Rupee → Ruble"},
	{Code: "BYN/RUB", Label: "Belarusian Ruble → Ruble"},
	{Code: "HKD/RUB", Label: "Hong Kong Dollar → Ruble"},
	{Code: "SEK/RUB", Label: "Swedish Krona → Ruble"},
	{Code: "NOK/RUB", Label: "Norwegian Krone → Ruble"},
	{Code: "DKK/RUB", Label: "Danish Krone → Ruble"},
	{Code: "PLN/RUB", Label: "Polish Zloty → Ruble"},
	{Code: "CZK/RUB", Label: "Czech Koruna → Ruble"},
	{Code: "HUF/RUB", Label: "Hungarian Forint → Ruble"},
}

func (p *Provider) Symbols() []rate.Symbol {
	out := make([]rate.Symbol, len(pairs))
	copy(out, pairs)
	return out
}

// valCurs mirrors the fixed schema of the daily feed. An unexpected root
// element is a parse failure, never a zero-valued rate.
type valCurs struct {
	XMLName xml.Name `xml:"ValCurs"`
	Date    string   `xml:"Date,attr"`
	Valutes []valute `xml:"Valute"`
}

type valute struct {
	ID       string `xml:"ID,attr"`
	CharCode string `xml:"CharCode"`
	Nominal  string `xml:"Nominal"`
	Value    string `xml:"Value"`
}

func (p *Provider) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	code, ok := charCode(symbol)
	if !ok {
		return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return rate.Rate{}, rate.Unreachable(p.cfg.Name, symbol, fmt.Errorf("status %d", resp.StatusCode))
	}

	doc, err := parse(resp.Body)
	if err != nil {
		return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
	}

	for _, v := range doc.Valutes {
		if v.CharCode != code {
			continue
		}
		value, err := normalize(v)
		if err != nil {
			return rate.Rate{}, rate.ParseFailure(p.cfg.Name, symbol, err)
		}
		return rate.Rate{
			Provider:   p.cfg.Name,
			Symbol:     symbol,
			Value:      value,
			Quote:      "RUB",
			SourceTime: sourceTime(doc.Date),
			FetchedAt:  time.Now().UTC(),
		}, nil
	}
	return rate.Rate{}, rate.SymbolNotFound(p.cfg.Name, symbol)
}

func parse(r io.Reader) (*valCurs, error) {
	dec := xml.NewDecoder(r)
	// The feed declares windows-1251.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		switch strings.ToLower(charset) {
		case "windows-1251":
			return charmap.Windows1251.NewDecoder().Reader(input), nil
		default:
			return input, nil
		}
	}
	var doc valCurs
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode ValCurs: %w", err)
	}
	if len(doc.Valutes) == 0 {
		return nil, fmt.Errorf("document has no Valute entries")
	}
	return &doc, nil
}

// normalize converts a Valute entry to RUB per 1 unit. The feed quotes
// some currencies per 100 or 10000 units via Nominal, and uses a comma
// decimal separator.
func normalize(v valute) (decimal.Decimal, error) {
	if strings.TrimSpace(v.Value) == "" {
		return decimal.Decimal{}, fmt.Errorf("Valute %s has no Value", v.CharCode)
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(v.Value, ",", "."))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("Value %q: %w", v.Value, err)
	}
	nominal := decimal.NewFromInt(1)
	if strings.TrimSpace(v.Nominal) != "" {
		nominal, err = decimal.NewFromString(v.Nominal)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("Nominal %q: %w", v.Nominal, err)
		}
	}
	if nominal.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("Nominal is zero for %s", v.CharCode)
	}
	return value.Div(nominal), nil
}

func sourceTime(date string) *time.Time {
	t, err := time.Parse("02.01.2006", date)
	if err != nil {
		return nil
	}
	return &t
}

func charCode(symbol string) (string, bool) {
	for _, s := range pairs {
		if s.Code == symbol {
			base, _, _ := strings.Cut(symbol, "/")
			return base, true
		}
	}
	return "", false
}
