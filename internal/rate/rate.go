package rate

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is the normalized shape returned by all providers.
// Value is always the price of 1 unit of the base asset expressed in Quote;
// adapters divide out nominals and invert board rates before returning.
type Rate struct {
	Provider string          `json:"provider"`
	Symbol   string          `json:"symbol"`
	Value    decimal.Decimal `json:"value"`

	// Bid/Ask are set only by orderbook-style sources.
	Bid *decimal.Decimal `json:"bid,omitempty"`
	Ask *decimal.Decimal `json:"ask,omitempty"`

	// Quote is the quote currency or unit of Value, e.g. "RUB".
	Quote string `json:"quote"`

	// SourceTime is the timestamp reported by the source, if any.
	SourceTime *time.Time `json:"source_time,omitempty"`
	FetchedAt  time.Time  `json:"fetched_at"`

	// Stale marks a cached value older than the TTL, served because a
	// live refresh failed. StaleFor is its age at serve time.
	Stale    bool          `json:"stale,omitempty"`
	StaleFor time.Duration `json:"stale_for,omitempty"`
}

// Symbol is one entry of a provider's closed symbol universe.
type Symbol struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Provider is one external rate source.
type Provider interface {
	Name() string
	// Symbols returns the closed set of symbols this source answers for.
	// Implementations must not hit the network on every call.
	Symbols() []Symbol
	// Fetch performs one external request cycle for the given symbol.
	// Failures are reported as *Error with an appropriate Kind.
	Fetch(ctx context.Context, symbol string) (Rate, error)
}
