package rate

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure.
type Kind string

const (
	KindUnreachable    Kind = "unreachable"
	KindParseFailure   Kind = "parse_failure"
	KindRateLimited    Kind = "rate_limited"
	KindSymbolNotFound Kind = "symbol_not_found"
)

// Error is a classified failure from one provider call.
type Error struct {
	Kind     Kind
	Provider string
	Symbol   string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Symbol, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Symbol, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func Unreachable(provider, symbol string, err error) *Error {
	return &Error{Kind: KindUnreachable, Provider: provider, Symbol: symbol, Err: err}
}

func ParseFailure(provider, symbol string, err error) *Error {
	return &Error{Kind: KindParseFailure, Provider: provider, Symbol: symbol, Err: err}
}

func RateLimited(provider, symbol string, err error) *Error {
	return &Error{Kind: KindRateLimited, Provider: provider, Symbol: symbol, Err: err}
}

func SymbolNotFound(provider, symbol string) *Error {
	return &Error{Kind: KindSymbolNotFound, Provider: provider, Symbol: symbol}
}

// KindOf returns the Kind carried by err, or "" when err is not a provider error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
