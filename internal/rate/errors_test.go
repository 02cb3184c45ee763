package rate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	err := Unreachable("cbr", "USD/RUB", fmt.Errorf("connection refused"))
	require.EqualError(t, err, "cbr USD/RUB: unreachable: connection refused")

	err = SymbolNotFound("cbr", "BTC/RUB")
	require.EqualError(t, err, "cbr BTC/RUB: symbol_not_found")
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("status 503")
	err := Unreachable("xe", "EUR/USD", cause)
	require.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindRateLimited, KindOf(RateLimited("grx", "TON/RUB", fmt.Errorf("status 429"))))
	require.Equal(t, KindParseFailure, KindOf(fmt.Errorf("wrapped: %w", ParseFailure("xe", "EUR/USD", errors.New("no match")))))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}
