package provider_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/config"
	"ratewatch/internal/httpx"
	"ratewatch/internal/provider"
	"ratewatch/internal/rate"
)

type named string

func (n named) Name() string           { return string(n) }
func (n named) Symbols() []rate.Symbol { return nil }
func (n named) Fetch(ctx context.Context, symbol string) (rate.Rate, error) {
	return rate.Rate{Provider: string(n), Symbol: symbol}, nil
}

func TestRegistry_Resolve(t *testing.T) {
	reg := provider.NewRegistry(named("cbr"), named("binance"))

	p, err := reg.Resolve("cbr")
	require.NoError(t, err)
	require.Equal(t, "cbr", p.Name())
}

func TestRegistry_UnknownID(t *testing.T) {
	reg := provider.NewRegistry(named("cbr"))

	_, err := reg.Resolve("kraken")
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
	require.Contains(t, err.Error(), "kraken")
}

func TestRegistry_IDsSorted(t *testing.T) {
	reg := provider.NewRegistry(named("xe"), named("binance"), named("cbr"))
	require.Equal(t, []string{"binance", "cbr", "xe"}, reg.IDs())

	all := reg.All()
	require.Len(t, all, 3)
	require.Equal(t, "binance", all[0].Name())
}

func TestBuild_DefaultConfigHasAllSources(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	reg := provider.Build(cfg.Providers, httpx.New(5*time.Second))
	require.Equal(t, []string{"binance", "boc", "cbr", "grx", "profinance", "rapira", "xe"}, reg.IDs())
}

func TestBuild_DisabledSourceIsSkipped(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Providers.XE.Enabled = false

	reg := provider.Build(cfg.Providers, httpx.New(5*time.Second))
	require.NotContains(t, reg.IDs(), "xe")
	_, err = reg.Resolve("xe")
	require.ErrorIs(t, err, provider.ErrUnknownProvider)
}
