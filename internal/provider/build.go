package provider

import (
	"time"

	"ratewatch/internal/config"
	"ratewatch/internal/httpx"
	"ratewatch/internal/provider/binance"
	"ratewatch/internal/provider/cbr"
	"ratewatch/internal/provider/coingecko"
	"ratewatch/internal/provider/openerapi"
	"ratewatch/internal/provider/profinance"
	"ratewatch/internal/provider/rapira"
	"ratewatch/internal/provider/ratelimit"
	"ratewatch/internal/provider/xe"
	"ratewatch/internal/rate"
)

// Build constructs the closed provider set from config, applying the
// per-source rate-limit decorators.
func Build(cfg config.ProvidersConfig, hc *httpx.Client) *Registry {
	var providers []rate.Provider

	if cfg.CBR.Enabled {
		providers = append(providers, limited(
			cbr.New(cbr.Config{URL: cfg.CBR.Endpoint}, hc), cfg.CBR))
	}
	if cfg.Binance.Enabled {
		providers = append(providers, limited(
			binance.New(binance.Config{
				SpotURL: cfg.Binance.Endpoint,
				P2PURL:  cfg.Binance.P2PEndpoint,
			}, hc), cfg.Binance))
	}
	if cfg.BOC.Enabled {
		providers = append(providers, limited(
			openerapi.New(openerapi.Config{
				URL:    cfg.BOC.Endpoint,
				DocTTL: cfg.BOC.DocTTL(),
			}, hc), cfg.BOC))
	}
	if cfg.GRX.Enabled {
		providers = append(providers, limited(
			coingecko.New(coingecko.Config{URL: cfg.GRX.Endpoint}, hc), cfg.GRX))
	}
	if cfg.Rapira.Enabled {
		providers = append(providers, limited(
			rapira.New(rapira.Config{URL: cfg.Rapira.Endpoint}, hc), cfg.Rapira))
	}
	if cfg.XE.Enabled {
		providers = append(providers, limited(
			xe.New(xe.Config{URL: cfg.XE.Endpoint}, hc), cfg.XE))
	}
	if cfg.Profinance.Enabled {
		providers = append(providers, limited(
			profinance.New(profinance.Config{
				URL:    cfg.Profinance.Endpoint,
				DocTTL: cfg.Profinance.DocTTL(),
			}, hc), cfg.Profinance))
	}

	return NewRegistry(providers...)
}

// limited applies a token bucket when an RPM cap is configured and
// falls back to a minimum interval gate.
func limited(p rate.Provider, pc config.ProviderConfig) rate.Provider {
	if pc.MaxRequestsPerMinute > 0 {
		r := float64(pc.MaxRequestsPerMinute) / 60.0
		burst := pc.Burst
		if burst <= 0 {
			burst = 1
		}
		return &ratelimit.TokenBucketProvider{P: p, TB: ratelimit.NewTokenBucket(r, burst)}
	}
	if pc.MinRequestIntervalSec > 0 {
		return &ratelimit.MinInterval{P: p, Interval: time.Duration(pc.MinRequestIntervalSec) * time.Second}
	}
	return p
}
