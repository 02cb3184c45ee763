package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ratewatch/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, 5*time.Minute, cfg.Cache.TTL())
	require.Equal(t, 15*time.Second, cfg.Cache.FetchTimeout())
	require.Equal(t, 8, cfg.Aggregate.MaxConcurrent)
	require.Equal(t, "8080", cfg.Server.Port)
	require.True(t, cfg.Providers.CBR.Enabled)
	require.True(t, cfg.Providers.Profinance.Enabled)
	require.Equal(t, 10*time.Minute, cfg.Providers.BOC.DocTTL())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cache:
  ttl_sec: 60
providers:
  xe:
    enabled: false
  binance:
    max_requests_per_minute: 30
    burst: 5
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, time.Minute, cfg.Cache.TTL())
	require.False(t, cfg.Providers.XE.Enabled)
	require.True(t, cfg.Providers.CBR.Enabled)
	require.Equal(t, 30, cfg.Providers.Binance.MaxRequestsPerMinute)
	require.Equal(t, 5, cfg.Providers.Binance.Burst)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CACHE_TTL_SEC", "120")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, 2*time.Minute, cfg.Cache.TTL())
}

func TestPostgresDSN(t *testing.T) {
	pg := config.PostgresConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		DBName: "ratewatch", SSLMode: "disable",
	}
	require.Equal(t,
		"host=db port=5432 user=app password=secret dbname=ratewatch sslmode=disable",
		pg.DSN(""))
	require.Contains(t, pg.DSN("postgres"), "dbname=postgres")
}
