package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

// PostgresConfig defines the connection to the persistent store.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

// DSN builds the connection string for the configured database. An empty
// dbname argument connects to the named database from config; pass
// "postgres" to reach the server before the database exists.
func (cfg *PostgresConfig) DSN(dbname string) string {
	if dbname == "" {
		dbname = cfg.DBName
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, dbname, cfg.SSLMode,
	)
	if cfg.TimeZone != "" {
		dsn += fmt.Sprintf(" TimeZone=%s", cfg.TimeZone)
	}
	return dsn
}

type CacheConfig struct {
	TTLSeconds          int `mapstructure:"ttl_sec"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_sec"`
}

func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

func (c CacheConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

type AggregateConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

type ServerConfig struct {
	Port              string `mapstructure:"port"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec"`
}

// ProviderConfig is the per-source block. Not every source uses every
// field; binance is the only one with a second endpoint.
type ProviderConfig struct {
	Enabled               bool   `mapstructure:"enabled"`
	Endpoint              string `mapstructure:"endpoint"`
	P2PEndpoint           string `mapstructure:"p2p_endpoint"`
	APIKey                string `mapstructure:"api_key"`
	MaxRequestsPerMinute  int    `mapstructure:"max_requests_per_minute"`
	Burst                 int    `mapstructure:"burst"`
	MinRequestIntervalSec int    `mapstructure:"min_request_interval_sec"`
	DocTTLSeconds         int    `mapstructure:"doc_ttl_sec"`
}

func (p ProviderConfig) DocTTL() time.Duration { return time.Duration(p.DocTTLSeconds) * time.Second }

type ProvidersConfig struct {
	CBR        ProviderConfig `mapstructure:"cbr"`
	Binance    ProviderConfig `mapstructure:"binance"`
	BOC        ProviderConfig `mapstructure:"boc"`
	GRX        ProviderConfig `mapstructure:"grx"`
	Rapira     ProviderConfig `mapstructure:"rapira"`
	XE         ProviderConfig `mapstructure:"xe"`
	Profinance ProviderConfig `mapstructure:"profinance"`
}

// Load reads config.yaml from path (or the working directory when empty)
// and overrides values with environment variables, e.g. CACHE_TTL_SEC or
// PROVIDERS_BINANCE_ENABLED.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; env + defaults are enough to run.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.environment", "prod")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.dbname", "ratewatch")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("cache.ttl_sec", 300)
	v.SetDefault("cache.fetch_timeout_sec", 15)

	v.SetDefault("aggregate.max_concurrent", 8)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.request_timeout_sec", 30)

	for _, p := range []string{"cbr", "binance", "boc", "grx", "rapira", "xe", "profinance"} {
		v.SetDefault("providers."+p+".enabled", true)
	}
	v.SetDefault("providers.boc.doc_ttl_sec", 600)
	v.SetDefault("providers.profinance.doc_ttl_sec", 30)
}
