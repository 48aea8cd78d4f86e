package config

import (
	"time"

	"github.com/Privex/go-exchange/pkg/exchange/cache"
)

// Config is the root configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Exchange ExchangeConfig `yaml:"exchange"`
}

// ServerConfig configures the rate API server
type ServerConfig struct {
	Listen       string    `yaml:"listen"`
	TLS          TLSConfig `yaml:"tls"`
	WebSocket    WSConfig  `yaml:"websocket"`
	CacheTTL     Duration  `yaml:"cache_ttl"`
	CacheSize    int       `yaml:"cache_size"`
	ReadTimeout  Duration  `yaml:"read_timeout"`
	WriteTimeout Duration  `yaml:"write_timeout"`
}

// WSConfig configures the WebSocket rate stream
type WSConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// TLSConfig holds TLS certificate configuration
type TLSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// MetricsConfig configures Prometheus metrics
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// CacheConfig selects the ticker cache backend and its entry lifetimes.
type CacheConfig struct {
	Backend     string            `yaml:"backend"`
	Redis       cache.RedisConfig `yaml:"redis"`
	PairTTL     Duration          `yaml:"pair_ttl"`
	ProvidesTTL Duration          `yaml:"provides_ttl"`
	SnapshotTTL Duration          `yaml:"snapshot_ttl"`
}

// ExchangeConfig tunes pair routing, aggregation and the adapter set.
type ExchangeConfig struct {
	// ProxyCoins are the hub currencies tried, in order, when a pair has
	// to be composed from two legs. Empty means the engine default.
	ProxyCoins []string `yaml:"proxy_coins"`

	// HubCoins are the currencies whose pairwise rates are precomputed
	// into the proxy snapshot. Empty means the engine default.
	HubCoins []string `yaml:"hub_coins"`

	// TetherAliases maps stablecoin symbols to the fiat currency they
	// track, overriding the engine default when non-empty.
	TetherAliases map[string]string `yaml:"tether_aliases"`

	// MapTetherReal controls whether tethered pairs are also indexed
	// under their real fiat symbol. Unset means enabled.
	MapTetherReal *bool `yaml:"map_tether_real"`

	// FanoutLimit caps concurrent upstream fetches during aggregation.
	FanoutLimit int64 `yaml:"fanout_limit"`

	// Adapters restricts and configures the exchange set. Empty means
	// every built-in adapter with default settings.
	Adapters []AdapterConfig `yaml:"adapters"`
}

// AdapterConfig configures one exchange adapter
type AdapterConfig struct {
	Code    string `yaml:"code"`
	Enabled bool   `yaml:"enabled"`

	// URL overrides the venue's endpoint root, e.g. for a mirror.
	URL string `yaml:"url"`

	// ExtraPairs lists markets to index beyond the venue's own listing,
	// as "FROM/TO" strings.
	ExtraPairs []string `yaml:"extra_pairs"`

	// SkipProvidesCheck disables the capability precheck before fetches.
	SkipProvidesCheck bool `yaml:"skip_provides_check"`
}

// Duration is a wrapper around time.Duration for YAML parsing
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	td, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// ToDuration converts Duration to time.Duration
func (d Duration) ToDuration() time.Duration {
	return time.Duration(d)
}
