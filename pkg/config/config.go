// Package config provides configuration loading and validation for the
// exchange rate daemon.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Privex/go-exchange/pkg/exchange"
)

// Load loads configuration from YAML file and environment variables.
func Load(path string) (*Config, error) {
	// Validate and sanitize path
	cleanPath := filepath.Clean(path)
	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// Read config file
	data, err := os.ReadFile(absPath) // #nosec G304 -- Path sanitized with filepath.Clean and filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in YAML
	expanded := os.ExpandEnv(string(data))

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults
	applyDefaults(&cfg)

	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for optional fields.
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.CacheTTL.ToDuration() == 0 {
		cfg.Server.CacheTTL = Duration(60 * 1e9) // 60 seconds
	}
	if cfg.Server.CacheSize == 0 {
		cfg.Server.CacheSize = 1024
	}
	if cfg.Server.ReadTimeout.ToDuration() == 0 {
		cfg.Server.ReadTimeout = Duration(10 * 1e9)
	}
	if cfg.Server.WriteTimeout.ToDuration() == 0 {
		cfg.Server.WriteTimeout = Duration(30 * 1e9)
	}
	if cfg.Server.WebSocket.Interval.ToDuration() == 0 {
		cfg.Server.WebSocket.Interval = Duration(10 * 1e9)
	}

	// Metrics defaults
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = ":9091"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// Cache defaults
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.PairTTL.ToDuration() == 0 {
		cfg.Cache.PairTTL = Duration(120 * 1e9)
	}
	if cfg.Cache.ProvidesTTL.ToDuration() == 0 {
		cfg.Cache.ProvidesTTL = Duration(300 * 1e9)
	}
	if cfg.Cache.SnapshotTTL.ToDuration() == 0 {
		cfg.Cache.SnapshotTTL = Duration(300 * 1e9)
	}

	// Empty proxy/hub coin lists are left empty so the engine defaults
	// apply at construction time.
}

// TetherAliasing reports whether tethered pairs should also be indexed
// under their real fiat symbol. Enabled unless explicitly switched off.
func (c *ExchangeConfig) TetherAliasing() bool {
	return c.MapTetherReal == nil || *c.MapTetherReal
}

// AliasMap returns the configured tether alias map with symbols upper-cased,
// or nil when none is configured so the engine default applies.
func (c *ExchangeConfig) AliasMap() map[string]string {
	if len(c.TetherAliases) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.TetherAliases))
	for alias, real := range c.TetherAliases {
		out[strings.ToUpper(alias)] = strings.ToUpper(real)
	}
	return out
}

// EnabledAdapters returns the configured adapters that are switched on, in
// listing order.
func (c *ExchangeConfig) EnabledAdapters() []AdapterConfig {
	out := make([]AdapterConfig, 0, len(c.Adapters))
	for _, a := range c.Adapters {
		if a.Enabled {
			out = append(out, a)
		}
	}
	return out
}

// ParsePair splits a "FROM/TO" (or "FROM_TO") pair string into upper-cased
// symbols.
func ParsePair(s string) (from, to string, err error) {
	p, err := exchange.ParsePair(s)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q (want FROM/TO)", ErrInvalidPair, s)
	}
	return p.From, p.To, nil
}
