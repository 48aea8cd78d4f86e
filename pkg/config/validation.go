package config

import (
	"fmt"
	"os"
	"strings"
)

// Validate checks configuration for errors
func Validate(cfg *Config) error {
	if err := validateServerConfig(&cfg.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := validateCacheConfig(&cfg.Cache); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := validateExchangeConfig(&cfg.Exchange); err != nil {
		return fmt.Errorf("exchange config: %w", err)
	}

	return nil
}

func validateServerConfig(cfg *ServerConfig) error {
	if cfg.TLS.Enabled {
		if cfg.TLS.Cert == "" || cfg.TLS.Key == "" {
			return ErrTLSConfigIncomplete
		}
		if _, err := os.Stat(cfg.TLS.Cert); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSCertNotFound, cfg.TLS.Cert)
		}
		if _, err := os.Stat(cfg.TLS.Key); err != nil {
			return fmt.Errorf("%w: %s", ErrTLSKeyNotFound, cfg.TLS.Key)
		}
	}

	return nil
}

func validateLoggingConfig(cfg *LoggingConfig) error {
	// Validate level
	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, l := range validLevels {
		if strings.ToLower(cfg.Level) == l {
			levelValid = true
			break
		}
	}
	if !levelValid {
		return fmt.Errorf("%w: %s (must be one of: %s)",
			ErrInvalidLogLevel, cfg.Level, strings.Join(validLevels, ", "))
	}

	// Validate format
	format := strings.ToLower(cfg.Format)
	if format != "json" && format != "text" {
		return fmt.Errorf("%w: %s (must be 'json' or 'text')", ErrInvalidLogFormat, cfg.Format)
	}

	return nil
}

func validateCacheConfig(cfg *CacheConfig) error {
	backend := strings.ToLower(cfg.Backend)
	if backend != "memory" && backend != "redis" {
		return fmt.Errorf("%w: %s (must be 'memory' or 'redis')", ErrInvalidCacheBackend, cfg.Backend)
	}
	if backend == "redis" && cfg.Redis.Addr == "" {
		return ErrRedisAddrRequired
	}

	return nil
}

func validateExchangeConfig(cfg *ExchangeConfig) error {
	for alias, real := range cfg.TetherAliases {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(real) == "" {
			return fmt.Errorf("%w: %q -> %q", ErrInvalidTetherAlias, alias, real)
		}
	}

	seen := make(map[string]bool, len(cfg.Adapters))
	anyEnabled := false
	for i, a := range cfg.Adapters {
		if err := validateAdapterConfig(&a); err != nil {
			return fmt.Errorf("adapter %d (%s): %w", i, a.Code, err)
		}
		code := strings.ToLower(a.Code)
		if seen[code] {
			return fmt.Errorf("%w: %s", ErrDuplicateAdapter, code)
		}
		seen[code] = true
		if a.Enabled {
			anyEnabled = true
		}
	}
	if len(cfg.Adapters) > 0 && !anyEnabled {
		return ErrNoAdaptersEnabled
	}

	return nil
}

func validateAdapterConfig(cfg *AdapterConfig) error {
	if strings.TrimSpace(cfg.Code) == "" {
		return ErrAdapterCodeRequired
	}

	for _, p := range cfg.ExtraPairs {
		if _, _, err := ParsePair(p); err != nil {
			return err
		}
	}

	return nil
}
