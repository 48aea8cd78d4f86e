package config

import "errors"

var (
	// ErrTLSConfigIncomplete indicates that TLS config is incomplete.
	ErrTLSConfigIncomplete = errors.New("TLS cert and key must be specified when TLS is enabled")
	// ErrTLSCertNotFound indicates that the TLS cert file was not found.
	ErrTLSCertNotFound = errors.New("TLS cert file not found")
	// ErrTLSKeyNotFound indicates that the TLS key file was not found.
	ErrTLSKeyNotFound = errors.New("TLS key file not found")
	// ErrInvalidLogLevel indicates that the log level is invalid.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidLogFormat indicates that the log format is invalid.
	ErrInvalidLogFormat = errors.New("invalid log format")
	// ErrInvalidCacheBackend indicates an unknown cache backend name.
	ErrInvalidCacheBackend = errors.New("invalid cache backend")
	// ErrRedisAddrRequired indicates that the redis backend needs an address.
	ErrRedisAddrRequired = errors.New("redis.addr must be specified for the redis backend")
	// ErrAdapterCodeRequired indicates an adapter entry without a code.
	ErrAdapterCodeRequired = errors.New("adapter code must be specified")
	// ErrDuplicateAdapter indicates the same adapter code listed twice.
	ErrDuplicateAdapter = errors.New("adapter listed more than once")
	// ErrNoAdaptersEnabled indicates that every configured adapter is disabled.
	ErrNoAdaptersEnabled = errors.New("no adapters enabled")
	// ErrInvalidPair indicates a malformed pair string.
	ErrInvalidPair = errors.New("invalid pair")
	// ErrInvalidTetherAlias indicates a malformed tether alias entry.
	ErrInvalidTetherAlias = errors.New("invalid tether alias")
)
