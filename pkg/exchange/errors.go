package exchange

import (
	"errors"
	"fmt"
)

var (
	// ErrPairNotFound indicates no adapter can serve the requested pair,
	// directly, inverted, or through a proxy hub.
	ErrPairNotFound = errors.New("pair not found")

	// ErrProxyMissingPair indicates no viable hub proxy route exists for the
	// requested pair. It matches ErrPairNotFound under errors.Is.
	ErrProxyMissingPair = fmt.Errorf("%w: no viable proxy route", ErrPairNotFound)

	// ErrExchangeDown indicates an adapter's upstream call failed (timeout,
	// HTTP error, malformed response).
	ErrExchangeDown = errors.New("exchange appears to be down")

	// ErrExchangeRateLimited indicates the upstream signaled rate limiting.
	// It matches ErrExchangeDown under errors.Is.
	ErrExchangeRateLimited = fmt.Errorf("%w: rate limited", ErrExchangeDown)

	// ErrUnknownAdapter indicates a lookup for an adapter code or name that
	// is not registered.
	ErrUnknownAdapter = errors.New("unknown exchange adapter")

	// ErrFieldUnavailable indicates the requested ticker field is absent on
	// the resolved ticker.
	ErrFieldUnavailable = errors.New("ticker field unavailable")
)
