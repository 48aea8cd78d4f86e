package exchange

import "context"

// Adapter is the capability contract every exchange client implements. The
// registry, router and manager consume adapters solely through it.
type Adapter interface {
	// Name returns the human-readable exchange name, e.g. "Binance".
	Name() string

	// Code returns the stable short identifier used as a cache-key and
	// map-key namespace, e.g. "binance".
	Code() string

	// Provides declares the set of pairs this adapter can quote directly.
	// It may perform (cached) network I/O against the venue's market-list
	// endpoint.
	Provides(ctx context.Context) (PairSet, error)

	// HasPair reports whether the adapter can quote the pair, including any
	// venue-local stablecoin substitutions.
	HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error)

	// GetPair fetches a ticker for the pair. It fails with ErrPairNotFound
	// when the pair is unsupported, and ErrExchangeDown (or
	// ErrExchangeRateLimited) when the upstream call failed.
	GetPair(ctx context.Context, fromCoin, toCoin string) (*PriceData, error)
}
