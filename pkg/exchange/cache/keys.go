package cache

import (
	"fmt"
	"strings"
)

const keyPrefix = "exch"

// KeyProxyRates is the key holding the hub-to-hub rate snapshot.
const KeyProxyRates = keyPrefix + ":proxy_rates"

// KeyPair returns the cache key for a single exchange's ticker of a pair,
// e.g. "exch:binance:BTC_USDT".
func KeyPair(code, fromCoin, toCoin string) string {
	return fmt.Sprintf("%s:%s:%s_%s", keyPrefix, code,
		strings.ToUpper(fromCoin), strings.ToUpper(toCoin))
}

// KeyProvides returns the cache key for an exchange's supported pair list.
func KeyProvides(code string) string {
	return fmt.Sprintf("%s:%s:provides", keyPrefix, code)
}

// KeyTickers returns the cache key for an exchange's bulk ticker map, used
// by venues that serve every market in one call.
func KeyTickers(code string) string {
	return fmt.Sprintf("%s:%s:all_tickers", keyPrefix, code)
}

// KeyCoins returns the cache key for an exchange's coin id listing.
func KeyCoins(code string) string {
	return fmt.Sprintf("%s:%s:coins", keyPrefix, code)
}
