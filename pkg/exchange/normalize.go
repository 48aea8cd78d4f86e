package exchange

import "strings"

// Tether aliasing treats certain stablecoins as equivalent to the real-world
// currency they track, so that a venue quoting only BTC/USDT still serves
// BTC/USD requests through the pair index.

// DefaultTetherAliases maps stablecoin symbols to their reference currency.
var DefaultTetherAliases = map[string]string{
	"USDT": "USD",
	"USDC": "USD",
}

// AliasedPairs returns the extra index entries implied by tether aliasing for
// a native pair: when one side is a tracked stablecoin, the same adapter is
// also registered under the real-currency spelling. Only one side is ever
// substituted; a pair tethered on both sides aliases its from side only.
func AliasedPairs(p Pair, aliases map[string]string) []Pair {
	if real, ok := aliases[p.From]; ok {
		return []Pair{{From: real, To: p.To}}
	}
	if real, ok := aliases[p.To]; ok {
		return []Pair{{From: p.From, To: real}}
	}
	return nil
}

// IsTetherAlias reports whether symbol is a tracked stablecoin.
func IsTetherAlias(symbol string, aliases map[string]string) bool {
	_, ok := aliases[strings.ToUpper(symbol)]
	return ok
}

// TetherReal returns the reference currency for a stablecoin symbol, or the
// symbol itself when it is not a tracked alias.
func TetherReal(symbol string, aliases map[string]string) string {
	up := strings.ToUpper(symbol)
	if real, ok := aliases[up]; ok {
		return real
	}
	return up
}
