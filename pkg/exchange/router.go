package exchange

import (
	"context"
	"fmt"
	"strings"
)

// DefaultProxyCoins is the ordered list of hub currencies tried when a pair
// has to be composed from two legs. Order matters: the first hub that
// connects both sides wins.
var DefaultProxyCoins = []string{"BTC", "USD", "USDT"}

// Router decides how a requested pair can be served from the registry's pair
// index: directly, inverted, or composed through a hub currency.
type Router struct {
	reg        *Registry
	proxyCoins []string
}

// NewRouter builds a router over reg. An empty proxyCoins falls back to
// DefaultProxyCoins.
func NewRouter(reg *Registry, proxyCoins []string) *Router {
	if len(proxyCoins) == 0 {
		proxyCoins = DefaultProxyCoins
	}
	coins := make([]string, len(proxyCoins))
	for i, c := range proxyCoins {
		coins[i] = strings.ToUpper(c)
	}
	return &Router{reg: reg, proxyCoins: coins}
}

// ProxyCoins returns the hub currencies in priority order.
func (r *Router) ProxyCoins() []string {
	out := make([]string, len(r.proxyCoins))
	copy(out, r.proxyCoins)
	return out
}

// FindProxy returns the first hub currency that connects fromCoin to toCoin
// across the whole registry: fromCoin->hub must be indexed, and either
// hub->toCoin or toCoin->hub. Only direct index entries count; inversion of
// the first leg is not attempted.
func (r *Router) FindProxy(fromCoin, toCoin string) (string, error) {
	for _, hub := range r.proxyCoins {
		if !r.reg.PairExists(fromCoin, hub) {
			continue
		}
		if r.reg.PairExists(hub, toCoin) || r.reg.PairExists(toCoin, hub) {
			return hub, nil
		}
	}
	return "", fmt.Errorf("%w: no hub connects %s to %s",
		ErrProxyMissingPair, strings.ToUpper(fromCoin), strings.ToUpper(toCoin))
}

// FindProxyFor is FindProxy restricted to the pairs of a single adapter, for
// composing both legs on the same exchange.
func (r *Router) FindProxyFor(ctx context.Context, adp Adapter, fromCoin, toCoin string) (string, error) {
	for _, hub := range r.proxyCoins {
		fromHub, err := adp.HasPair(ctx, fromCoin, hub)
		if err != nil {
			return "", err
		}
		if !fromHub {
			continue
		}

		hubTo, err := adp.HasPair(ctx, hub, toCoin)
		if err != nil {
			return "", err
		}
		if hubTo {
			return hub, nil
		}

		toHub, err := adp.HasPair(ctx, toCoin, hub)
		if err != nil {
			return "", err
		}
		if toHub {
			return hub, nil
		}
	}
	return "", fmt.Errorf("%w: %s has no hub connecting %s to %s",
		ErrProxyMissingPair, adp.Code(), strings.ToUpper(fromCoin), strings.ToUpper(toCoin))
}
