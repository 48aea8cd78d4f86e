package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/exchange/cache"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coingeckoCompareSymbols are the quote currencies offered for every listed
// coin; the capability set is the cross product of the coin listing against
// this list.
var coingeckoCompareSymbols = []string{"BTC", "ETH", "USD", "GBP", "EUR", "SEK"}

// CoinGecko serves spot prices from CoinGecko's simple-price endpoint,
// resolving ticker symbols to CoinGecko coin ids through the cached
// /coins/list mapping. Prices move fast and the endpoint is heavily rate
// limited, so the default ticker TTL is short.
type CoinGecko struct {
	*baseAdapter
}

var _ exchange.Adapter = (*CoinGecko)(nil)

// NewCoinGecko builds the CoinGecko adapter.
func NewCoinGecko(opts Options) *CoinGecko {
	if opts.TickerTTL == 0 {
		opts.TickerTTL = 30 * time.Second
	}
	return &CoinGecko{
		baseAdapter: newBase("CoinGecko", "coingecko", coingeckoBaseURL, []string{"USDT"}, opts),
	}
}

// loadCoins returns the symbol-to-coin-id mapping, cached for the provides
// TTL. Later listings win when multiple coins share a ticker symbol.
func (a *CoinGecko) loadCoins(ctx context.Context) (map[string]string, error) {
	key := cache.KeyCoins(a.code)
	if coins, err := cache.GetJSON[map[string]string](ctx, a.cache, key); err == nil {
		return coins, nil
	}

	var raw []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	}
	if err := a.fetchJSON(ctx, a.baseURL+"/coins/list", &raw); err != nil {
		return nil, err
	}

	coins := make(map[string]string, len(raw))
	for _, c := range raw {
		coins[strings.ToUpper(c.Symbol)] = c.ID
	}
	if err := cache.SetJSON(ctx, a.cache, key, coins, a.providesTTL); err != nil {
		a.log.Warn("failed caching coin listing", "error", err)
	}
	return coins, nil
}

// Provides is the cross product of every listed coin against the compare
// currencies.
func (a *CoinGecko) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		coins, err := a.loadCoins(ctx)
		if err != nil {
			return nil, err
		}
		set := make(exchange.PairSet, len(coins)*len(coingeckoCompareSymbols))
		for symbol := range coins {
			for _, cmp := range coingeckoCompareSymbols {
				set.Add(symbol, cmp)
			}
		}
		return set, nil
	})
}

// HasPair reports whether CoinGecko can price the pair, treating a USDT
// listing as serving USD requests.
func (a *CoinGecko) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the pair's spot price. Only last is populated; CoinGecko's
// simple endpoint has no depth or OHLC data.
func (a *CoinGecko) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.fetchPair)
}

func (a *CoinGecko) fetchPair(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	prov, err := a.Provides(ctx)
	if err != nil {
		return nil, err
	}

	// USD is a native compare currency, so only a USD base needs the tether
	// substitution.
	qFrom := from
	if !prov.Has(qFrom, to) {
		if qFrom == "USD" {
			qFrom = "USDT"
		}
		if !prov.Has(qFrom, to) {
			return nil, a.notSupported(from, to)
		}
	}

	coins, err := a.loadCoins(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := coins[qFrom]
	if !ok {
		return nil, a.notSupported(from, to)
	}

	vs := strings.ToLower(to)
	var res map[string]map[string]json.Number
	endpoint := a.baseURL + "/simple/price?ids=" + url.QueryEscape(id) + "&vs_currencies=" + url.QueryEscape(vs)
	if err := a.fetchJSON(ctx, endpoint, &res); err != nil {
		return nil, err
	}

	raw, ok := res[id][vs]
	if !ok {
		return nil, fmt.Errorf("%w: no %s price for %s in %s response",
			exchange.ErrExchangeDown, vs, id, a.name)
	}
	last, err := decimal.NewFromString(raw.String())
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable price from %s for %s",
			exchange.ErrExchangeDown, a.name, id)
	}

	return &exchange.PriceData{FromCoin: from, ToCoin: to, Last: last}, nil
}
