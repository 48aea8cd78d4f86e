package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// Frankfurter serves fiat reference rates from the free Frankfurter API
// (ECB data, no API key). Any listed currency can be quoted against any
// other, so the capability set is the full directed cross product of the
// currency listing.
type Frankfurter struct {
	*baseAdapter
}

var _ exchange.Adapter = (*Frankfurter)(nil)

// NewFrankfurter builds the Frankfurter adapter.
func NewFrankfurter(opts Options) *Frankfurter {
	return &Frankfurter{
		baseAdapter: newBase("Frankfurter", "frankfurter", frankfurterBaseURL, nil, opts),
	}
}

type frankfurterResponse struct {
	Amount json.Number            `json:"amount"`
	Base   string                 `json:"base"`
	Date   string                 `json:"date"`
	Rates  map[string]json.Number `json:"rates"`
}

// Provides lists every directed pair between the supported currencies.
func (a *Frankfurter) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		var currencies map[string]string
		if err := a.fetchJSON(ctx, a.baseURL+"/currencies", &currencies); err != nil {
			return nil, err
		}
		set := make(exchange.PairSet, len(currencies)*len(currencies))
		for c1 := range currencies {
			for c2 := range currencies {
				if c1 == c2 {
					continue
				}
				set.Add(c1, c2)
			}
		}
		return set, nil
	})
}

// HasPair reports whether both sides are supported currencies.
func (a *Frankfurter) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the reference rate. Only last is populated; reference
// rates have no market depth.
func (a *Frankfurter) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.fetchPair)
}

func (a *Frankfurter) fetchPair(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	endpoint := fmt.Sprintf("%s/latest?from=%s&to=%s",
		a.baseURL, url.QueryEscape(from), url.QueryEscape(to))

	var resp frankfurterResponse
	if err := a.fetchJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	raw, ok := resp.Rates[to]
	if !ok {
		return nil, fmt.Errorf("%w: no %s rate in %s response",
			exchange.ErrExchangeDown, to, a.name)
	}
	last, err := decimal.NewFromString(raw.String())
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable rate from %s for %s/%s",
			exchange.ErrExchangeDown, a.name, from, to)
	}

	return &exchange.PriceData{FromCoin: from, ToCoin: to, Last: last}, nil
}
