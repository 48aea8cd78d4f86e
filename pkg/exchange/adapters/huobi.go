package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const huobiBaseURL = "https://api.huobi.pro"

// Huobi serves tickers from Huobi's merged market detail endpoint, with the
// capability listing loaded from /v1/common/symbols. Huobi reports prices as
// JSON floats, so everything numeric is decoded through json.Number to keep
// the decimal conversion exact.
type Huobi struct {
	*baseAdapter
}

var _ exchange.Adapter = (*Huobi)(nil)

// NewHuobi builds the Huobi adapter.
func NewHuobi(opts Options) *Huobi {
	return &Huobi{
		baseAdapter: newBase("Huobi", "huobi", huobiBaseURL, []string{"USDT", "USDC"}, opts),
	}
}

type huobiSymbolsResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Base  string `json:"base-currency"`
		Quote string `json:"quote-currency"`
	} `json:"data"`
}

type huobiTickerResponse struct {
	Status string `json:"status"`
	Tick   *struct {
		Open   json.Number   `json:"open"`
		Close  json.Number   `json:"close"`
		High   json.Number   `json:"high"`
		Low    json.Number   `json:"low"`
		Amount json.Number   `json:"amount"`
		Bid    []json.Number `json:"bid"` // price, size
		Ask    []json.Number `json:"ask"` // price, size
	} `json:"tick"`
}

// Provides loads Huobi's symbol listing.
func (a *Huobi) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		var resp huobiSymbolsResponse
		if err := a.fetchJSON(ctx, a.baseURL+"/v1/common/symbols", &resp); err != nil {
			return nil, err
		}
		if resp.Data == nil {
			return nil, fmt.Errorf("%w: 'data' missing from %s symbols response",
				exchange.ErrExchangeDown, a.name)
		}
		set := make(exchange.PairSet, len(resp.Data))
		for _, s := range resp.Data {
			set.Add(s.Base, s.Quote)
		}
		return set, nil
	})
}

// HasPair reports whether Huobi lists the pair, treating USDT and USDC
// markets as serving USD requests.
func (a *Huobi) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the pair's merged ticker.
func (a *Huobi) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.fetchPair)
}

func (a *Huobi) fetchPair(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	prov, err := a.Provides(ctx)
	if err != nil {
		return nil, err
	}

	// Huobi quotes tether markets, not USD, so a USD request is fetched
	// from the USDT market under the requested symbols.
	qFrom, qTo := from, to
	if !prov.Has(qFrom, qTo) {
		if qFrom == "USD" {
			qFrom = "USDT"
		}
		if qTo == "USD" {
			qTo = "USDT"
		}
		if !prov.Has(qFrom, qTo) {
			return nil, a.notSupported(from, to)
		}
	}

	symbol := strings.ToLower(qFrom + qTo)
	var resp huobiTickerResponse
	if err := a.fetchJSON(ctx, a.baseURL+"/market/detail/merged?symbol="+symbol, &resp); err != nil {
		return nil, err
	}
	if resp.Tick == nil {
		return nil, fmt.Errorf("%w: 'tick' missing from %s ticker response",
			exchange.ErrExchangeDown, a.name)
	}

	last, err := decimal.NewFromString(resp.Tick.Close.String())
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable close price from %s for %s",
			exchange.ErrExchangeDown, a.name, symbol)
	}

	return &exchange.PriceData{
		FromCoin: from,
		ToCoin:   to,
		Last:     last,
		Bid:      numberDec(numberItem(resp.Tick.Bid, 0)),
		Ask:      numberDec(numberItem(resp.Tick.Ask, 0)),
		Open:     numberDec(resp.Tick.Open),
		Close:    numberDec(resp.Tick.Close),
		High:     numberDec(resp.Tick.High),
		Low:      numberDec(resp.Tick.Low),
		Volume:   numberDec(resp.Tick.Amount),
	}, nil
}

// numberDec converts a json.Number into a present NullDecimal, absent when
// empty or unparsable.
func numberDec(n json.Number) decimal.NullDecimal {
	return exchange.NullDecFromString(n.String())
}

func numberItem(arr []json.Number, i int) json.Number {
	if i >= len(arr) {
		return ""
	}
	return arr[i]
}
