package adapters

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const bittrexBaseURL = "https://api.bittrex.com/v3"

// Bittrex serves tickers from Bittrex's v3 API. A full ticker takes two
// calls: the market ticker for last/bid/ask and the market summary for
// high/low/volume.
type Bittrex struct {
	*baseAdapter
}

var _ exchange.Adapter = (*Bittrex)(nil)

// NewBittrex builds the Bittrex adapter.
func NewBittrex(opts Options) *Bittrex {
	return &Bittrex{
		baseAdapter: newBase("Bittrex", "bittrex", bittrexBaseURL, []string{"USDT"}, opts),
	}
}

type bittrexMarket struct {
	Base  string `json:"baseCurrencySymbol"`
	Quote string `json:"quoteCurrencySymbol"`
}

type bittrexTicker struct {
	LastTradeRate string `json:"lastTradeRate"`
	BidRate       string `json:"bidRate"`
	AskRate       string `json:"askRate"`
}

type bittrexSummary struct {
	High   string `json:"high"`
	Low    string `json:"low"`
	Volume string `json:"volume"`
}

// Provides loads Bittrex's market listing.
func (a *Bittrex) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		var markets []bittrexMarket
		if err := a.fetchJSON(ctx, a.baseURL+"/markets", &markets); err != nil {
			return nil, err
		}
		set := make(exchange.PairSet, len(markets))
		for _, m := range markets {
			set.Add(m.Base, m.Quote)
		}
		return set, nil
	})
}

// HasPair reports whether Bittrex lists the pair, treating USDT markets as
// serving USD requests.
func (a *Bittrex) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the pair's ticker and summary.
func (a *Bittrex) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.fetchPair)
}

func (a *Bittrex) fetchPair(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	prov, err := a.Provides(ctx)
	if err != nil {
		return nil, err
	}

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

	market := qFrom + "-" + qTo
	var ticker bittrexTicker
	if err := a.fetchJSON(ctx, a.baseURL+"/markets/"+market+"/ticker", &ticker); err != nil {
		return nil, err
	}
	var summary bittrexSummary
	if err := a.fetchJSON(ctx, a.baseURL+"/markets/"+market+"/summary", &summary); err != nil {
		return nil, err
	}

	last, err := decimal.NewFromString(ticker.LastTradeRate)
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable last trade rate from %s for %s",
			exchange.ErrExchangeDown, a.name, market)
	}

	return &exchange.PriceData{
		FromCoin: from,
		ToCoin:   to,
		Last:     last,
		Bid:      exchange.NullDecFromString(ticker.BidRate),
		Ask:      exchange.NullDecFromString(ticker.AskRate),
		High:     exchange.NullDecFromString(summary.High),
		Low:      exchange.NullDecFromString(summary.Low),
		Volume:   exchange.NullDecFromString(summary.Volume),
	}, nil
}
