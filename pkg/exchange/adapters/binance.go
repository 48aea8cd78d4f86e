package adapters

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/exchange/cache"
)

const (
	binanceBaseURL    = "https://api.binance.com"
	binanceTickerPath = "/api/v1/ticker/24hr"
)

// binanceKnownBases lists the quote currencies Binance concatenates onto the
// base symbol, scanned in order when splitting a pair like "BTCUSDT". Order
// matters: the first suffix match wins.
var binanceKnownBases = []string{
	"BTC", "USDT", "USDC",
	"BUSD", "TUSD", "USD",
	"ETH", "TRX", "XRP",
	"PAX", "BKRW", "EUR",
	"NGN", "RUB", "TRY",
	"ZAR",
}

// Binance serves tickers from Binance's bulk 24hr statistics endpoint. One
// call returns every market, so both the capability listing and individual
// pair fetches are carved out of the same cached response.
type Binance struct {
	*baseAdapter
}

var _ exchange.Adapter = (*Binance)(nil)

// NewBinance builds the Binance adapter.
func NewBinance(opts Options) *Binance {
	return &Binance{
		baseAdapter: newBase("Binance", "binance", binanceBaseURL, []string{"USDT", "USDC"}, opts),
	}
}

type binanceTicker struct {
	Symbol         string `json:"symbol"`
	LastPrice      string `json:"lastPrice"`
	BidPrice       string `json:"bidPrice"`
	AskPrice       string `json:"askPrice"`
	OpenPrice      string `json:"openPrice"`
	PrevClosePrice string `json:"prevClosePrice"`
	HighPrice      string `json:"highPrice"`
	LowPrice       string `json:"lowPrice"`
	Volume         string `json:"volume"`
}

// splitBinanceSymbol splits a concatenated market symbol like "HIVEBTC" into
// its base and quote by scanning the known quote suffixes.
func splitBinanceSymbol(symbol string) (from, to string, ok bool) {
	symbol = strings.ToUpper(symbol)
	for _, base := range binanceKnownBases {
		if !strings.HasSuffix(symbol, base) {
			continue
		}
		from = strings.TrimSuffix(symbol, base)
		if from == "" {
			return "", "", false
		}
		return from, base, true
	}
	return "", "", false
}

// allTickers returns the full pair-keyed ticker map, cached for the ticker
// TTL.
func (a *Binance) allTickers(ctx context.Context) (map[string]exchange.PriceData, error) {
	key := cache.KeyTickers(a.code)
	if data, err := cache.GetJSON[map[string]exchange.PriceData](ctx, a.cache, key); err == nil {
		return data, nil
	}

	var raw []binanceTicker
	if err := a.fetchJSON(ctx, a.baseURL+binanceTickerPath, &raw); err != nil {
		return nil, err
	}

	data := make(map[string]exchange.PriceData, len(raw))
	for _, t := range raw {
		from, to, ok := splitBinanceSymbol(t.Symbol)
		if !ok {
			a.log.Debug("skipping symbol with unknown quote currency", "symbol", t.Symbol)
			continue
		}
		last, err := decimal.NewFromString(t.LastPrice)
		if err != nil {
			a.log.Debug("skipping symbol with unparsable last price",
				"symbol", t.Symbol, "last", t.LastPrice)
			continue
		}
		data[exchange.PairKey(from, to)] = exchange.PriceData{
			FromCoin: from,
			ToCoin:   to,
			Last:     last,
			Bid:      exchange.NullDecFromString(t.BidPrice),
			Ask:      exchange.NullDecFromString(t.AskPrice),
			Open:     exchange.NullDecFromString(t.OpenPrice),
			Close:    exchange.NullDecFromString(t.PrevClosePrice),
			High:     exchange.NullDecFromString(t.HighPrice),
			Low:      exchange.NullDecFromString(t.LowPrice),
			Volume:   exchange.NullDecFromString(t.Volume),
		}
	}

	if err := cache.SetJSON(ctx, a.cache, key, data, a.tickerTTL); err != nil {
		a.log.Warn("failed caching bulk tickers", "error", err)
	}
	return data, nil
}

// Provides derives the capability set from the bulk ticker map.
func (a *Binance) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		tickers, err := a.allTickers(ctx)
		if err != nil {
			return nil, err
		}
		set := make(exchange.PairSet, len(tickers))
		for _, pd := range tickers {
			set.Add(pd.FromCoin, pd.ToCoin)
		}
		return set, nil
	})
}

// HasPair reports whether Binance lists the pair, treating USDT and USDC
// markets as serving USD requests.
func (a *Binance) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the pair's ticker out of the bulk response.
func (a *Binance) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.fetchPair)
}

func (a *Binance) fetchPair(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	tickers, err := a.allTickers(ctx)
	if err != nil {
		return nil, err
	}

	keys := []string{exchange.PairKey(from, to)}
	for _, alias := range a.usdAliases {
		if from == "USD" {
			keys = append(keys, exchange.PairKey(alias, to))
		}
		if to == "USD" {
			keys = append(keys, exchange.PairKey(from, alias))
		}
	}

	for _, key := range keys {
		if pd, ok := tickers[key]; ok {
			// The ticker may come from a stablecoin market, so rewrite the
			// symbols to the requested pair.
			pd.FromCoin, pd.ToCoin = from, to
			return &pd, nil
		}
	}
	return nil, a.notSupported(from, to)
}
