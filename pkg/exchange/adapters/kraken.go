package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const krakenBaseURL = "https://api.kraken.com/0/public"

// krakenSymbolMap translates Kraken's legacy asset codes back to their
// conventional symbols.
var krakenSymbolMap = map[string]string{
	"XXDG": "DOGE",
	"XDG":  "DOGE",
	"XXBT": "BTC",
	"XBT":  "BTC",
	"XLTC": "LTC",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ZGBP": "GBP",
	"ZJPY": "JPY",
}

// krakenSymbolCandidates maps a conventional symbol onto the spellings
// Kraken might use for it, tried in order when guessing a pair name.
var krakenSymbolCandidates = map[string][]string{
	"DOGE": {"XDG", "XXDG"},
	"BTC":  {"XXBT", "XBT"},
	"XBT":  {"XXBT", "XBT"},
	"LTC":  {"XLTC", "LTC"},
	"ETH":  {"XETH", "ETH"},
	"ETC":  {"XETC", "ETC"},
	"XRP":  {"XXRP", "XRP"},
	"XMR":  {"XXMR", "XMR"},
	"USD":  {"ZUSD", "USD", "USDT", "USDC"},
	"EUR":  {"ZEUR", "EUR"},
	"GBP":  {"ZGBP", "GBP"},
	"CAD":  {"ZCAD", "CAD"},
	"JPY":  {"ZJPY", "JPY"},
}

// krakenKnownBases lists quote-currency suffixes for splitting Kraken's
// concatenated pair names, scanned in order.
var krakenKnownBases = []string{
	"XXDG", "XDG", "XXBT", "XBT", "XLTC",
	"ZUSD", "ZEUR", "ZGBP", "ZJPY",
	"BTC", "ETH", "USDT", "USDC",
	"USD", "GBP", "EUR", "JPY",
	"CAD", "CHF", "DAI",
}

// krakenKnownPairs seeds the pair-name memo with common markets, skipping
// the guessing pass for them entirely.
var krakenKnownPairs = map[string]string{
	"BTC_USD": "XXBTZUSD", "LTC_USD": "XLTCZUSD", "ETH_USD": "XETHZUSD",
	"BTC_EUR": "XXBTZEUR", "LTC_EUR": "XLTCZEUR", "ETH_EUR": "XETHZEUR",
	"BTC_GBP": "XXBTZGBP", "LTC_GBP": "XLTCZGBP", "ETH_GBP": "XETHZGBP",
	"EOS_USD": "EOSUSD", "EOS_BTC": "EOSXBT",
	"LTC_BTC": "XLTCXXBT", "ETH_BTC": "XETHXXBT",
	"USD_EUR": "USDTEUR", "USD_GBP": "USDTGBP", "USD_CAD": "USDTCAD",
}

// Kraken serves tickers from Kraken's public API. Kraken's asset naming is
// famously inconsistent, so unseeded pairs are resolved by trying candidate
// symbol spellings until one works; successful guesses are memoized.
type Kraken struct {
	*baseAdapter

	mu         sync.Mutex
	knownPairs map[string]string
}

var _ exchange.Adapter = (*Kraken)(nil)

// NewKraken builds the Kraken adapter.
func NewKraken(opts Options) *Kraken {
	known := make(map[string]string, len(krakenKnownPairs))
	for k, v := range krakenKnownPairs {
		known[k] = v
	}
	return &Kraken{
		baseAdapter: newBase("Kraken", "kraken", krakenBaseURL, []string{"USDT", "USDC"}, opts),
		knownPairs:  known,
	}
}

type krakenTicker struct {
	Ask    []string `json:"a"` // price, whole lot volume, lot volume
	Bid    []string `json:"b"`
	Last   []string `json:"c"` // price, lot volume
	Volume []string `json:"v"` // today, last 24h
	Low    []string `json:"l"`
	High   []string `json:"h"`
	Open   string   `json:"o"`
}

// query wraps fetchJSON with Kraken's response envelope: a non-empty error
// array means the call failed even on HTTP 200.
func (a *Kraken) query(ctx context.Context, endpoint string, result any) error {
	var envelope struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := a.fetchJSON(ctx, a.baseURL+"/"+endpoint, &envelope); err != nil {
		return err
	}
	if len(envelope.Error) > 0 {
		return fmt.Errorf("%w: %s reported %v", exchange.ErrExchangeDown, a.name, envelope.Error)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("%w: decoding %s result: %v", exchange.ErrExchangeDown, a.name, err)
	}
	return nil
}

// splitKrakenSymbol splits a concatenated pair name like "XXBTZUSD" by
// scanning known quote suffixes, then maps legacy codes to conventional
// symbols on both sides.
func splitKrakenSymbol(symbol string) (from, to string, ok bool) {
	symbol = strings.ToUpper(symbol)
	for _, base := range krakenKnownBases {
		if !strings.HasSuffix(symbol, base) {
			continue
		}
		from = strings.TrimSuffix(symbol, base)
		if from == "" {
			return "", "", false
		}
		to = base
		if real, mapped := krakenSymbolMap[to]; mapped {
			to = real
		}
		if real, mapped := krakenSymbolMap[from]; mapped {
			from = real
		}
		return from, to, true
	}
	return "", "", false
}

// Provides loads Kraken's asset pair listing and normalizes the pair names.
func (a *Kraken) Provides(ctx context.Context) (exchange.PairSet, error) {
	return a.cachedProvides(ctx, func(ctx context.Context) (exchange.PairSet, error) {
		var result map[string]json.RawMessage
		if err := a.query(ctx, "AssetPairs?info=fees", &result); err != nil {
			return nil, err
		}
		set := make(exchange.PairSet, len(result))
		for symbol := range result {
			from, to, ok := splitKrakenSymbol(symbol)
			if !ok {
				a.log.Debug("skipping asset pair with unknown quote currency", "symbol", symbol)
				continue
			}
			set.Add(from, to)
		}
		return set, nil
	})
}

// HasPair reports whether Kraken lists the pair, treating USDT and USDC
// markets as serving USD requests.
func (a *Kraken) HasPair(ctx context.Context, fromCoin, toCoin string) (bool, error) {
	return a.hasPair(ctx, a.Provides, fromCoin, toCoin)
}

// GetPair fetches the pair's ticker, guessing Kraken's pair name if needed.
func (a *Kraken) GetPair(ctx context.Context, fromCoin, toCoin string) (*exchange.PriceData, error) {
	return a.getPair(ctx, fromCoin, toCoin, a.HasPair, a.getTicker)
}

func (a *Kraken) getTicker(ctx context.Context, from, to string) (*exchange.PriceData, error) {
	pairKey := exchange.PairKey(from, to)

	a.mu.Lock()
	xpair, known := a.knownPairs[pairKey]
	a.mu.Unlock()
	if known {
		a.log.Debug("using known Kraken pair name", "pair", pairKey, "kraken_pair", xpair)
		return a.fetchTicker(ctx, xpair, from, to)
	}

	fromCandidates := []string{from}
	if c, ok := krakenSymbolCandidates[from]; ok {
		fromCandidates = c
	}
	toCandidates := []string{to}
	if c, ok := krakenSymbolCandidates[to]; ok {
		toCandidates = c
	}

	for _, fc := range fromCandidates {
		for _, tc := range toCandidates {
			data, err := a.fetchTicker(ctx, fc+tc, from, to)
			if err != nil {
				if errors.Is(err, exchange.ErrExchangeRateLimited) {
					return nil, err
				}
				if errors.Is(err, exchange.ErrExchangeDown) {
					a.log.Debug("guessed Kraken pair name rejected", "kraken_pair", fc+tc)
					continue
				}
				return nil, err
			}
			a.mu.Lock()
			a.knownPairs[pairKey] = fc + tc
			a.mu.Unlock()
			a.log.Debug("memoized Kraken pair name", "pair", pairKey, "kraken_pair", fc+tc)
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: cannot resolve a Kraken pair name for %s/%s",
		exchange.ErrExchangeDown, from, to)
}

func (a *Kraken) fetchTicker(ctx context.Context, xpair, from, to string) (*exchange.PriceData, error) {
	var result map[string]krakenTicker
	if err := a.query(ctx, "Ticker?pair="+xpair, &result); err != nil {
		return nil, err
	}

	// The result holds a single entry for a single-pair query, keyed by
	// whichever spelling Kraken prefers.
	var tick krakenTicker
	found := false
	for _, v := range result {
		tick, found = v, true
		break
	}
	if !found {
		return nil, fmt.Errorf("%w: empty ticker result from %s for %s",
			exchange.ErrExchangeDown, a.name, xpair)
	}

	last, err := decimal.NewFromString(arrayItem(tick.Last, 0))
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable last price from %s for %s",
			exchange.ErrExchangeDown, a.name, xpair)
	}

	return &exchange.PriceData{
		FromCoin: from,
		ToCoin:   to,
		Last:     last,
		Ask:      exchange.NullDecFromString(arrayItem(tick.Ask, 0)),
		Bid:      exchange.NullDecFromString(arrayItem(tick.Bid, 0)),
		Open:     exchange.NullDecFromString(tick.Open),
		Low:      exchange.NullDecFromString(arrayItem(tick.Low, 0)),
		High:     exchange.NullDecFromString(arrayItem(tick.High, 0)),
		Volume:   exchange.NullDecFromString(arrayItem(tick.Volume, 0)),
	}, nil
}

// arrayItem indexes Kraken's positional ticker arrays, tolerating short or
// absent arrays.
func arrayItem(arr []string, i int) string {
	if i >= len(arr) {
		return ""
	}
	return arr[i]
}
