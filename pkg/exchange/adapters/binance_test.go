package adapters

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const binanceTickersFixture = `[
  {"symbol":"BTCUSDT","lastPrice":"9120.5","bidPrice":"9119.0","askPrice":"9122.0",
   "openPrice":"9000.0","prevClosePrice":"8998.5","highPrice":"9200.0","lowPrice":"8950.0","volume":"1234.5"},
  {"symbol":"HIVEBTC","lastPrice":"0.00001545","bidPrice":"0.00001540","askPrice":"0.00001550",
   "openPrice":"0.00001500","prevClosePrice":"0.00001510","highPrice":"0.00001600","lowPrice":"0.00001480","volume":"99887.0"},
  {"symbol":"ETHBTC","lastPrice":"0.025","bidPrice":"","askPrice":"","openPrice":"",
   "prevClosePrice":"","highPrice":"","lowPrice":"","volume":""},
  {"symbol":"XYZQQQ","lastPrice":"1.0","bidPrice":"","askPrice":"","openPrice":"",
   "prevClosePrice":"","highPrice":"","lowPrice":"","volume":""},
  {"symbol":"LTCBTC","lastPrice":"not-a-number","bidPrice":"","askPrice":"","openPrice":"",
   "prevClosePrice":"","highPrice":"","lowPrice":"","volume":""}
]`

func newBinanceFixture(t *testing.T) (*Binance, *int64) {
	t.Helper()
	var hits int64
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ticker/24hr" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(&hits, 1)
		_, _ = w.Write([]byte(binanceTickersFixture))
	})
	return NewBinance(testOptions(t, srv)), &hits
}

func TestSplitBinanceSymbol(t *testing.T) {
	cases := []struct {
		symbol   string
		from, to string
		ok       bool
	}{
		{"BTCUSDT", "BTC", "USDT", true},
		{"HIVEBTC", "HIVE", "BTC", true},
		{"BNBBUSD", "BNB", "BUSD", true},
		{"EURUSDT", "EUR", "USDT", true},
		{"ethbtc", "ETH", "BTC", true},
		{"BTC", "", "", false},
		{"XYZQQQ", "", "", false},
	}
	for _, c := range cases {
		from, to, ok := splitBinanceSymbol(c.symbol)
		assert.Equal(t, c.ok, ok, c.symbol)
		assert.Equal(t, c.from, from, c.symbol)
		assert.Equal(t, c.to, to, c.symbol)
	}
}

func TestBinance_ProvidesSplitsSymbols(t *testing.T) {
	a, _ := newBinanceFixture(t)

	prov, err := a.Provides(context.Background())
	require.NoError(t, err)

	assert.True(t, prov.Has("BTC", "USDT"))
	assert.True(t, prov.Has("HIVE", "BTC"))
	assert.True(t, prov.Has("ETH", "BTC"))
	// The unknown-quote symbol and the unparsable-price symbol are skipped.
	require.Len(t, prov, 3)
}

func TestBinance_HasPairUSDAliases(t *testing.T) {
	a, _ := newBinanceFixture(t)
	ctx := context.Background()

	ok, err := a.HasPair(ctx, "BTC", "USD")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.HasPair(ctx, "btc", "usdt")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.HasPair(ctx, "DOGE", "USD")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBinance_GetPairRewritesStablecoinSymbols(t *testing.T) {
	a, _ := newBinanceFixture(t)

	data, err := a.GetPair(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	assert.Equal(t, "BTC", data.FromCoin)
	assert.Equal(t, "USD", data.ToCoin)
	assert.True(t, data.Last.Equal(decRequire(t, "9120.5")))
	require.True(t, data.Bid.Valid)
	assert.True(t, data.Bid.Decimal.Equal(decRequire(t, "9119.0")))
	require.True(t, data.Close.Valid)
	assert.True(t, data.Close.Decimal.Equal(decRequire(t, "8998.5")))
}

func TestBinance_GetPairDirect(t *testing.T) {
	a, _ := newBinanceFixture(t)

	data, err := a.GetPair(context.Background(), "hive", "btc")
	require.NoError(t, err)

	assert.Equal(t, "HIVE", data.FromCoin)
	assert.Equal(t, "BTC", data.ToCoin)
	assert.True(t, data.Last.Equal(decRequire(t, "0.00001545")))
	require.True(t, data.Volume.Valid)
	assert.True(t, data.Volume.Decimal.Equal(decRequire(t, "99887.0")))
}

func TestBinance_GetPairAbsentFieldsStayAbsent(t *testing.T) {
	a, _ := newBinanceFixture(t)

	data, err := a.GetPair(context.Background(), "ETH", "BTC")
	require.NoError(t, err)

	assert.True(t, data.Last.Equal(decRequire(t, "0.025")))
	assert.False(t, data.Bid.Valid)
	assert.False(t, data.Volume.Valid)
}

func TestBinance_GetPairUnknown(t *testing.T) {
	a, _ := newBinanceFixture(t)

	_, err := a.GetPair(context.Background(), "DOGE", "EUR")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrPairNotFound)
}

func TestBinance_BulkTickerFetchedOnce(t *testing.T) {
	a, hits := newBinanceFixture(t)
	ctx := context.Background()

	_, err := a.Provides(ctx)
	require.NoError(t, err)
	_, err = a.GetPair(ctx, "BTC", "USD")
	require.NoError(t, err)
	_, err = a.GetPair(ctx, "HIVE", "BTC")
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(hits))
}

func TestBinance_UpstreamDown(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	a := NewBinance(testOptions(t, srv))

	_, err := a.GetPair(context.Background(), "BTC", "USDT")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrExchangeDown)
}
