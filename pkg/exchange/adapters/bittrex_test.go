package adapters

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const bittrexMarketsFixture = `[
  {"baseCurrencySymbol":"BTC","quoteCurrencySymbol":"USDT"},
  {"baseCurrencySymbol":"HIVE","quoteCurrencySymbol":"BTC"}
]`

func newBittrexFixture(t *testing.T) (*Bittrex, *[]string) {
	t.Helper()
	var paths []string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets":
			_, _ = w.Write([]byte(bittrexMarketsFixture))
		case "/markets/BTC-USDT/ticker":
			paths = append(paths, r.URL.Path)
			_, _ = w.Write([]byte(`{"lastTradeRate":"9120.123","bidRate":"9119.0","askRate":"9121.0"}`))
		case "/markets/BTC-USDT/summary":
			paths = append(paths, r.URL.Path)
			_, _ = w.Write([]byte(`{"high":"9300.5","low":"8900.1","volume":"4321.0"}`))
		default:
			http.NotFound(w, r)
		}
	})
	return NewBittrex(testOptions(t, srv)), &paths
}

func TestBittrex_Provides(t *testing.T) {
	a, _ := newBittrexFixture(t)

	prov, err := a.Provides(context.Background())
	require.NoError(t, err)
	assert.True(t, prov.Has("BTC", "USDT"))
	assert.True(t, prov.Has("HIVE", "BTC"))
	require.Len(t, prov, 2)
}

func TestBittrex_HasPairUSDTOnly(t *testing.T) {
	a, _ := newBittrexFixture(t)
	ctx := context.Background()

	ok, err := a.HasPair(ctx, "BTC", "USD")
	require.NoError(t, err)
	assert.True(t, ok)

	// Bittrex only aliases USDT, and there is no USDT base market here.
	ok, err = a.HasPair(ctx, "USD", "BTC")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBittrex_GetPairMergesTickerAndSummary(t *testing.T) {
	a, paths := newBittrexFixture(t)

	data, err := a.GetPair(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	require.Equal(t, []string{"/markets/BTC-USDT/ticker", "/markets/BTC-USDT/summary"}, *paths)
	assert.Equal(t, "BTC", data.FromCoin)
	assert.Equal(t, "USD", data.ToCoin)
	assert.True(t, data.Last.Equal(decRequire(t, "9120.123")))
	require.True(t, data.Bid.Valid)
	assert.True(t, data.Bid.Decimal.Equal(decRequire(t, "9119.0")))
	require.True(t, data.High.Valid)
	assert.True(t, data.High.Decimal.Equal(decRequire(t, "9300.5")))
	require.True(t, data.Volume.Valid)
	assert.True(t, data.Volume.Decimal.Equal(decRequire(t, "4321.0")))
	assert.False(t, data.Open.Valid)
}

func TestBittrex_GetPairUnknown(t *testing.T) {
	a, _ := newBittrexFixture(t)

	_, err := a.GetPair(context.Background(), "DOGE", "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrPairNotFound)
}
