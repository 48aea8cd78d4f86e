package adapters

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Privex/go-exchange/pkg/exchange"
)

const huobiSymbolsFixture = `{"status":"ok","data":[
  {"base-currency":"btc","quote-currency":"usdt"},
  {"base-currency":"hive","quote-currency":"btc"},
  {"base-currency":"eth","quote-currency":"btc"}
]}`

const huobiTickerFixture = `{"status":"ok","tick":{
  "open":9000.12,"close":9123.456789,"high":9200.5,"low":8900.25,
  "amount":12345.678,"bid":[9123.0,1.5],"ask":[9124.0,2.5]
}}`

func newHuobiFixture(t *testing.T, tickerBody string) (*Huobi, *[]string) {
	t.Helper()
	var symbols []string
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/common/symbols":
			_, _ = w.Write([]byte(huobiSymbolsFixture))
		case "/market/detail/merged":
			symbols = append(symbols, r.URL.Query().Get("symbol"))
			_, _ = w.Write([]byte(tickerBody))
		default:
			http.NotFound(w, r)
		}
	})
	return NewHuobi(testOptions(t, srv)), &symbols
}

func TestHuobi_Provides(t *testing.T) {
	a, _ := newHuobiFixture(t, huobiTickerFixture)

	prov, err := a.Provides(context.Background())
	require.NoError(t, err)

	assert.True(t, prov.Has("BTC", "USDT"))
	assert.True(t, prov.Has("HIVE", "BTC"))
	assert.True(t, prov.Has("ETH", "BTC"))
	require.Len(t, prov, 3)
}

func TestHuobi_GetPairUSDSubstitution(t *testing.T) {
	a, symbols := newHuobiFixture(t, huobiTickerFixture)

	data, err := a.GetPair(context.Background(), "BTC", "USD")
	require.NoError(t, err)

	// The request goes to the tether market but keeps the caller's symbols.
	require.Equal(t, []string{"btcusdt"}, *symbols)
	assert.Equal(t, "BTC", data.FromCoin)
	assert.Equal(t, "USD", data.ToCoin)

	// Floats survive exactly through the json.Number path.
	assert.True(t, data.Last.Equal(decRequire(t, "9123.456789")))
	require.True(t, data.Open.Valid)
	assert.True(t, data.Open.Decimal.Equal(decRequire(t, "9000.12")))
	require.True(t, data.Bid.Valid)
	assert.True(t, data.Bid.Decimal.Equal(decRequire(t, "9123.0")))
	require.True(t, data.Ask.Valid)
	assert.True(t, data.Ask.Decimal.Equal(decRequire(t, "9124.0")))
	require.True(t, data.Volume.Valid)
	assert.True(t, data.Volume.Decimal.Equal(decRequire(t, "12345.678")))
	require.True(t, data.Close.Valid)
	assert.True(t, data.Close.Decimal.Equal(data.Last))
}

func TestHuobi_GetPairUnknown(t *testing.T) {
	a, symbols := newHuobiFixture(t, huobiTickerFixture)

	_, err := a.GetPair(context.Background(), "DOGE", "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrPairNotFound)
	assert.Empty(t, *symbols)
}

func TestHuobi_MissingTick(t *testing.T) {
	a, _ := newHuobiFixture(t, `{"status":"error","err-code":"invalid-parameter"}`)

	_, err := a.GetPair(context.Background(), "HIVE", "BTC")
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrExchangeDown)
	assert.Contains(t, err.Error(), "'tick' missing")
}

func TestHuobi_MissingData(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error"}`))
	})
	a := NewHuobi(testOptions(t, srv))

	_, err := a.Provides(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, exchange.ErrExchangeDown)
	assert.Contains(t, err.Error(), "'data' missing")
}
