package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGet(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("hello"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestMemory_MissingKey(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := m.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ExpiredKey(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_ZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	time.Sleep(15 * time.Millisecond)

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemory_OverwriteReplacesValue(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("old"), time.Minute))
	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Minute))

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)
}

func TestMemory_Delete(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, m.Delete(ctx, "k"))
	require.NoError(t, m.Delete(ctx, "k"))

	_, err := m.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
}

func TestMemory_SetCopiesValue(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf, time.Minute))
	buf[0] = 'x'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestJSONHelpers_RoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	in := map[string]string{"BTC_USD": "64000.5", "HIVE_BTC": "0.0000042"}
	require.NoError(t, SetJSON(ctx, m, "rates", in, time.Minute))

	out, err := GetJSON[map[string]string](ctx, m, "rates")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestJSONHelpers_MissPassesThrough(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := GetJSON[map[string]string](context.Background(), m, "nope")
	require.ErrorIs(t, err, ErrMiss)
}

func TestJSONHelpers_DecodeFailure(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "bad", []byte("not json"), time.Minute))

	_, err := GetJSON[map[string]string](ctx, m, "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestNew_SelectsBackend(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	require.IsType(t, (*Memory)(nil), c)
	c.Close()

	c, err = New(Config{Backend: "memory"})
	require.NoError(t, err)
	require.IsType(t, (*Memory)(nil), c)
	c.Close()

	_, err = New(Config{Backend: "memcached"})
	require.Error(t, err)
}

func TestKeys_Format(t *testing.T) {
	assert.Equal(t, "exch:binance:BTC_USDT", KeyPair("binance", "btc", "usdt"))
	assert.Equal(t, "exch:kraken:provides", KeyProvides("kraken"))
	assert.Equal(t, "exch:kraken:all_tickers", KeyTickers("kraken"))
	assert.Equal(t, "exch:huobi:coins", KeyCoins("huobi"))
	assert.Equal(t, "exch:proxy_rates", KeyProxyRates)
}
