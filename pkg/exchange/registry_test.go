package exchange

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadIndexesPairs(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a))

	assert.True(t, reg.PairExists("BTC", "USD"))
	assert.True(t, reg.PairExists("btc", "usd"))
	assert.False(t, reg.PairExists("USD", "BTC"))

	got, err := reg.AdapterByCode("exa")
	require.NoError(t, err)
	assert.Equal(t, "exa", got.Code())

	got, err = reg.AdapterByName("Example A")
	require.NoError(t, err)
	assert.Equal(t, "exa", got.Code())
}

func TestRegistry_UnknownAdapter(t *testing.T) {
	reg := NewRegistry(RegistryConfig{}, nil)

	_, err := reg.AdapterByCode("nope")
	require.ErrorIs(t, err, ErrUnknownAdapter)

	_, err = reg.AdapterByName("Nope")
	require.ErrorIs(t, err, ErrUnknownAdapter)
}

func TestRegistry_TetherAliasIndexing(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USDT", "64000")
	b := newMockAdapter("Example B", "exb").quote("USDC", "BTC", "0.0000156")
	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a, b))

	// Quote-side alias: BTC/USDT is also served as BTC/USD.
	assert.True(t, reg.PairExists("BTC", "USD"))
	found := reg.PairAdapters("BTC", "USD")
	require.Len(t, found, 1)
	assert.Equal(t, "exa", found[0].Code())

	// Base-side alias: USDC/BTC is also served as USD/BTC.
	assert.True(t, reg.PairExists("USD", "BTC"))
	found = reg.PairAdapters("USD", "BTC")
	require.Len(t, found, 1)
	assert.Equal(t, "exb", found[0].Code())
}

func TestRegistry_AliasSubstitutesBaseSideOnly(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("USDT", "USDC", "1.0001")
	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a))

	assert.True(t, reg.PairExists("USDT", "USDC"))
	assert.True(t, reg.PairExists("USD", "USDC"))
	assert.False(t, reg.PairExists("USDT", "USD"))
}

func TestRegistry_DisableTetherAliases(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USDT", "64000")
	reg := NewRegistry(RegistryConfig{DisableTetherAliases: true}, nil)
	require.NoError(t, reg.Load(context.Background(), a))

	assert.True(t, reg.PairExists("BTC", "USDT"))
	assert.False(t, reg.PairExists("BTC", "USD"))
}

func TestRegistry_PriorityFollowsRegistrationOrder(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	b := newMockAdapter("Example B", "exb").quote("BTC", "USD", "9100")

	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a, b))

	found := reg.PairAdapters("BTC", "USD")
	require.Len(t, found, 2)
	assert.Equal(t, "exa", found[0].Code())
	assert.Equal(t, "exb", found[1].Code())

	// Same adapters loaded the other way around flip the priority.
	reg = NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), b, a))

	found = reg.PairAdapters("BTC", "USD")
	require.Len(t, found, 2)
	assert.Equal(t, "exb", found[0].Code())
}

func TestRegistry_ReloadAppendsWithoutDuplicates(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	reg := NewRegistry(RegistryConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, reg.Load(ctx, a))

	require.NoError(t, reg.ReloadOne(ctx, "exa"))
	require.Len(t, reg.PairAdapters("BTC", "USD"), 1)

	// A pair the exchange starts listing later shows up after a reload,
	// without disturbing the existing index.
	a.quote("LTC", "BTC", "0.0021")
	require.NoError(t, reg.ReloadOne(ctx, "exa"))
	assert.True(t, reg.PairExists("LTC", "BTC"))
	require.Len(t, reg.PairAdapters("BTC", "USD"), 1)
}

func TestRegistry_ReloadAll(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	b := newMockAdapter("Example B", "exb").quote("HIVE", "BTC", "0.00002")
	reg := NewRegistry(RegistryConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, reg.Load(ctx, a, b))

	a.quote("ETH", "BTC", "0.05")
	b.quote("STEEM", "BTC", "0.00001")
	require.NoError(t, reg.ReloadAll(ctx))

	assert.True(t, reg.PairExists("ETH", "BTC"))
	assert.True(t, reg.PairExists("STEEM", "BTC"))
}

func TestRegistry_LoadPartialFailure(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	b := newMockAdapter("Example B", "exb").failProvides(errors.New("connection refused"))

	reg := NewRegistry(RegistryConfig{}, nil)
	ctx := context.Background()

	err := reg.Load(ctx, a, b)
	require.Error(t, err)

	// The healthy adapter is fully indexed despite the failure.
	assert.True(t, reg.PairExists("BTC", "USD"))

	// The broken adapter is still registered so it can recover later.
	_, err = reg.AdapterByCode("exb")
	require.NoError(t, err)

	b.providesErr = nil
	b.quote("HIVE", "BTC", "0.00002")
	require.NoError(t, reg.ReloadOne(ctx, "exb"))
	assert.True(t, reg.PairExists("HIVE", "BTC"))
}

func TestRegistry_AdaptersInRegistrationOrder(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	b := newMockAdapter("Example B", "exb").quote("HIVE", "BTC", "0.00002")
	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a, b))

	all := reg.Adapters()
	require.Len(t, all, 2)
	assert.Equal(t, "exa", all[0].Code())
	assert.Equal(t, "exb", all[1].Code())
}

func TestRegistry_Stats(t *testing.T) {
	a := newMockAdapter("Example A", "exa").quote("BTC", "USD", "9000")
	b := newMockAdapter("Example B", "exb").quote("BTC", "USDT", "9100")
	reg := NewRegistry(RegistryConfig{}, nil)
	require.NoError(t, reg.Load(context.Background(), a, b))

	stats := reg.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, AdapterStats{Code: "exa", Name: "Example A", Pairs: 1}, stats[0])

	// The aliased BTC/USD entry counts alongside the native BTC/USDT one.
	assert.Equal(t, AdapterStats{Code: "exb", Name: "Example B", Pairs: 2}, stats[1])
}

func TestRegistry_PairListings(t *testing.T) {
	a := newMockAdapter("Example A", "exa").
		quote("BTC", "USD", "9000").
		quote("LTC", "BTC", "0.0021")
	reg := NewRegistry(RegistryConfig{DisableTetherAliases: true}, nil)
	require.NoError(t, reg.Load(context.Background(), a))

	pairs := reg.Pairs()
	require.Len(t, pairs, 2)
	assert.Equal(t, NewPair("BTC", "USD"), pairs[0])
	assert.Equal(t, NewPair("LTC", "BTC"), pairs[1])

	from := reg.ListPairsFrom("btc")
	require.Len(t, from, 1)
	assert.Equal(t, NewPair("BTC", "USD"), from[0])

	to := reg.ListPairsTo("btc")
	require.Len(t, to, 1)
	assert.Equal(t, NewPair("LTC", "BTC"), to[0])
}
