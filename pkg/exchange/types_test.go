package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPair_Uppercases(t *testing.T) {
	p := NewPair("btc", "usd")
	assert.Equal(t, "BTC", p.From)
	assert.Equal(t, "USD", p.To)
	assert.Equal(t, "BTC_USD", p.Key())
	assert.Equal(t, "BTC/USD", p.String())
}

func TestPair_Inverse(t *testing.T) {
	p := NewPair("HIVE", "BTC")
	inv := p.Inverse()
	assert.Equal(t, Pair{From: "BTC", To: "HIVE"}, inv)
	assert.Equal(t, p, inv.Inverse())
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "HIVE_BTC", PairKey("hive", "btc"))
	assert.Equal(t, "BTC_USD", PairKey("BTC", "USD"))
}

func TestValidField(t *testing.T) {
	for _, f := range []string{
		FieldLast, FieldBid, FieldAsk, FieldOpen,
		FieldClose, FieldHigh, FieldLow, FieldVolume,
	} {
		assert.True(t, ValidField(f), f)
	}
	assert.False(t, ValidField(""))
	assert.False(t, ValidField("vwap"))
	assert.False(t, ValidField("price"))
}

func TestPairSet_AddHas(t *testing.T) {
	s := NewPairSet()
	s.Add("btc", "usd")

	assert.True(t, s.Has("BTC", "USD"))
	assert.True(t, s.Has("btc", "usd"))
	assert.False(t, s.Has("USD", "BTC"))

	s.Add("BTC", "usd")
	require.Len(t, s, 1)
}

func TestPairSet_Merge(t *testing.T) {
	a := NewPairSet(NewPair("BTC", "USD"))
	b := NewPairSet(NewPair("BTC", "USD"), NewPair("HIVE", "BTC"))

	a.Merge(b)
	assert.Len(t, a, 2)
	assert.True(t, a.Has("HIVE", "BTC"))
}

func TestPairSet_SortedIsDeterministic(t *testing.T) {
	s := NewPairSet(
		NewPair("LTC", "BTC"),
		NewPair("BTC", "USD"),
		NewPair("EOS", "USD"),
		NewPair("BTC", "EUR"),
	)

	want := []Pair{
		{From: "BTC", To: "EUR"},
		{From: "BTC", To: "USD"},
		{From: "EOS", To: "USD"},
		{From: "LTC", To: "BTC"},
	}
	assert.Equal(t, want, s.Sorted())
	assert.Equal(t, want, s.Sorted())
}
