package exchange

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullTicker(t *testing.T) *PriceData {
	t.Helper()
	return &PriceData{
		FromCoin: "BTC",
		ToCoin:   "USD",
		Last:     decimal.RequireFromString("9000"),
		Bid:      NullDecFromString("8995.5"),
		Ask:      NullDecFromString("9004.5"),
		High:     NullDecFromString("9150"),
		Low:      NullDecFromString("8800"),
		Volume:   NullDecFromString("1250.75"),
	}
}

func TestPriceData_RateFieldLookup(t *testing.T) {
	p := fullTicker(t)

	last, ok := p.Rate("last")
	require.True(t, ok)
	assert.True(t, last.Equal(decimal.RequireFromString("9000")))

	// An empty field name means the last price.
	def, ok := p.Rate("")
	require.True(t, ok)
	assert.True(t, def.Equal(last))

	// Field names are case-insensitive.
	bid, ok := p.Rate("BID")
	require.True(t, ok)
	assert.True(t, bid.Equal(decimal.RequireFromString("8995.5")))

	_, ok = p.Rate("open")
	assert.False(t, ok)

	_, ok = p.Rate("nonsense")
	assert.False(t, ok)
}

func TestPriceData_InvertSwapsAndReciprocates(t *testing.T) {
	p := fullTicker(t)
	inv := p.Invert()

	assert.Equal(t, "USD", inv.FromCoin)
	assert.Equal(t, "BTC", inv.ToCoin)

	expected := decimal.NewFromInt(1).Div(decimal.RequireFromString("9000"))
	assert.True(t, inv.Last.Equal(expected), "got %s want %s", inv.Last, expected)

	// Absent fields stay absent.
	assert.False(t, inv.Open.Valid)
	assert.False(t, inv.Close.Valid)

	// The original is left untouched.
	assert.Equal(t, "BTC", p.FromCoin)
	assert.True(t, p.Last.Equal(decimal.RequireFromString("9000")))
}

func TestPriceData_InvertLeavesZeroAlone(t *testing.T) {
	p := &PriceData{
		FromCoin: "BTC",
		ToCoin:   "USD",
		Last:     decimal.RequireFromString("9000"),
		Volume:   NullDec(decimal.Zero),
	}
	inv := p.Invert()

	require.True(t, inv.Volume.Valid)
	assert.True(t, inv.Volume.Decimal.IsZero())
}

func TestPriceData_InversionInvolution(t *testing.T) {
	p := fullTicker(t)
	back := p.Invert().Invert()

	assert.Equal(t, p.FromCoin, back.FromCoin)
	assert.Equal(t, p.ToCoin, back.ToCoin)

	tolerance := decimal.New(1, -10)
	fields := map[string][2]decimal.Decimal{
		"last":   {p.Last, back.Last},
		"bid":    {p.Bid.Decimal, back.Bid.Decimal},
		"ask":    {p.Ask.Decimal, back.Ask.Decimal},
		"volume": {p.Volume.Decimal, back.Volume.Decimal},
	}
	for name, pair := range fields {
		diff := pair[0].Sub(pair[1]).Abs()
		assert.True(t, diff.LessThan(tolerance), "%s drifted by %s", name, diff)
	}
}

func TestPriceData_PairUppercased(t *testing.T) {
	p := &PriceData{FromCoin: "BTC", ToCoin: "USD"}
	assert.Equal(t, Pair{From: "BTC", To: "USD"}, p.Pair())
	assert.Equal(t, "BTC_USD", p.Pair().Key())
}

func TestPriceData_JSONNullsAbsentFields(t *testing.T) {
	p := &PriceData{
		FromCoin: "BTC",
		ToCoin:   "USD",
		Last:     decimal.RequireFromString("9000"),
		Bid:      NullDecFromString("8995.5"),
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "last")
	assert.Contains(t, decoded, "bid")
	assert.Equal(t, nil, decoded["ask"])

	var back PriceData
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Last.Equal(p.Last))
	require.True(t, back.Bid.Valid)
	assert.True(t, back.Bid.Decimal.Equal(p.Bid.Decimal))
	assert.False(t, back.Ask.Valid)
}
