package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// PriceData is a normalized ticker snapshot returned by exchange adapters.
// Last is always populated; every other numeric field is optional and stays
// absent (not zero) when the venue does not report it.
type PriceData struct {
	FromCoin string          `json:"from_coin"`
	ToCoin   string          `json:"to_coin"`
	Last     decimal.Decimal `json:"last"`

	Bid decimal.NullDecimal `json:"bid"`
	Ask decimal.NullDecimal `json:"ask"`

	Open  decimal.NullDecimal `json:"open"`
	Close decimal.NullDecimal `json:"close"`

	High decimal.NullDecimal `json:"high"`
	Low  decimal.NullDecimal `json:"low"`

	Volume decimal.NullDecimal `json:"volume"`
}

// Pair returns the pair this ticker quotes.
func (p *PriceData) Pair() Pair {
	return NewPair(p.FromCoin, p.ToCoin)
}

// Rate returns the named ticker field. ok is false when the field name is
// unknown or the field is absent on this ticker.
func (p *PriceData) Rate(field string) (decimal.Decimal, bool) {
	switch strings.ToLower(field) {
	case FieldLast, "":
		return p.Last, true
	case FieldBid:
		return p.Bid.Decimal, p.Bid.Valid
	case FieldAsk:
		return p.Ask.Decimal, p.Ask.Valid
	case FieldOpen:
		return p.Open.Decimal, p.Open.Valid
	case FieldClose:
		return p.Close.Decimal, p.Close.Valid
	case FieldHigh:
		return p.High.Decimal, p.High.Valid
	case FieldLow:
		return p.Low.Decimal, p.Low.Valid
	case FieldVolume:
		return p.Volume.Decimal, p.Volume.Valid
	}
	return decimal.Decimal{}, false
}

// Invert returns a copy quoted in the opposite direction: from/to swapped and
// every present, non-zero numeric field replaced by its reciprocal. Absent
// and zero fields are left untouched. The reciprocal is applied uniformly,
// including open/close/high/low, so an inverted high is the reciprocal of the
// original high rather than the low of the inverted pair.
func (p *PriceData) Invert() *PriceData {
	inv := *p
	inv.FromCoin, inv.ToCoin = p.ToCoin, p.FromCoin

	if !p.Last.IsZero() {
		inv.Last = one.Div(p.Last)
	}
	inv.Bid = invertNull(p.Bid)
	inv.Ask = invertNull(p.Ask)
	inv.Open = invertNull(p.Open)
	inv.Close = invertNull(p.Close)
	inv.High = invertNull(p.High)
	inv.Low = invertNull(p.Low)
	inv.Volume = invertNull(p.Volume)

	return &inv
}

func invertNull(d decimal.NullDecimal) decimal.NullDecimal {
	if !d.Valid || d.Decimal.IsZero() {
		return d
	}
	return decimal.NullDecimal{Decimal: one.Div(d.Decimal), Valid: true}
}

// NullDec wraps a decimal as a present NullDecimal, for adapter construction.
func NullDec(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// NullDecFromString parses s into a present NullDecimal; empty or unparsable
// input yields an absent value.
func NullDecFromString(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
