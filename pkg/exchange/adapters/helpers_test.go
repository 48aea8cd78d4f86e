package adapters

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Privex/go-exchange/pkg/exchange"
)

func fullPriceData(from, to, last string) *exchange.PriceData {
	return &exchange.PriceData{
		FromCoin: from,
		ToCoin:   to,
		Last:     decimal.RequireFromString(last),
	}
}

func decRequire(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
