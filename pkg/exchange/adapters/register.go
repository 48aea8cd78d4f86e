package adapters

import (
	"fmt"
	"strings"

	"github.com/Privex/go-exchange/pkg/exchange"
)

// Factory builds an adapter from shared options.
type Factory func(Options) exchange.Adapter

// factories is the closed set of known venue adapters.
var factories = map[string]Factory{
	"binance":     func(o Options) exchange.Adapter { return NewBinance(o) },
	"bittrex":     func(o Options) exchange.Adapter { return NewBittrex(o) },
	"kraken":      func(o Options) exchange.Adapter { return NewKraken(o) },
	"coingecko":   func(o Options) exchange.Adapter { return NewCoinGecko(o) },
	"huobi":       func(o Options) exchange.Adapter { return NewHuobi(o) },
	"frankfurter": func(o Options) exchange.Adapter { return NewFrankfurter(o) },
}

// DefaultOrder lists every adapter code in default priority order.
// Registration order doubles as pair priority in the registry, so the order
// here decides which venue answers first for a contested pair.
var DefaultOrder = []string{
	"binance", "bittrex", "kraken", "coingecko", "huobi", "frankfurter",
}

// Codes returns the registered adapter codes in default priority order.
func Codes() []string {
	out := make([]string, len(DefaultOrder))
	copy(out, DefaultOrder)
	return out
}

// ByCode builds the adapter registered under code.
func ByCode(code string, opts Options) (exchange.Adapter, error) {
	factory, ok := factories[strings.ToLower(code)]
	if !ok {
		return nil, fmt.Errorf("%w: code %q", exchange.ErrUnknownAdapter, code)
	}
	return factory(opts), nil
}

// DefaultAdapters builds the full adapter set in default priority order.
func DefaultAdapters(opts Options) []exchange.Adapter {
	out := make([]exchange.Adapter, 0, len(DefaultOrder))
	for _, code := range DefaultOrder {
		out = append(out, factories[code](opts))
	}
	return out
}
