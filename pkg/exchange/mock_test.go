package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// mockAdapter implements Adapter for testing, serving canned tickers from
// memory and counting upstream calls.
type mockAdapter struct {
	name string
	code string

	mu            sync.Mutex
	pairs         PairSet
	tickers       map[string]*PriceData
	pairErrs      map[string]error
	pairCalls     map[string]int
	providesErr   error
	providesCalls int
}

func newMockAdapter(name, code string) *mockAdapter {
	return &mockAdapter{
		name:      name,
		code:      code,
		pairs:     NewPairSet(),
		tickers:   make(map[string]*PriceData),
		pairErrs:  make(map[string]error),
		pairCalls: make(map[string]int),
	}
}

// quote registers a pair with a last price.
func (m *mockAdapter) quote(from, to, last string) *mockAdapter {
	return m.quoteTicker(&PriceData{
		FromCoin: strings.ToUpper(from),
		ToCoin:   strings.ToUpper(to),
		Last:     decimal.RequireFromString(last),
	})
}

// quoteTicker registers a pair with a full canned ticker.
func (m *mockAdapter) quoteTicker(data *PriceData) *mockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := data.Pair()
	m.pairs.Add(p.From, p.To)
	m.tickers[p.Key()] = data
	return m
}

// failPair registers a pair whose fetch always fails with err.
func (m *mockAdapter) failPair(from, to string, err error) *mockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pairs.Add(from, to)
	m.pairErrs[PairKey(from, to)] = err
	return m
}

// failProvides makes the capability listing fail with err until cleared.
func (m *mockAdapter) failProvides(err error) *mockAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providesErr = err
	return m
}

// calls returns how often GetPair was invoked for the pair.
func (m *mockAdapter) calls(from, to string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairCalls[PairKey(from, to)]
}

func (m *mockAdapter) Name() string { return m.name }
func (m *mockAdapter) Code() string { return m.code }

func (m *mockAdapter) Provides(_ context.Context) (PairSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providesCalls++
	if m.providesErr != nil {
		return nil, m.providesErr
	}
	out := NewPairSet()
	out.Merge(m.pairs)
	return out, nil
}

func (m *mockAdapter) HasPair(_ context.Context, fromCoin, toCoin string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairs.Has(fromCoin, toCoin), nil
}

func (m *mockAdapter) GetPair(_ context.Context, fromCoin, toCoin string) (*PriceData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := PairKey(fromCoin, toCoin)
	m.pairCalls[key]++
	if err, ok := m.pairErrs[key]; ok {
		return nil, err
	}
	data, ok := m.tickers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s does not list %s", ErrPairNotFound, m.code, key)
	}
	out := *data
	return &out, nil
}
