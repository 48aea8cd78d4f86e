package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/Privex/go-exchange/pkg/exchange/average"
	"github.com/Privex/go-exchange/pkg/exchange/cache"
	"github.com/Privex/go-exchange/pkg/logging"
	"github.com/Privex/go-exchange/pkg/metrics"
)

// DefaultHubCoins are the currencies whose pairwise rates are precomputed
// into the proxy snapshot.
var DefaultHubCoins = []string{"BTC", "USD", "USDT", "HIVE", "STEEM"}

const (
	// DefaultSnapshotTTL is how long a computed hub snapshot stays cached.
	DefaultSnapshotTTL = 5 * time.Minute
	// DefaultFanoutLimit caps concurrent upstream fetches across all
	// aggregation calls sharing one manager.
	DefaultFanoutLimit = 16
)

// ManagerConfig tunes pair resolution and aggregation.
type ManagerConfig struct {
	HubCoins    []string
	SnapshotTTL time.Duration
	FanoutLimit int64
}

// RateOptions adjusts a single-pair GetRate call. The zero value asks for
// the "last" price with proxy routing allowed.
type RateOptions struct {
	// Field selects the ticker field, defaulting to "last".
	Field string
	// NoProxy forbids composing the rate through a hub currency.
	NoProxy bool
}

// AvgOptions adjusts a GetAvg call. The zero value asks for the "last"
// price rounded to 8 decimal places, with proxy routing allowed.
type AvgOptions struct {
	Field string
	// Places is the output precision in decimal places. Zero or negative
	// means the default of 8.
	Places  int32
	NoProxy bool
}

// Manager resolves exchange rates over a registry of adapters: single best
// quotes via GetRate, multi-exchange aggregates via GetAvg, and the hub
// snapshot feeding the proxy fast path.
type Manager struct {
	reg    *Registry
	router *Router
	cache  cache.Cache
	log    *logging.Logger

	hubCoins    []string
	snapshotTTL time.Duration
	fanout      *semaphore.Weighted
	sf          singleflight.Group
}

// NewManager wires a manager over the given registry and router. A nil cache
// falls back to a process-local memory cache, a nil logger to a noop logger.
func NewManager(cfg ManagerConfig, reg *Registry, router *Router, c cache.Cache, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	if c == nil {
		c = cache.NewMemory()
	}
	hubs := cfg.HubCoins
	if len(hubs) == 0 {
		hubs = DefaultHubCoins
	}
	upper := make([]string, len(hubs))
	for i, h := range hubs {
		upper[i] = strings.ToUpper(h)
	}
	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	limit := cfg.FanoutLimit
	if limit <= 0 {
		limit = DefaultFanoutLimit
	}
	return &Manager{
		reg:         reg,
		router:      router,
		cache:       c,
		log:         log.WithComponent("manager"),
		hubCoins:    upper,
		snapshotTTL: ttl,
		fanout:      semaphore.NewWeighted(limit),
	}
}

// HubCoins returns the snapshot hub currencies in order.
func (m *Manager) HubCoins() []string {
	out := make([]string, len(m.hubCoins))
	copy(out, m.hubCoins)
	return out
}

func (m *Manager) isHub(symbol string) bool {
	for _, h := range m.hubCoins {
		if h == symbol {
			return true
		}
	}
	return false
}

// Ticker returns the full ticker for a pair from the highest priority
// adapter that lists it, inverting the reverse pair when only that direction
// is indexed.
func (m *Manager) Ticker(ctx context.Context, fromCoin, toCoin string) (*PriceData, error) {
	if found := m.reg.PairAdapters(fromCoin, toCoin); len(found) > 0 {
		return found[0].GetPair(ctx, fromCoin, toCoin)
	}

	if found := m.reg.PairAdapters(toCoin, fromCoin); len(found) > 0 {
		m.log.Debug("pair not indexed, querying inverse",
			"pair", PairKey(fromCoin, toCoin))
		data, err := found[0].GetPair(ctx, toCoin, fromCoin)
		if err != nil {
			return nil, err
		}
		return data.Invert(), nil
	}

	return nil, fmt.Errorf("%w: %s (direct or inverse)", ErrPairNotFound, PairKey(fromCoin, toCoin))
}

// GetRate resolves a single exchange rate for the pair: the direct or
// inverted ticker of the best adapter, or, when the pair is not indexed at
// all and opts allow it, a two-leg composition through the first viable hub.
// Adapter failures on a resolved route propagate unchanged.
func (m *Manager) GetRate(ctx context.Context, fromCoin, toCoin string, opts RateOptions) (decimal.Decimal, error) {
	field := strings.ToLower(opts.Field)
	if field == "" {
		field = FieldLast
	}
	if !ValidField(field) {
		return decimal.Decimal{}, fmt.Errorf("%w: unknown ticker field %q", ErrFieldUnavailable, field)
	}

	data, err := m.Ticker(ctx, fromCoin, toCoin)
	if err == nil {
		rate, ok := data.Rate(field)
		if !ok {
			metrics.RecordRateRequest("direct", "error")
			return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
				ErrFieldUnavailable, PairKey(fromCoin, toCoin), field)
		}
		metrics.RecordRateRequest("direct", "ok")
		return rate, nil
	}
	if !errors.Is(err, ErrPairNotFound) {
		metrics.RecordRateRequest("direct", "error")
		return decimal.Decimal{}, err
	}
	if opts.NoProxy {
		metrics.RecordRateRequest("direct", "error")
		return decimal.Decimal{}, fmt.Errorf("%w: %s not indexed and no proxying requested",
			ErrPairNotFound, PairKey(fromCoin, toCoin))
	}

	m.log.Debug("pair not indexed, looking for a proxy route", "pair", PairKey(fromCoin, toCoin))
	hub, err := m.router.FindProxy(fromCoin, toCoin)
	if err != nil {
		metrics.RecordRateRequest("proxy", "error")
		return decimal.Decimal{}, fmt.Errorf("%w: %s not found, nor a viable proxy route",
			ErrPairNotFound, PairKey(fromCoin, toCoin))
	}

	rate, err := m.TryProxy(ctx, fromCoin, toCoin, hub, field)
	if err != nil {
		metrics.RecordRateRequest("proxy", "error")
		if errors.Is(err, ErrProxyMissingPair) {
			return decimal.Decimal{}, fmt.Errorf("%w: %s not found, nor a viable proxy route",
				ErrPairNotFound, PairKey(fromCoin, toCoin))
		}
		return decimal.Decimal{}, err
	}
	metrics.RecordRateRequest("proxy", "ok")
	return rate, nil
}

// TryProxy composes fromCoin->toCoin as fromCoin->hub times hub->toCoin
// using the best adapter for each leg. When only toCoin->hub is indexed, the
// second leg is fetched in that direction and inverted. The product is not
// rounded.
func (m *Manager) TryProxy(ctx context.Context, fromCoin, toCoin, hub, field string) (decimal.Decimal, error) {
	from, to, hub := strings.ToUpper(fromCoin), strings.ToUpper(toCoin), strings.ToUpper(hub)
	if field == "" {
		field = FieldLast
	}
	m.log.Info("composing rate through hub", "pair", PairKey(from, to), "hub", hub, "field", field)

	if !m.reg.PairExists(from, hub) {
		return decimal.Decimal{}, fmt.Errorf("%w: no pairs available for %s -> %s",
			ErrProxyMissingPair, from, hub)
	}
	invTo := false
	if !m.reg.PairExists(hub, to) {
		if !m.reg.PairExists(to, hub) {
			return decimal.Decimal{}, fmt.Errorf("%w: no pairs available for %s -> %s",
				ErrProxyMissingPair, hub, to)
		}
		invTo = true
	}

	legFrom, err := m.Ticker(ctx, from, hub)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var legTo *PriceData
	if invTo {
		legTo, err = m.Ticker(ctx, to, hub)
		if err != nil {
			return decimal.Decimal{}, err
		}
		legTo = legTo.Invert()
	} else {
		legTo, err = m.Ticker(ctx, hub, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}

	rFrom, ok := legFrom.Rate(field)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
			ErrFieldUnavailable, PairKey(from, hub), field)
	}
	rTo, ok := legTo.Rate(field)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
			ErrFieldUnavailable, PairKey(hub, to), field)
	}

	metrics.RecordProxyRoute(hub)
	return rFrom.Mul(rTo), nil
}

// tryProxyFor is TryProxy with both legs restricted to a single adapter.
func (m *Manager) tryProxyFor(ctx context.Context, adp Adapter, fromCoin, toCoin, hub, field string) (decimal.Decimal, error) {
	from, to, hub := strings.ToUpper(fromCoin), strings.ToUpper(toCoin), strings.ToUpper(hub)

	fromHub, err := adp.HasPair(ctx, from, hub)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !fromHub {
		return decimal.Decimal{}, fmt.Errorf("%w: %s has no pair %s -> %s",
			ErrProxyMissingPair, adp.Code(), from, hub)
	}

	invTo := false
	hubTo, err := adp.HasPair(ctx, hub, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !hubTo {
		toHub, err := adp.HasPair(ctx, to, hub)
		if err != nil {
			return decimal.Decimal{}, err
		}
		if !toHub {
			return decimal.Decimal{}, fmt.Errorf("%w: %s has no pair %s -> %s",
				ErrProxyMissingPair, adp.Code(), hub, to)
		}
		invTo = true
	}

	legFrom, err := adp.GetPair(ctx, from, hub)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var legTo *PriceData
	if invTo {
		legTo, err = adp.GetPair(ctx, to, hub)
		if err != nil {
			return decimal.Decimal{}, err
		}
		legTo = legTo.Invert()
	} else {
		legTo, err = adp.GetPair(ctx, hub, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
	}

	rFrom, ok := legFrom.Rate(field)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
			ErrFieldUnavailable, PairKey(from, hub), field)
	}
	rTo, ok := legTo.Rate(field)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
			ErrFieldUnavailable, PairKey(hub, to), field)
	}
	return rFrom.Mul(rTo), nil
}

// AllRates concurrently collects the pair's rate from every registered
// adapter: directly, inverted, or composed through a hub available on that
// adapter alone. Adapters that fail or quote zero are logged and excluded,
// so an empty map means no usable quotes rather than an error.
func (m *Manager) AllRates(ctx context.Context, fromCoin, toCoin, field string) map[string]decimal.Decimal {
	if field == "" {
		field = FieldLast
	}
	from, to := strings.ToUpper(fromCoin), strings.ToUpper(toCoin)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]decimal.Decimal)
	)
	for _, adp := range m.reg.Adapters() {
		wg.Add(1)
		go func(adp Adapter) {
			defer wg.Done()
			if err := m.fanout.Acquire(ctx, 1); err != nil {
				return
			}
			defer m.fanout.Release(1)

			rate, err := m.adapterRate(ctx, adp, from, to, field)
			if err != nil {
				m.log.Warn("excluding exchange from aggregate",
					"exchange", adp.Name(), "pair", PairKey(from, to), "error", err)
				return
			}
			if rate.IsZero() {
				return
			}
			mu.Lock()
			out[adp.Code()] = rate
			mu.Unlock()
		}(adp)
	}
	wg.Wait()
	return out
}

// adapterRate resolves one adapter's quote for a pair, trying the direct
// listing, then the inverse, then a hub composition on the same adapter.
func (m *Manager) adapterRate(ctx context.Context, adp Adapter, from, to, field string) (decimal.Decimal, error) {
	has, err := adp.HasPair(ctx, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if has {
		data, err := adp.GetPair(ctx, from, to)
		if err != nil {
			return decimal.Decimal{}, err
		}
		rate, ok := data.Rate(field)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
				ErrFieldUnavailable, PairKey(from, to), field)
		}
		return rate, nil
	}

	hasInv, err := adp.HasPair(ctx, to, from)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if hasInv {
		data, err := adp.GetPair(ctx, to, from)
		if err != nil {
			return decimal.Decimal{}, err
		}
		rate, ok := data.Invert().Rate(field)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("%w: %s ticker has no %q",
				ErrFieldUnavailable, PairKey(from, to), field)
		}
		return rate, nil
	}

	hub, err := m.router.FindProxyFor(ctx, adp, from, to)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return m.tryProxyFor(ctx, adp, from, to, hub, field)
}

// DirectRateAvg returns the outlier-trimmed average of every adapter's
// quote for the pair, preferring the hub snapshot when both symbols are hub
// currencies and the last price was asked. The second return is false when
// no adapter quotes the pair.
func (m *Manager) DirectRateAvg(ctx context.Context, fromCoin, toCoin, field string, invert bool) (decimal.Decimal, bool) {
	if field == "" {
		field = FieldLast
	}
	from, to := strings.ToUpper(fromCoin), strings.ToUpper(toCoin)

	// The snapshot holds last prices only, so any other field has to go
	// through a live aggregation.
	if field == FieldLast && m.isHub(from) && m.isHub(to) {
		if r, ok := m.ProxyRates(ctx)[PairKey(from, to)]; ok && !r.IsZero() {
			if invert {
				return one.Div(r), true
			}
			return r, true
		}
	}

	rates := m.AllRates(ctx, from, to, field)
	if len(rates) == 0 {
		return decimal.Decimal{}, false
	}
	avg, err := average.TrimmedMean(rateValues(rates), average.DefaultOutlierPct, average.DefaultPlaces)
	if err != nil {
		m.log.Warn("could not average quotes", "pair", PairKey(from, to), "error", err)
		return decimal.Decimal{}, false
	}
	if avg.IsZero() {
		return decimal.Decimal{}, false
	}
	if invert {
		return one.Div(avg), true
	}
	return avg, true
}

// ProxyRates returns the directed hub-to-hub rate snapshot, recomputing and
// caching it when expired. Concurrent callers share one recomputation.
func (m *Manager) ProxyRates(ctx context.Context) map[string]decimal.Decimal {
	snap, err := cache.GetJSON[map[string]decimal.Decimal](ctx, m.cache, cache.KeyProxyRates)
	if err == nil {
		return snap
	}
	if !errors.Is(err, cache.ErrMiss) {
		m.log.Warn("proxy snapshot cache read failed", "error", err)
	}

	v, _, _ := m.sf.Do(cache.KeyProxyRates, func() (interface{}, error) {
		// A sibling caller may have refreshed the snapshot while this one
		// waited on the flight.
		if snap, err := cache.GetJSON[map[string]decimal.Decimal](ctx, m.cache, cache.KeyProxyRates); err == nil {
			return snap, nil
		}

		snap := m.computeProxyRates(ctx)
		if len(snap) == 0 {
			m.log.Warn("hub snapshot came back empty, not caching it")
			return snap, nil
		}
		if err := cache.SetJSON(ctx, m.cache, cache.KeyProxyRates, snap, m.snapshotTTL); err != nil {
			m.log.Warn("could not cache hub snapshot", "error", err)
		}
		return snap, nil
	})
	return v.(map[string]decimal.Decimal)
}

// computeProxyRates aggregates every directed pair of hub currencies
// concurrently. Pairs no exchange quotes are simply absent from the result.
func (m *Manager) computeProxyRates(ctx context.Context) map[string]decimal.Decimal {
	start := time.Now()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]decimal.Decimal)
	)
	for _, from := range m.hubCoins {
		for _, to := range m.hubCoins {
			if from == to {
				continue
			}
			wg.Add(1)
			go func(from, to string) {
				defer wg.Done()
				rates := m.AllRates(ctx, from, to, FieldLast)
				if len(rates) == 0 {
					return
				}
				avg, err := average.TrimmedMean(rateValues(rates), average.DefaultOutlierPct, average.DefaultPlaces)
				if err != nil || avg.IsZero() {
					return
				}
				mu.Lock()
				out[PairKey(from, to)] = avg
				mu.Unlock()
			}(from, to)
		}
	}
	wg.Wait()

	metrics.RecordSnapshotRefresh(time.Since(start), len(out))
	m.log.Info("hub snapshot refreshed", "pairs", len(out), "took", time.Since(start).String())
	return out
}

// ProxyAvg returns the snapshot rate between two hub currencies, taking the
// reciprocal when only the reverse direction was computed.
func (m *Manager) ProxyAvg(ctx context.Context, fromCoin, toCoin string) (decimal.Decimal, error) {
	from, to := strings.ToUpper(fromCoin), strings.ToUpper(toCoin)
	snap := m.ProxyRates(ctx)

	if r, ok := snap[PairKey(from, to)]; ok && !r.IsZero() {
		return r, nil
	}
	if r, ok := snap[PairKey(to, from)]; ok && !r.IsZero() {
		return one.Div(r), nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: no snapshot rate for %s", ErrProxyMissingPair, PairKey(from, to))
}

// GetAvg resolves the pair as a multi-exchange average: a hub-composed
// average and a direct (or inverted) average are attempted concurrently and
// every successful branch contributes to the final mean. Identical
// concurrent calls are coalesced.
func (m *Manager) GetAvg(ctx context.Context, fromCoin, toCoin string, opts AvgOptions) (decimal.Decimal, error) {
	field := strings.ToLower(opts.Field)
	if field == "" {
		field = FieldLast
	}
	if !ValidField(field) {
		return decimal.Decimal{}, fmt.Errorf("%w: unknown ticker field %q", ErrFieldUnavailable, field)
	}
	places := opts.Places
	if places <= 0 {
		places = average.DefaultPlaces
	}
	from, to := strings.ToUpper(fromCoin), strings.ToUpper(toCoin)

	key := fmt.Sprintf("avg:%s:%s:%d:%t", PairKey(from, to), field, places, opts.NoProxy)
	v, err, _ := m.sf.Do(key, func() (interface{}, error) {
		return m.computeAvg(ctx, from, to, field, places, opts.NoProxy)
	})
	if err != nil {
		metrics.RecordRateRequest("avg", "error")
		return decimal.Decimal{}, err
	}
	metrics.RecordRateRequest("avg", "ok")
	return v.(decimal.Decimal), nil
}

func (m *Manager) computeAvg(ctx context.Context, from, to, field string, places int32, noProxy bool) (decimal.Decimal, error) {
	var (
		wg                    sync.WaitGroup
		proxyRate, directRate decimal.Decimal
		proxyOK, directOK     bool
	)

	if !noProxy {
		wg.Add(1)
		go func() {
			defer wg.Done()
			proxyRate, proxyOK = m.hubComposedAvg(ctx, from, to, field)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if m.reg.PairExists(from, to) {
			directRate, directOK = m.DirectRateAvg(ctx, from, to, field, false)
		} else if m.reg.PairExists(to, from) {
			directRate, directOK = m.DirectRateAvg(ctx, to, from, field, true)
		}
	}()
	wg.Wait()

	vals := make([]decimal.Decimal, 0, 2)
	if proxyOK {
		vals = append(vals, proxyRate)
	}
	if directOK {
		vals = append(vals, directRate)
	}
	if len(vals) == 0 {
		if m.reg.PairExists(from, to) || m.reg.PairExists(to, from) {
			return decimal.Decimal{}, fmt.Errorf("%w: no usable quotes for %s",
				ErrPairNotFound, PairKey(from, to))
		}
		return decimal.Decimal{}, fmt.Errorf("%w: %s not found, nor a viable proxy route",
			ErrPairNotFound, PairKey(from, to))
	}
	return average.Mean(vals, places)
}

// hubComposedAvg walks the common proxy list and composes the pair through
// the first hub where both leg averages resolve. The product stays
// unrounded so only the final combining mean rounds.
func (m *Manager) hubComposedAvg(ctx context.Context, from, to, field string) (decimal.Decimal, bool) {
	for _, hub := range m.router.ProxyCoins() {
		if hub == from || hub == to {
			continue
		}
		legFrom, ok := m.DirectRateAvg(ctx, from, hub, field, false)
		if !ok {
			continue
		}
		legTo, ok := m.DirectRateAvg(ctx, hub, to, field, false)
		if !ok {
			continue
		}
		metrics.RecordProxyRoute(hub)
		return legFrom.Mul(legTo), true
	}
	return decimal.Decimal{}, false
}

func rateValues(rates map[string]decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, 0, len(rates))
	for _, r := range rates {
		out = append(out, r)
	}
	return out
}
