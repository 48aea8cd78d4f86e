package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Privex/go-exchange/pkg/logging"
)

// RegistryConfig controls how the adapter registry indexes pairs.
type RegistryConfig struct {
	// DisableTetherAliases turns off the indexing of USD-pegged tokens
	// under their real fiat symbol.
	DisableTetherAliases bool
	// TetherAliases overrides DefaultTetherAliases when non-nil.
	TetherAliases map[string]string
}

// Registry holds the registered exchange adapters and an index mapping each
// known pair to the adapters that can serve it, in registration order.
// Earlier registration means higher priority when several exchanges list the
// same pair.
type Registry struct {
	log           *logging.Logger
	tetherAliases map[string]string

	mu       sync.RWMutex
	adapters []Adapter
	byCode   map[string]Adapter
	byName   map[string]Adapter
	pairMap  map[Pair][]Adapter
}

// NewRegistry returns an empty registry. Passing a nil logger is allowed.
func NewRegistry(cfg RegistryConfig, log *logging.Logger) *Registry {
	if log == nil {
		log = logging.NewNoopLogger()
	}
	aliases := cfg.TetherAliases
	if aliases == nil && !cfg.DisableTetherAliases {
		aliases = DefaultTetherAliases
	}
	if cfg.DisableTetherAliases {
		aliases = nil
	}
	return &Registry{
		log:           log.WithComponent("registry"),
		tetherAliases: aliases,
		byCode:        make(map[string]Adapter),
		byName:        make(map[string]Adapter),
		pairMap:       make(map[Pair][]Adapter),
	}
}

// Load fetches the supported pairs of every adapter concurrently, then
// registers the adapters in the order given. Adapters whose pair list cannot
// be fetched are still registered, with no pairs indexed, so a later
// ReloadOne can pick them up once the exchange recovers. The returned error
// joins all individual fetch failures.
func (r *Registry) Load(ctx context.Context, adapters ...Adapter) error {
	pairSets := make([]PairSet, len(adapters))
	errs := make([]error, len(adapters))

	var wg sync.WaitGroup
	for i, adp := range adapters {
		wg.Add(1)
		go func(i int, adp Adapter) {
			defer wg.Done()
			pairs, err := adp.Provides(ctx)
			if err != nil {
				errs[i] = fmt.Errorf("load %s: %w", adp.Code(), err)
				return
			}
			pairSets[i] = pairs
		}(i, adp)
	}
	wg.Wait()

	// Registration order determines pair priority, so this part stays
	// sequential even though the fetches ran concurrently.
	for i, adp := range adapters {
		if errs[i] != nil {
			r.log.Warn("could not fetch pair list", "exchange", adp.Code(), "error", errs[i])
		}
		r.register(adp, pairSets[i])
	}
	return errors.Join(errs...)
}

// Register fetches one adapter's supported pairs and adds it to the registry.
// Registering an already-known adapter refreshes its pair index instead.
func (r *Registry) Register(ctx context.Context, adp Adapter) error {
	pairs, err := adp.Provides(ctx)
	if err != nil {
		r.register(adp, nil)
		return fmt.Errorf("load %s: %w", adp.Code(), err)
	}
	r.register(adp, pairs)
	return nil
}

func (r *Registry) register(adp Adapter, pairs PairSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, known := r.byCode[adp.Code()]; !known {
		r.adapters = append(r.adapters, adp)
		r.byCode[adp.Code()] = adp
		r.byName[adp.Name()] = adp
	}
	r.indexPairs(adp, pairs)
}

// indexPairs adds pairs (and their tether-alias forms) to the pair index.
// The index is append-only: pairs never disappear on reload, and an adapter
// is never listed twice for the same pair. Callers must hold r.mu.
func (r *Registry) indexPairs(adp Adapter, pairs PairSet) {
	for p := range pairs {
		r.addPair(p, adp)
		for _, aliased := range AliasedPairs(p, r.tetherAliases) {
			r.addPair(aliased, adp)
		}
	}
}

func (r *Registry) addPair(p Pair, adp Adapter) {
	for _, existing := range r.pairMap[p] {
		if existing.Code() == adp.Code() {
			return
		}
	}
	r.pairMap[p] = append(r.pairMap[p], adp)
}

// ReloadOne re-fetches the pair list of a single registered adapter and
// indexes any newly listed pairs.
func (r *Registry) ReloadOne(ctx context.Context, code string) error {
	adp, err := r.AdapterByCode(code)
	if err != nil {
		return err
	}
	pairs, err := adp.Provides(ctx)
	if err != nil {
		return fmt.Errorf("reload %s: %w", code, err)
	}

	r.mu.Lock()
	r.indexPairs(adp, pairs)
	r.mu.Unlock()
	return nil
}

// ReloadAll re-fetches every adapter's pair list concurrently and indexes
// newly listed pairs. The returned error joins all individual failures.
func (r *Registry) ReloadAll(ctx context.Context) error {
	adapters := r.Adapters()

	errs := make([]error, len(adapters))
	var wg sync.WaitGroup
	for i, adp := range adapters {
		wg.Add(1)
		go func(i int, adp Adapter) {
			defer wg.Done()
			errs[i] = r.ReloadOne(ctx, adp.Code())
		}(i, adp)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// PairExists reports whether at least one adapter is indexed for the pair.
func (r *Registry) PairExists(fromCoin, toCoin string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pairMap[NewPair(fromCoin, toCoin)]) > 0
}

// PairAdapters returns the adapters indexed for the pair, highest priority
// first. The returned slice is a copy.
func (r *Registry) PairAdapters(fromCoin, toCoin string) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	found := r.pairMap[NewPair(fromCoin, toCoin)]
	if len(found) == 0 {
		return nil
	}
	out := make([]Adapter, len(found))
	copy(out, found)
	return out
}

// AdapterByCode returns the adapter registered under code.
func (r *Registry) AdapterByCode(code string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adp, ok := r.byCode[code]
	if !ok {
		return nil, fmt.Errorf("%w: code %q", ErrUnknownAdapter, code)
	}
	return adp, nil
}

// AdapterByName returns the adapter registered under the human-readable name.
func (r *Registry) AdapterByName(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adp, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: name %q", ErrUnknownAdapter, name)
	}
	return adp, nil
}

// AdapterStats describes one registered adapter for listings.
type AdapterStats struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Pairs int    `json:"pairs"`
}

// Stats returns every registered adapter with the number of index entries it
// serves, in registration order. Tether-aliased entries count separately.
func (r *Registry) Stats() []AdapterStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int, len(r.adapters))
	for _, serving := range r.pairMap {
		for _, adp := range serving {
			counts[adp.Code()]++
		}
	}
	out := make([]AdapterStats, len(r.adapters))
	for i, adp := range r.adapters {
		out[i] = AdapterStats{Code: adp.Code(), Name: adp.Name(), Pairs: counts[adp.Code()]}
	}
	return out
}

// Adapters returns all registered adapters in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, len(r.adapters))
	copy(out, r.adapters)
	return out
}

// Pairs returns every indexed pair in lexical order.
func (r *Registry) Pairs() []Pair {
	return r.filterPairs(func(Pair) bool { return true })
}

// ListPairsFrom returns all indexed pairs whose base is fromCoin.
func (r *Registry) ListPairsFrom(fromCoin string) []Pair {
	from := strings.ToUpper(fromCoin)
	return r.filterPairs(func(p Pair) bool { return p.From == from })
}

// ListPairsTo returns all indexed pairs whose quote is toCoin.
func (r *Registry) ListPairsTo(toCoin string) []Pair {
	to := strings.ToUpper(toCoin)
	return r.filterPairs(func(p Pair) bool { return p.To == to })
}

func (r *Registry) filterPairs(keep func(Pair) bool) []Pair {
	r.mu.RLock()
	set := NewPairSet()
	for p := range r.pairMap {
		if keep(p) {
			set.Add(p.From, p.To)
		}
	}
	r.mu.RUnlock()
	return set.Sorted()
}
