// Package adapters contains the venue clients that feed the exchange engine:
// one adapter per supported exchange, each translating the venue's HTTP API
// and symbol conventions into the capability contract the registry consumes.
package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Privex/go-exchange/pkg/exchange"
	"github.com/Privex/go-exchange/pkg/exchange/cache"
	"github.com/Privex/go-exchange/pkg/logging"
	"github.com/Privex/go-exchange/pkg/metrics"
	"github.com/Privex/go-exchange/pkg/version"
)

const (
	// DefaultHTTPTimeout bounds every upstream call.
	DefaultHTTPTimeout = 20 * time.Second

	// DefaultTickerTTL is how long a fetched ticker stays cached.
	DefaultTickerTTL = 120 * time.Second

	// DefaultProvidesTTL is how long a venue's pair listing stays cached.
	DefaultProvidesTTL = 300 * time.Second
)

// Options carries the shared collaborators and overrides handed to every
// adapter constructor. The zero value is usable: a process-local memory
// cache, a no-op logger and the venue's public endpoints.
type Options struct {
	// Cache memoizes tickers and capability listings. Defaults to a
	// process-local memory cache owned by the adapter.
	Cache cache.Cache

	// Logger receives fetch warnings. Defaults to a no-op logger.
	Logger *logging.Logger

	// HTTPClient overrides the default 20s-timeout client.
	HTTPClient *http.Client

	// BaseURL replaces the venue's endpoint root, mainly for tests.
	BaseURL string

	// ExtraPairs are appended to the venue-derived capability set, for
	// markets the listing endpoint omits.
	ExtraPairs []exchange.Pair

	// SkipProvidesCheck disables the capability precheck in GetPair, so a
	// fetch is attempted even for unlisted pairs.
	SkipProvidesCheck bool

	// TickerTTL and ProvidesTTL override the cache lifetimes.
	TickerTTL   time.Duration
	ProvidesTTL time.Duration
}

// baseAdapter bundles the plumbing shared by every venue adapter: the HTTP
// fetch with error taxonomy mapping, ticker and capability caching, and the
// USD stablecoin equivalence check.
type baseAdapter struct {
	name    string
	code    string
	baseURL string

	cache  cache.Cache
	log    *logging.Logger
	client *http.Client

	extraPairs        []exchange.Pair
	usdAliases        []string
	skipProvidesCheck bool

	tickerTTL   time.Duration
	providesTTL time.Duration
}

func newBase(name, code, defaultURL string, usdAliases []string, opts Options) *baseAdapter {
	b := &baseAdapter{
		name:              name,
		code:              code,
		baseURL:           defaultURL,
		cache:             opts.Cache,
		log:               opts.Logger,
		client:            opts.HTTPClient,
		extraPairs:        opts.ExtraPairs,
		usdAliases:        usdAliases,
		skipProvidesCheck: opts.SkipProvidesCheck,
		tickerTTL:         opts.TickerTTL,
		providesTTL:       opts.ProvidesTTL,
	}
	if opts.BaseURL != "" {
		b.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if b.cache == nil {
		b.cache = cache.NewMemory()
	}
	if b.log == nil {
		b.log = logging.NewNoopLogger()
	}
	b.log = b.log.WithComponent(code)
	if b.client == nil {
		b.client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if b.tickerTTL <= 0 {
		b.tickerTTL = DefaultTickerTTL
	}
	if b.providesTTL <= 0 {
		b.providesTTL = DefaultProvidesTTL
	}
	return b
}

// Name returns the human-readable exchange name.
func (b *baseAdapter) Name() string { return b.name }

// Code returns the stable short identifier.
func (b *baseAdapter) Code() string { return b.code }

// fetchJSON performs a GET against url and decodes the JSON body into out.
// Failures map onto the adapter error taxonomy: HTTP 429 becomes
// ErrExchangeRateLimited, everything else ErrExchangeDown.
func (b *baseAdapter) fetchJSON(ctx context.Context, url string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: building request for %s: %v", exchange.ErrExchangeDown, url, err)
	}
	req.Header.Set("User-Agent", version.AgentString())
	resp, err := b.client.Do(req)
	if err != nil {
		metrics.RecordUpstreamFetch(b.code, "error", time.Since(start))
		return fmt.Errorf("%w: querying %s: %v", exchange.ErrExchangeDown, b.name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordUpstreamFetch(b.code, "rate_limited", time.Since(start))
		return fmt.Errorf("%w: HTTP 429 from %s", exchange.ErrExchangeRateLimited, b.name)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.RecordUpstreamFetch(b.code, "error", time.Since(start))
		return fmt.Errorf("%w: %s returned HTTP %d: %s",
			exchange.ErrExchangeDown, b.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordUpstreamFetch(b.code, "error", time.Since(start))
		return fmt.Errorf("%w: decoding %s response: %v", exchange.ErrExchangeDown, b.name, err)
	}
	metrics.RecordUpstreamFetch(b.code, "ok", time.Since(start))
	return nil
}

// cachedProvides serves the capability set from cache, regenerating through
// gen on a miss. Only the venue-derived set is cached; configured extra
// pairs are merged in afterwards so they always apply process-locally.
func (b *baseAdapter) cachedProvides(ctx context.Context, gen func(context.Context) (exchange.PairSet, error)) (exchange.PairSet, error) {
	key := cache.KeyProvides(b.code)
	if pairs, err := cache.GetJSON[[]exchange.Pair](ctx, b.cache, key); err == nil {
		set := exchange.NewPairSet(pairs...)
		b.mergeExtras(set)
		return set, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		b.log.Warn("unreadable capability cache entry, regenerating", "key", key, "error", err)
	}

	set, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, b.cache, key, set.Sorted(), b.providesTTL); err != nil {
		b.log.Warn("failed caching capability listing", "key", key, "error", err)
	}
	b.mergeExtras(set)
	return set, nil
}

func (b *baseAdapter) mergeExtras(set exchange.PairSet) {
	for _, p := range b.extraPairs {
		set.Add(p.From, p.To)
	}
}

// cachedTicker serves the pair's ticker from cache, fetching through fetch
// on a miss and caching the result for the ticker TTL.
func (b *baseAdapter) cachedTicker(ctx context.Context, from, to string, fetch func(context.Context) (*exchange.PriceData, error)) (*exchange.PriceData, error) {
	key := cache.KeyPair(b.code, from, to)
	if pd, err := cache.GetJSON[exchange.PriceData](ctx, b.cache, key); err == nil {
		return &pd, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		b.log.Warn("unreadable ticker cache entry, refetching", "key", key, "error", err)
	}

	data, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, b.cache, key, data, b.tickerTTL); err != nil {
		b.log.Warn("failed caching ticker", "key", key, "error", err)
	}
	return data, nil
}

// getPair is the shared GetPair flow: optional capability precheck, then a
// cached fetch of the pair's ticker.
func (b *baseAdapter) getPair(ctx context.Context, fromCoin, toCoin string,
	hasPair func(context.Context, string, string) (bool, error),
	fetch func(context.Context, string, string) (*exchange.PriceData, error),
) (*exchange.PriceData, error) {
	from, to := strings.ToUpper(fromCoin), strings.ToUpper(toCoin)

	if !b.skipProvidesCheck {
		ok, err := hasPair(ctx, from, to)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, b.notSupported(from, to)
		}
	}

	return b.cachedTicker(ctx, from, to, func(ctx context.Context) (*exchange.PriceData, error) {
		return fetch(ctx, from, to)
	})
}

// hasPair implements the shared capability check: the pair is present
// directly, or via one of the venue's USD-equivalent stablecoins when one
// side of the request is USD.
func (b *baseAdapter) hasPair(ctx context.Context, provides func(context.Context) (exchange.PairSet, error), fromCoin, toCoin string) (bool, error) {
	prov, err := provides(ctx)
	if err != nil {
		return false, err
	}
	return b.hasAliased(prov, strings.ToUpper(fromCoin), strings.ToUpper(toCoin)), nil
}

func (b *baseAdapter) hasAliased(prov exchange.PairSet, from, to string) bool {
	if prov.Has(from, to) {
		return true
	}
	if from == "USD" {
		for _, alias := range b.usdAliases {
			if prov.Has(alias, to) {
				return true
			}
		}
	}
	if to == "USD" {
		for _, alias := range b.usdAliases {
			if prov.Has(from, alias) {
				return true
			}
		}
	}
	return false
}

// notSupported builds the canonical unsupported-pair error.
func (b *baseAdapter) notSupported(from, to string) error {
	return fmt.Errorf("%w: %s/%s is not supported by %s",
		exchange.ErrPairNotFound, from, to, b.name)
}
