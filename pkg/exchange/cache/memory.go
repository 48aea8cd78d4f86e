package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Privex/go-exchange/pkg/metrics"
)

// janitorInterval is how often the memory cache sweeps expired entries.
const janitorInterval = time.Minute

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is an in-process Cache backed by a map. Expired entries are
// dropped lazily on read and swept periodically by a janitor goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry

	stop     chan struct{}
	stopOnce sync.Once
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty memory cache and starts its janitor.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]entry),
		stop:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Get implements Cache.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		metrics.RecordCacheOp("memory", "miss")
		return nil, ErrMiss
	}
	metrics.RecordCacheOp("memory", "hit")
	return e.value, nil
}

// Set implements Cache.
func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: make([]byte, len(value))}
	copy(e.value, value)
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	metrics.RecordCacheOp("memory", "set")
	return nil
}

// Delete implements Cache.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Close stops the janitor. The cache remains usable afterwards, entries
// just stop being swept in the background.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}
