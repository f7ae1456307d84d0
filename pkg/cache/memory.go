package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is a process-local cache.
//
// Expired entries are dropped lazily on access and by the janitor started
// with StartJanitor. When MaxEntries is set, inserting a new key into a full
// cache evicts the entry closest to expiry.
type Memory struct {
	opts Options

	mu    sync.RWMutex
	items map[string]memEntry
	seq   uint64

	stop     chan struct{}
	stopOnce sync.Once

	counters
}

type memEntry struct {
	data      []byte
	expiresAt time.Time // zero means never
	seq       uint64    // insertion order, breaks eviction ties
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// NewMemory creates an in-memory cache.
func NewMemory(opts Options) *Memory {
	return &Memory{
		opts:  opts.withDefaults(),
		items: make(map[string]memEntry),
		stop:  make(chan struct{}),
	}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	now := m.opts.Clock()

	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()

	if ok && e.expired(now) {
		m.mu.Lock()
		if cur, still := m.items[key]; still && cur.expired(now) {
			delete(m.items, key)
			m.evictions.Add(1)
			m.opts.Hooks.OnCacheEvict(ctx, keyType(key))
		}
		m.mu.Unlock()
		ok = false
	}

	if !ok {
		m.misses.Add(1)
		m.opts.Hooks.OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}
	m.hits.Add(1)
	m.opts.Hooks.OnCacheHit(ctx, keyType(key))
	return clone(e.data), true, nil
}

// Set stores a copy of data under key.
func (m *Memory) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	now := m.opts.Clock()
	entry := memEntry{data: clone(data)}
	if d := m.opts.resolveTTL(key, ttl); d > 0 {
		entry.expiresAt = now.Add(d)
	}

	m.mu.Lock()
	if _, exists := m.items[key]; !exists && m.opts.MaxEntries > 0 && len(m.items) >= m.opts.MaxEntries {
		m.purgeLocked(ctx, now)
		for len(m.items) >= m.opts.MaxEntries {
			m.evictOneLocked(ctx)
		}
	}
	m.seq++
	entry.seq = m.seq
	m.items[key] = entry
	m.mu.Unlock()

	m.sets.Add(1)
	m.opts.Hooks.OnCacheSet(ctx, keyType(key), len(data))
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	_, ok := m.items[key]
	delete(m.items, key)
	m.mu.Unlock()
	if ok {
		m.deletes.Add(1)
	}
	return nil
}

// Has reports whether key holds a live value. It does not touch the
// hit/miss counters.
func (m *Memory) Has(ctx context.Context, key string) bool {
	m.mu.RLock()
	e, ok := m.items[key]
	m.mu.RUnlock()
	return ok && !e.expired(m.opts.Clock())
}

// Len returns the number of stored entries, including expired ones not yet
// purged.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Metrics returns a snapshot of the cache counters.
func (m *Memory) Metrics() Metrics {
	return m.snapshot(m.Len())
}

// DeleteExpired purges every expired entry and returns how many were removed.
func (m *Memory) DeleteExpired(ctx context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purgeLocked(ctx, m.opts.Clock())
}

// StartJanitor purges expired entries every interval until ctx is done or
// the cache is closed.
func (m *Memory) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stop:
				return
			case <-ticker.C:
				if n := m.DeleteExpired(ctx); n > 0 {
					m.opts.Logger.Debug("cache janitor purged entries", "count", n)
				}
			}
		}
	}()
}

// Close stops the janitor and drops all entries.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	m.mu.Lock()
	m.items = make(map[string]memEntry)
	m.mu.Unlock()
	return nil
}

func (m *Memory) purgeLocked(ctx context.Context, now time.Time) int {
	n := 0
	for k, e := range m.items {
		if e.expired(now) {
			delete(m.items, k)
			m.evictions.Add(1)
			m.opts.Hooks.OnCacheEvict(ctx, keyType(k))
			n++
		}
	}
	return n
}

// evictOneLocked removes the entry closest to expiry. Entries without
// expiry go last; ties are broken by insertion order.
func (m *Memory) evictOneLocked(ctx context.Context) {
	var (
		victim string
		best   memEntry
		found  bool
	)
	for k, e := range m.items {
		if !found || evictsBefore(e, best) {
			victim, best, found = k, e, true
		}
	}
	if !found {
		return
	}
	delete(m.items, victim)
	m.evictions.Add(1)
	m.opts.Hooks.OnCacheEvict(ctx, keyType(victim))
}

func evictsBefore(a, b memEntry) bool {
	switch {
	case a.expiresAt.IsZero() && b.expiresAt.IsZero():
		return a.seq < b.seq
	case a.expiresAt.IsZero():
		return false
	case b.expiresAt.IsZero():
		return true
	case a.expiresAt.Equal(b.expiresAt):
		return a.seq < b.seq
	}
	return a.expiresAt.Before(b.expiresAt)
}

var _ Cache = (*Memory)(nil)
