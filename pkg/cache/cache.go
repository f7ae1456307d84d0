// Package cache provides the TTL key-value store behind pkgintel's
// cache-aside lookups.
//
// Values are opaque byte slices (callers store JSON). Every backend honours
// the same TTL rules:
//
//   - ttl == 0 uses the backend's default TTL
//   - ttl == [NoExpiration] stores the value without expiry
//   - any other negative ttl falls back to the default and logs a warning
//
// An expired entry is a miss whether or not it has been purged yet.
//
// Backends:
//
//   - [Memory]: process-local map with an optional entry bound and janitor
//   - [Redis]: shared store; backend errors degrade to misses
//   - [FileCache]: on-disk entries, so repeated CLI invocations share results
//   - [NullCache]: caching disabled
package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgintel/pkg/observability"
)

// NoExpiration marks a value that never expires.
const NoExpiration time.Duration = -1

// DefaultTTL is used when Options.DefaultTTL is zero.
const DefaultTTL = time.Hour

// Cache is a TTL key-value store.
//
// Get reports (nil, false, nil) on a miss. Backends that can fail (Redis)
// log the failure and report a miss instead of returning it.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) bool
	Metrics() Metrics
	Close() error
}

// Metrics is a snapshot of cache counters.
type Metrics struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	HitRate   float64 `json:"hitRate"`
}

// Options configures a cache backend.
type Options struct {
	// DefaultTTL applies when Set is called with ttl == 0.
	DefaultTTL time.Duration

	// MaxEntries bounds the memory backend; 0 means unbounded.
	MaxEntries int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	Hooks  observability.CacheHooks
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultTTL
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.Hooks == nil {
		o.Hooks = observability.NoopCacheHooks{}
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// resolveTTL applies the TTL rules. A zero result means "no expiry".
func (o Options) resolveTTL(key string, ttl time.Duration) time.Duration {
	switch {
	case ttl == NoExpiration:
		return 0
	case ttl == 0:
		return o.DefaultTTL
	case ttl < 0:
		o.Logger.Warn("negative cache ttl, using default", "key", key, "ttl", ttl, "default", o.DefaultTTL)
		return o.DefaultTTL
	}
	return ttl
}

// counters tracks Metrics for a backend. Safe for concurrent use.
type counters struct {
	hits, misses, sets, deletes, evictions atomic.Int64
}

func (c *counters) snapshot(size int) Metrics {
	m := Metrics{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
		Size:      size,
	}
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m
}

var namespaces = map[string]bool{
	NamespaceSearch: true,
	NamespaceInfo:   true,
	NamespaceVulns:  true,
}

// keyType returns the namespace of key. A scope prefix added by
// [ScopedKeyer] is skipped; keys without a known namespace report their
// first segment.
func keyType(key string) string {
	segs := strings.Split(key, Separator)
	for _, s := range segs {
		if namespaces[s] {
			return s
		}
	}
	return segs[0]
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
