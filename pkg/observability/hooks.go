// Package observability provides hooks for metrics and instrumentation.
//
// Components never talk to a metrics backend directly. They receive a
// [Hooks] value at construction time and emit events through it; a nil or
// zero Hooks behaves as a no-op.
//
// # Architecture
//
//   - Hook interfaces per event category (cache, outbound HTTP, tool calls)
//   - No-op implementations used when nothing is injected
//   - A Prometheus implementation ([NewPrometheus]) wired by the server
//
// # Usage
//
// Build hooks once in main and hand them to every component:
//
//	prom := observability.NewPrometheus(prometheus.NewRegistry())
//	hooks := prom.Hooks()
//	c := cache.NewMemory(cache.MemoryOptions{Hooks: hooks.Cache})
//
// Components emit events through whatever they were given:
//
//	h.Tool.OnToolStart(ctx, "search_packages")
//	// ... run the tool ...
//	h.Tool.OnToolComplete(ctx, "search_packages", time.Since(start), err)
package observability

import (
	"context"
	"time"
)

// Hooks bundles every hook category. Nil fields are treated as no-ops.
type Hooks struct {
	Cache CacheHooks
	HTTP  HTTPHooks
	Tool  ToolHooks
}

// Noop returns a Hooks value with every category set to its no-op.
func Noop() Hooks {
	return Hooks{
		Cache: NoopCacheHooks{},
		HTTP:  NoopHTTPHooks{},
		Tool:  NoopToolHooks{},
	}
}

// WithDefaults returns h with nil categories replaced by no-ops.
func (h Hooks) WithDefaults() Hooks {
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	if h.Tool == nil {
		h.Tool = NoopToolHooks{}
	}
	return h
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
// keyType is the key namespace (the part of the key before the first ':').
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
	OnCacheEvict(ctx context.Context, keyType string)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// Tool Hooks
// =============================================================================

// ToolHooks receives events around each orchestrator tool invocation.
type ToolHooks interface {
	OnToolStart(ctx context.Context, tool string)
	OnToolComplete(ctx context.Context, tool string, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}
func (NoopCacheHooks) OnCacheEvict(context.Context, string)    {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// NoopToolHooks is a no-op implementation of ToolHooks.
type NoopToolHooks struct{}

func (NoopToolHooks) OnToolStart(context.Context, string)                           {}
func (NoopToolHooks) OnToolComplete(context.Context, string, time.Duration, error) {}
