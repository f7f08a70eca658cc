// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about engine initialization, builds, module loads, cache
// operations and registry requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// [Counters] is a ready-made implementation that tallies events with atomic
// counters; the CLI uses it to print per-build fetch statistics.
//
// # Usage
//
// Register hooks at application startup:
//
//	counters := &observability.Counters{}
//	observability.SetBuildHooks(counters)
//	observability.SetCacheHooks(counters)
//	observability.SetHTTPHooks(counters)
//
// Libraries call hooks to emit events:
//
//	observability.Build().OnBuildStart(ctx, id, len(src))
//	// ... bundle ...
//	observability.Build().OnBuildComplete(ctx, id, len(code), duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Build Hooks
// =============================================================================

// LoadOutcome describes how the loader satisfied one module load.
type LoadOutcome string

const (
	LoadStub     LoadOutcome = "stub"
	LoadCached   LoadOutcome = "cached"
	LoadFetched  LoadOutcome = "fetched"
	LoadRetried  LoadOutcome = "retried"
	LoadDegraded LoadOutcome = "degraded"
)

// BuildHooks receives events from the bundler and the loader.
type BuildHooks interface {
	// Engine initialization events
	OnInitStart(ctx context.Context)
	OnInitComplete(ctx context.Context, duration time.Duration, err error)

	// Build events
	OnBuildStart(ctx context.Context, buildID string, sourceBytes int)
	OnBuildComplete(ctx context.Context, buildID string, codeBytes int, duration time.Duration, err error)

	// OnModuleLoad records how a single address was loaded.
	OnModuleLoad(ctx context.Context, address string, outcome LoadOutcome)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
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
// No-op Implementations
// =============================================================================

// NoopBuildHooks is a no-op implementation of BuildHooks.
type NoopBuildHooks struct{}

func (NoopBuildHooks) OnInitStart(context.Context)                                        {}
func (NoopBuildHooks) OnInitComplete(context.Context, time.Duration, error)               {}
func (NoopBuildHooks) OnBuildStart(context.Context, string, int)                          {}
func (NoopBuildHooks) OnBuildComplete(context.Context, string, int, time.Duration, error) {}
func (NoopBuildHooks) OnModuleLoad(context.Context, string, LoadOutcome)                  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	buildHooks BuildHooks = NoopBuildHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	httpHooks  HTTPHooks  = NoopHTTPHooks{}
	hooksMu    sync.RWMutex
)

// SetBuildHooks registers custom build hooks.
// This should be called once at application startup before any builds.
func SetBuildHooks(h BuildHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		buildHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Build returns the registered build hooks.
func Build() BuildHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return buildHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	buildHooks = NoopBuildHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
