// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about update cycles, transitions, cache operations, and
// API calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// This approach:
//   - Avoids import cycles (hooks are registered by main, not by libraries)
//   - Keeps the core library dependency-free from observability frameworks
//   - Allows different backends (OpenTelemetry, Prometheus, DataDog, etc.)
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetUpdateHooks(&myUpdateHooks{})
//	    observability.SetTransitionHooks(&myTransitionHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Update().OnGenerateStart(ctx, seq)
//	// ... run generation ...
//	observability.Update().OnGenerateComplete(ctx, seq, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Update Hooks
// =============================================================================

// UpdateHooks receives events from the update scheduler and generation path.
type UpdateHooks interface {
	// Generation events
	OnGenerateStart(ctx context.Context, seq uint64)
	OnGenerateComplete(ctx context.Context, seq uint64, duration time.Duration, err error)

	// OnResultInstalled records a generated frame landing in the pending slot.
	OnResultInstalled(ctx context.Context, seq uint64)

	// OnResultDiscarded records a stale or cancelled result being dropped.
	OnResultDiscarded(ctx context.Context, seq uint64, reason string)
}

// =============================================================================
// Transition Hooks
// =============================================================================

// TransitionHooks receives events from the transition controller.
type TransitionHooks interface {
	// OnMorphStart records a morph beginning toward the frame with seq.
	OnMorphStart(ctx context.Context, seq uint64, frameCount int)

	// OnMorphComplete records a morph finishing or being preempted.
	OnMorphComplete(ctx context.Context, seq uint64, preempted bool, duration time.Duration)

	// OnCut records an instantaneous switch and why the morph was skipped.
	OnCut(ctx context.Context, seq uint64, reason string)

	// OnEstimateComplete records a motion-field estimation.
	OnEstimateComplete(ctx context.Context, duration time.Duration, err error)
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

// NoopUpdateHooks is a no-op implementation of UpdateHooks.
type NoopUpdateHooks struct{}

func (NoopUpdateHooks) OnGenerateStart(context.Context, uint64)                              {}
func (NoopUpdateHooks) OnGenerateComplete(context.Context, uint64, time.Duration, error)     {}
func (NoopUpdateHooks) OnResultInstalled(context.Context, uint64)                            {}
func (NoopUpdateHooks) OnResultDiscarded(context.Context, uint64, string)                    {}

// NoopTransitionHooks is a no-op implementation of TransitionHooks.
type NoopTransitionHooks struct{}

func (NoopTransitionHooks) OnMorphStart(context.Context, uint64, int)                    {}
func (NoopTransitionHooks) OnMorphComplete(context.Context, uint64, bool, time.Duration) {}
func (NoopTransitionHooks) OnCut(context.Context, uint64, string)                        {}
func (NoopTransitionHooks) OnEstimateComplete(context.Context, time.Duration, error)     {}

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
	updateHooks     UpdateHooks     = NoopUpdateHooks{}
	transitionHooks TransitionHooks = NoopTransitionHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	httpHooks       HTTPHooks       = NoopHTTPHooks{}
	hooksMu         sync.RWMutex
)

// SetUpdateHooks registers custom update hooks.
// This should be called once at application startup before the scheduler runs.
func SetUpdateHooks(h UpdateHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		updateHooks = h
	}
}

// SetTransitionHooks registers custom transition hooks.
// This should be called once at application startup before the controller runs.
func SetTransitionHooks(h TransitionHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		transitionHooks = h
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

// Update returns the registered update hooks.
func Update() UpdateHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return updateHooks
}

// Transition returns the registered transition hooks.
func Transition() TransitionHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return transitionHooks
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
	updateHooks = NoopUpdateHooks{}
	transitionHooks = NoopTransitionHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
