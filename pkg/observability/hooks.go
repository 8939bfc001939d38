// Package observability provides hooks for instrumenting the resolution core.
//
// The package uses a simple hooks pattern: hook interfaces for each event
// category, no-op default implementations, and a global registry populated
// once at startup. This keeps the core library free of any dependency on a
// particular metrics or debug backend while letting the debug server (or a
// future metrics exporter) observe cache and rate-limiter behavior.
//
// Register hooks at application startup:
//
//	observability.SetCacheHooks(stats)
//	observability.SetRateHooks(stats)
//
// Libraries call hooks to emit events:
//
//	observability.Cache().OnHit(ctx, name)
package observability

import (
	"context"
	"sync"
	"time"
)

// CacheHooks receives events from the metadata cache.
type CacheHooks interface {
	// OnHit records a lookup served from a ready cache entry.
	OnHit(ctx context.Context, crate string)

	// OnMiss records a lookup that had to start or join a fetch.
	OnMiss(ctx context.Context, crate string)

	// OnFetch records a completed index fetch with its outcome.
	OnFetch(ctx context.Context, crate string, duration time.Duration, err error)

	// OnDescription records a completed description fetch with its outcome.
	OnDescription(ctx context.Context, crate string, duration time.Duration, err error)
}

// RateHooks receives events from the registry rate limiter.
type RateHooks interface {
	// OnPermit records a granted permit and how long the caller waited for it.
	OnPermit(ctx context.Context, waited time.Duration)
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnHit(context.Context, string)                               {}
func (NoopCacheHooks) OnMiss(context.Context, string)                              {}
func (NoopCacheHooks) OnFetch(context.Context, string, time.Duration, error)       {}
func (NoopCacheHooks) OnDescription(context.Context, string, time.Duration, error) {}

// NoopRateHooks is a no-op implementation of RateHooks.
type NoopRateHooks struct{}

func (NoopRateHooks) OnPermit(context.Context, time.Duration) {}

var (
	cacheHooks CacheHooks = NoopCacheHooks{}
	rateHooks  RateHooks  = NoopRateHooks{}
	hooksMu    sync.RWMutex
)

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetRateHooks registers custom rate limiter hooks.
// This should be called once at application startup before any registry calls.
func SetRateHooks(h RateHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		rateHooks = h
	}
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Rate returns the registered rate limiter hooks.
func Rate() RateHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return rateHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	cacheHooks = NoopCacheHooks{}
	rateHooks = NoopRateHooks{}
}
