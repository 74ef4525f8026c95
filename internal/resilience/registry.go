// SPDX-License-Identifier: MIT

package resilience

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "github.com/ManuGH/ssepipe/internal/log"
)

// DefaultRegistryTTL is how long an unused registry entry survives.
const DefaultRegistryTTL = 10 * time.Minute

// Registry shares circuit breakers across call sites by name, so unrelated
// callers accumulate failure state for the same logical remote dependency.
// Entries are evicted after a TTL without access, bounding growth under
// dynamically-named breakers.
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*registryEntry
	stopped bool
	logger  zerolog.Logger
}

type registryEntry struct {
	breaker    *CircuitBreaker
	timer      *time.Timer
	lastAccess time.Time
}

// NewRegistry creates a registry evicting entries after ttl without access.
// A non-positive ttl uses DefaultRegistryTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultRegistryTTL
	}
	return &Registry{
		ttl:     ttl,
		entries: make(map[string]*registryEntry),
		logger:  xlog.WithComponent("breaker-registry"),
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// opts on first access. Every access, creation or lookup, resets the
// entry's eviction timer.
func (r *Registry) GetOrCreate(name string, opts BreakerOptions) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		// A stopped registry still hands out breakers, just without
		// eviction; teardown has already been requested.
		return NewCircuitBreaker(name, opts)
	}

	if e, ok := r.entries[name]; ok {
		e.lastAccess = time.Now()
		e.timer.Reset(r.ttl)
		return e.breaker
	}

	e := &registryEntry{
		breaker:    NewCircuitBreaker(name, opts),
		lastAccess: time.Now(),
	}
	e.timer = time.AfterFunc(r.ttl, func() { r.evict(name) })
	r.entries[name] = e
	r.logger.Debug().Str(xlog.FieldBreaker, name).Msg("circuit breaker created")
	return e.breaker
}

// evict removes name if its TTL has genuinely elapsed. A timer firing that
// raced with a concurrent access re-arms for the remaining window instead.
func (r *Registry) evict(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok || r.stopped {
		return
	}
	idle := time.Since(e.lastAccess)
	if idle < r.ttl {
		e.timer.Reset(r.ttl - idle)
		return
	}
	delete(r.entries, name)
	r.logger.Debug().Str(xlog.FieldBreaker, name).Msg("circuit breaker evicted")
}

// Remove deletes the named entry and stops its eviction timer.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[name]; ok {
		e.timer.Stop()
		delete(r.entries, name)
	}
}

// Clear removes every entry and stops all eviction timers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

// Stop clears the registry and marks it stopped; later GetOrCreate calls
// return unmanaged breakers.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
	r.stopped = true
}

func (r *Registry) clearLocked() {
	for name, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, name)
	}
}

// Len reports the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
