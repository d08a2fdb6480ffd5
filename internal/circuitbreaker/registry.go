package circuitbreaker

import (
	"maps"
	"sync"
	"time"
)

// Registry manages per-dependency Breaker instances, each possibly tuned
// independently (the config surface's cb.<name>.* keys).
type Registry struct {
	mu            sync.RWMutex
	breakers      map[string]*Breaker
	defaultConfig Config
	configs       map[string]Config
}

// NewRegistry creates a registry using defaultConfig for any dependency name
// not present in configs.
func NewRegistry(defaultConfig Config, configs map[string]Config) *Registry {
	return &Registry{
		breakers:      make(map[string]*Breaker),
		defaultConfig: defaultConfig,
		configs:       configs,
	}
}

// Get returns the breaker for the given dependency name, or nil if none exists.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b := r.breakers[name]
	r.mu.RUnlock()
	return b
}

// GetOrCreate returns the breaker for name, creating one if needed.
// Uses double-check locking to minimize write-lock contention.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg, ok := r.configs[name]
	if !ok {
		cfg = r.defaultConfig
	}
	b = NewBreaker(cfg)
	r.breakers[name] = b
	return b
}

// All returns a snapshot of every breaker currently registered, keyed by
// dependency name, for the /circuitbreakers report.
func (r *Registry) All() map[string]*Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.breakers)
}

// EvictStale removes breakers not used since cutoff.
// Phase 1: RLock to snapshot stale keys. Phase 2: Lock to delete them.
func (r *Registry) EvictStale(cutoff time.Time) int {
	// Phase 1: read-lock to identify stale keys.
	r.mu.RLock()
	var staleKeys []string
	for k, b := range r.breakers {
		if b.LastUsed().Before(cutoff) {
			staleKeys = append(staleKeys, k)
		}
	}
	r.mu.RUnlock()

	if len(staleKeys) == 0 {
		return 0
	}

	// Phase 2: write-lock only for deletions.
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for _, k := range staleKeys {
		if b, ok := r.breakers[k]; ok {
			if b.LastUsed().Before(cutoff) {
				delete(r.breakers, k)
				evicted++
			}
		}
	}
	return evicted
}
