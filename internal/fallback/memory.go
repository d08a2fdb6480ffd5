package fallback

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
)

// entry is what Memory actually stores: the caller's value blob plus its
// absolute expiry, since otter itself is unaware of per-entry TTL here.
type entry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is the in-process Store, backed by an otter cache. It is the
// default fallback store; Redis is used instead once cache.host is
// configured.
type Memory struct {
	cache      *otter.Cache[string, entry]
	defaultTTL time.Duration
}

// NewMemory creates an in-process fallback store capped at maxSize entries.
func NewMemory(maxSize int, defaultTTL time.Duration) *Memory {
	cache := otter.Must(&otter.Options[string, entry]{
		MaximumSize: maxSize,
	})
	return &Memory{cache: cache, defaultTTL: defaultTTL}
}

// Get returns the value for key if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		m.cache.Invalidate(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Put stores value under key with the given TTL (or the default TTL if ttl
// is zero). value is never nil — callers must not store an absent result.
func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	m.cache.Set(key, entry{data: value, expiresAt: time.Now().Add(ttl)})
	return nil
}

// Purge clears every entry, used in tests and on shutdown.
func (m *Memory) Purge(_ context.Context) error {
	m.cache.InvalidateAll()
	return nil
}
