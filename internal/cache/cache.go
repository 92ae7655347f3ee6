// Package cache holds short-lived shared state: per-topic in-flight refresh
// markers and cached profile narratives.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	// Acquire sets key only if it is absent and reports whether it did.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RefreshKey is the in-flight marker for a topic refresh.
func RefreshKey(topicID string) string { return "refresh:" + topicID }

// ProfileKey caches a profile narrative. version changes whenever a member
// topic is refreshed, so stale narratives are never served.
func ProfileKey(profileID, version string) string { return "profile:" + profileID + ":" + version }

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryStore is a process-local Store for single-instance deployments.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := m.items[key]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return e, false
	}
	return e, true
}

func (m *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.items[key] = memoryEntry{value: "1", expires: m.expiry(ttl)}
	return true, nil
}

func (m *MemoryStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	return e.value, ok, nil
}

func (m *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	m.items[key] = memoryEntry{value: value, expires: m.expiry(ttl)}
	m.mu.Unlock()
	return nil
}
