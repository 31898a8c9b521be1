package cache

import (
	"sync"
	"time"
)

const defaultCleanupInterval = 5 * time.Minute

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e memoryEntry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// expiringMap is a mutex-guarded map with per-entry TTL and a background sweeper.
// A zero TTL keeps the entry until it is deleted.
type expiringMap[V any] struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry[V]
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newExpiringMap[V any](cleanupInterval time.Duration) *expiringMap[V] {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}
	m := &expiringMap[V]{
		entries:  make(map[string]memoryEntry[V]),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	m.wg.Add(1)
	go m.cleanupLoop(cleanupInterval)
	return m
}

func (m *expiringMap[V]) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *expiringMap[V]) get(key string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok || e.expired(m.now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (m *expiringMap[V]) set(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry[V]{value: value, expiresAt: m.deadline(ttl)}
}

// setIfAbsent stores value unless a live entry exists and reports whether it stored
func (m *expiringMap[V]) setIfAbsent(key string, value V, ttl time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.expired(m.now()) {
		return false
	}
	m.entries[key] = memoryEntry[V]{value: value, expiresAt: m.deadline(ttl)}
	return true
}

// delete removes all keys under one lock so readers never observe a partial removal
func (m *expiringMap[V]) delete(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
}

func (m *expiringMap[V]) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *expiringMap[V]) close() {
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
	})
}

func (m *expiringMap[V]) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.cleanup()
		}
	}
}

func (m *expiringMap[V]) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
}
