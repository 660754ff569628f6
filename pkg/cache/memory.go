package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is a process-local Cache implementation with expiry-on-read and a
// periodic sweep to keep long-idle keys from accumulating.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry[V]

	now       func() time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemory creates an in-memory cache. sweepEvery <= 0 disables the
// background sweep; expired entries are then reclaimed on read only.
func NewMemory[V any](sweepEvery time.Duration) *Memory[V] {
	m := &Memory[V]{
		entries: make(map[string]memoryEntry[V]),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	if sweepEvery > 0 {
		go m.sweep(sweepEvery)
	}
	return m
}

// Close stops the background sweep. Safe to call more than once; the cache
// itself stays usable, entries then expire on read only.
func (m *Memory[V]) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have renewed it.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry[V]{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			cutoff := m.now()
			m.mu.Lock()
			for key, entry := range m.entries {
				if cutoff.After(entry.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}
