package cache

import (
	"path"
	"sync"
	"time"
)

// memoryStore is the in-process fallback backend: a plain map with one expiry
// timer per key, mirroring redis TTL semantics closely enough that callers
// cannot tell the backends apart.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	timers map[string]*time.Timer
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		data:   make(map[string][]byte),
		timers: make(map[string]*time.Timer),
	}
}

func (m *memoryStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	return raw, ok
}

func (m *memoryStore) set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.timers[key]; ok {
		t.Stop()
		delete(m.timers, key)
	}
	m.data[key] = value

	if ttl > 0 {
		m.timers[key] = time.AfterFunc(ttl, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.data, key)
			delete(m.timers, key)
		})
	}
}

func (m *memoryStore) delete(keys ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		if t, ok := m.timers[key]; ok {
			t.Stop()
			delete(m.timers, key)
		}
		delete(m.data, key)
	}
}

func (m *memoryStore) invalidate(pattern string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			if t, tok := m.timers[key]; tok {
				t.Stop()
				delete(m.timers, key)
			}
			delete(m.data, key)
			count++
		}
	}
	return count
}

func (m *memoryStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
