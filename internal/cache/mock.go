package cache

import (
	"sync"
	"time"
)

// Mock is a map-backed Cache for tests. Unlike the LRU it is exact:
// no admission policy, no eviction.
type Mock struct {
	mu           sync.Mutex
	data         map[string][]byte
	hits, misses uint64
}

// NewMock creates a mock cache.
func NewMock() *Mock {
	return &Mock{data: make(map[string][]byte)}
}

func (m *Mock) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, found := m.data[key]
	if found {
		m.hits++
	} else {
		m.misses++
	}
	return val, found
}

func (m *Mock) Set(key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
}

func (m *Mock) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *Mock) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
}

func (m *Mock) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Hits:   m.hits,
		Misses: m.misses,
		Items:  int64(len(m.data)),
	}
}
