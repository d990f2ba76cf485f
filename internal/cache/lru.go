package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// LRU is a ristretto-backed implementation of Cache. Cost accounting
// is byte-based so the cache stays within maxSizeMB regardless of how
// many blobs it holds.
type LRU struct {
	cache      *ristretto.Cache
	defaultTTL time.Duration
}

// NewLRU creates an LRU cache bounded by maxSizeMB megabytes and
// maxEntries entries, with defaultTTL applied to entries stored with
// ttl 0.
func NewLRU(maxSizeMB int64, maxEntries int64, defaultTTL time.Duration) (*LRU, error) {
	// Ristretto wants ~10x the entry count for its admission counters.
	numCounters := maxEntries * 10
	if numCounters < 1000 {
		numCounters = 1000
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxSizeMB * 1024 * 1024,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	return &LRU{cache: c, defaultTTL: defaultTTL}, nil
}

// Get returns a copy of the cached bytes so callers cannot mutate the
// stored value.
func (c *LRU) Get(key string) ([]byte, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	data, ok := val.([]byte)
	if !ok {
		c.cache.Del(key)
		return nil, false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, true
}

// Set stores a copy of value under key.
func (c *LRU) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	cp := make([]byte, len(value))
	copy(cp, value)

	_ = c.cache.SetWithTTL(key, cp, int64(len(cp)), ttl)

	// Wait for the value to pass through ristretto's buffers so a
	// read-after-write sees it.
	c.cache.Wait()
}

// Delete invalidates one key.
func (c *LRU) Delete(key string) {
	c.cache.Del(key)
}

// Clear drops every entry.
func (c *LRU) Clear() {
	c.cache.Clear()
}

// Stats returns cache statistics.
func (c *LRU) Stats() Stats {
	m := c.cache.Metrics
	return Stats{
		Hits:      m.Hits(),
		Misses:    m.Misses(),
		KeysAdded: m.KeysAdded(),
		Evictions: m.KeysEvicted(),
		Size:      int64(m.CostAdded() - m.CostEvicted()),
		Items:     int64(m.KeysAdded() - m.KeysEvicted()),
	}
}

// Close releases the cache's resources.
func (c *LRU) Close() {
	c.cache.Close()
}
