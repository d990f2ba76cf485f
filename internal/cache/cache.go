// Package cache provides the in-memory byte cache used to serve
// repeated blob reads without touching disk. Entries are invalidated
// whenever the underlying blob is rewritten or removed, so a bounded
// TTL only limits staleness from out-of-band file changes.
package cache

import "time"

// Cache is a size-bounded byte cache keyed by namespace-scoped blob
// names.
type Cache interface {
	// Get returns the cached bytes and true on a hit.
	Get(key string) ([]byte, bool)

	// Set stores bytes under key. A ttl of 0 uses the cache default.
	Set(key string, value []byte, ttl time.Duration)

	// Delete invalidates one key.
	Delete(key string)

	// Clear drops every entry.
	Clear()

	// Stats returns counters for the ops API.
	Stats() Stats
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits      uint64 // total cache hits
	Misses    uint64 // total cache misses
	KeysAdded uint64 // total keys added
	Evictions uint64 // total evictions
	Size      int64  // approximate size in bytes
	Items     int64  // current number of items
}
