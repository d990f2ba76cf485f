package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/cache"
)

// CacheAdminHandler exposes the shared blob read cache.
type CacheAdminHandler struct {
	cache cache.Cache // nil when the cache is disabled
}

// NewCacheAdminHandler creates a cache admin handler.
func NewCacheAdminHandler(c cache.Cache) *CacheAdminHandler {
	return &CacheAdminHandler{cache: c}
}

// Invalidate clears all entries from the blob cache.
// POST /v1/cache/invalidate
func (h *CacheAdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("blob cache"))
		return
	}
	h.cache.Clear()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"message": "Cache invalidated successfully",
	})
}

// Stats returns current blob cache statistics.
// GET /v1/cache/stats
func (h *CacheAdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("blob cache"))
		return
	}
	stats := h.cache.Stats()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"keysAdded": stats.KeysAdded,
		"evictions": stats.Evictions,
		"sizeBytes": stats.Size,
		"items":     stats.Items,
	})
}
