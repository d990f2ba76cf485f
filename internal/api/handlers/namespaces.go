package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/server"
	"github.com/onnwee/nstore/internal/store"
)

// NamespaceHandler serves namespace-level operations: listing, stats,
// flush, prune and full clear.
type NamespaceHandler struct {
	srv *server.Server
}

// NewNamespaceHandler creates a namespace handler.
func NewNamespaceHandler(srv *server.Server) *NamespaceHandler {
	return &NamespaceHandler{srv: srv}
}

// NamespaceStats is the per-namespace detail payload.
type NamespaceStats struct {
	Namespace string   `json:"namespace"`
	Mode      string   `json:"mode"`
	Path      string   `json:"path,omitempty"`
	Keys      int      `json:"keys"`
	SizeBytes int64    `json:"size_bytes"`
	Files     []string `json:"files"`
}

// openStore resolves the namespace route var to an open store, writing
// the error response itself on failure.
func (h *NamespaceHandler) openStore(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	ns := mux.Vars(r)["namespace"]
	st, err := h.srv.Store(ns)
	if err != nil {
		if errors.Is(err, store.ErrInvalidToken) {
			apierr.WriteErrorWithContext(w, r, apierr.InvalidNamespace(ns))
			return nil, false
		}
		logger.ErrorContext(r.Context(), "Failed to open store", "namespace", ns, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Failed to open namespace"))
		return nil, false
	}
	return st, true
}

// List returns every known namespace.
// GET /v1/namespaces
func (h *NamespaceHandler) List(w http.ResponseWriter, r *http.Request) {
	namespaces, err := h.srv.Namespaces()
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list namespaces", "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Failed to list namespaces"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"namespaces": namespaces,
		"total":      len(namespaces),
	})
}

// Stats returns usage details for one namespace.
// GET /v1/namespaces/{namespace}
func (h *NamespaceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}

	keys, err := st.Keys()
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list keys", "namespace", st.Namespace(), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Failed to read namespace"))
		return
	}

	files := st.Files(true)
	if files == nil {
		files = []string{}
	}
	stats := NamespaceStats{
		Namespace: st.Namespace(),
		Mode:      st.Mode().String(),
		Path:      st.Path(),
		Keys:      len(keys),
		SizeBytes: st.Size(true),
		Files:     files,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

// Flush commits the namespace's in-memory table to disk.
// POST /v1/namespaces/{namespace}/flush
func (h *NamespaceHandler) Flush(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}

	if st.Mode() == store.ModeMemory {
		apierr.WriteErrorWithContext(w, r, apierr.StoreDisabled())
		return
	}
	if err := st.Flush(); err != nil {
		logger.ErrorContext(r.Context(), "Flush failed", "namespace", st.Namespace(), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Flush failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Prune drops expired entries and reports whether anything changed.
// POST /v1/namespaces/{namespace}/prune
func (h *NamespaceHandler) Prune(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}

	changed, err := st.Prune()
	if err != nil {
		logger.ErrorContext(r.Context(), "Prune failed", "namespace", st.Namespace(), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Prune failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "changed": changed})
}

// Clear wipes the namespace: cache file, backup and every blob. The
// store is dropped from the open set so the next access starts fresh.
// DELETE /v1/namespaces/{namespace}
func (h *NamespaceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	st, ok := h.openStore(w, r)
	if !ok {
		return
	}

	if err := st.Clear(); err != nil {
		logger.ErrorContext(r.Context(), "Clear failed", "namespace", st.Namespace(), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Clear failed"))
		return
	}
	h.srv.Forget(st.Namespace())
	if err := st.Close(); err != nil {
		logger.WarnContext(r.Context(), "Close after clear failed", "namespace", st.Namespace(), "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
