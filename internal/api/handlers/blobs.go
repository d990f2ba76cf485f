package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/server"
	"github.com/onnwee/nstore/internal/store"
)

// BlobHandler serves raw blob upload, download and removal for a
// namespace.
type BlobHandler struct {
	ns *NamespaceHandler
}

// NewBlobHandler creates a blob handler.
func NewBlobHandler(srv *server.Server) *BlobHandler {
	return &BlobHandler{ns: NewNamespaceHandler(srv)}
}

// Upload stores the request body as a blob. With ?compress=true the
// bytes are gzip-compressed on disk.
// PUT /v1/namespaces/{namespace}/blobs/{key}
func (h *BlobHandler) Upload(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["key"]
	compress := r.URL.Query().Get("compress") == "true"

	if err := st.Write(key, r.Body, compress); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidToken):
			apierr.WriteErrorWithContext(w, r, apierr.InvalidKey(key))
		case errors.Is(err, store.ErrTooLarge):
			apierr.WriteErrorWithContext(w, r, apierr.ContentTooLarge())
		case errors.Is(err, store.ErrMemoryMode):
			apierr.WriteErrorWithContext(w, r, apierr.StoreDisabled())
		default:
			logger.ErrorContext(r.Context(), "Blob write failed", "namespace", st.Namespace(), "key", key, "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Blob write failed"))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Download streams a blob back. For a blob stored compressed
// (?compressed=true), a client that accepts gzip gets the on-disk bytes
// as-is with Content-Encoding set; otherwise the server decompresses.
// GET /v1/namespaces/{namespace}/blobs/{key}
func (h *BlobHandler) Download(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["key"]
	if !store.ValidToken(key) {
		apierr.WriteErrorWithContext(w, r, apierr.InvalidKey(key))
		return
	}

	compressed := r.URL.Query().Get("compressed") == "true"
	passthrough := compressed && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")

	data, err := st.Read(key, compressed && !passthrough)
	if err != nil {
		logger.ErrorContext(r.Context(), "Blob read failed", "namespace", st.Namespace(), "key", key, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Blob read failed"))
		return
	}
	if data == nil {
		apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("blob"))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+key+`"`)
	if passthrough {
		w.Header().Set("Content-Encoding", "gzip")
	}
	_, _ = w.Write(data)
}

// Remove deletes a blob.
// DELETE /v1/namespaces/{namespace}/blobs/{key}
func (h *BlobHandler) Remove(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["key"]
	if err := st.Remove(key); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidToken):
			apierr.WriteErrorWithContext(w, r, apierr.InvalidKey(key))
		case errors.Is(err, store.ErrKeyNotFound):
			apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("blob"))
		default:
			logger.ErrorContext(r.Context(), "Blob remove failed", "namespace", st.Namespace(), "key", key, "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Blob remove failed"))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
