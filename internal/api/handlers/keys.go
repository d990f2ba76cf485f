package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/server"
	"github.com/onnwee/nstore/internal/store"
)

// KeyHandler serves the cached key/value surface of a namespace.
type KeyHandler struct {
	ns *NamespaceHandler
}

// NewKeyHandler creates a key handler.
func NewKeyHandler(srv *server.Server) *KeyHandler {
	return &KeyHandler{ns: NewNamespaceHandler(srv)}
}

// EntryResponse is the wire shape of one cached entry.
type EntryResponse struct {
	Key              string   `json:"key"`
	Kind             string   `json:"kind"`
	Value            any      `json:"value"`
	Expires          *string  `json:"expires,omitempty"`
	ExpiresInSeconds *float64 `json:"expires_in_seconds,omitempty"`
}

// SetRequest is the body of a key write. Kind is optional: JSON's own
// types cover strings, numbers, booleans and null; "int", "bytes" and
// "datetime" request coercion JSON cannot express on its own.
type SetRequest struct {
	Value      json.RawMessage `json:"value"`
	Kind       string          `json:"kind,omitempty"`
	TTLSeconds *float64        `json:"ttl_seconds,omitempty"`
	Transient  bool            `json:"transient,omitempty"`
}

// List returns the sorted live keys of a namespace.
// GET /v1/namespaces/{namespace}/keys
func (h *KeyHandler) List(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	keys, err := st.Keys()
	if err != nil {
		logger.ErrorContext(r.Context(), "Failed to list keys", "namespace", st.Namespace(), "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Failed to list keys"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"keys":  keys,
		"total": len(keys),
	})
}

// Get returns one live entry with its metadata.
// GET /v1/namespaces/{namespace}/keys/{key}
func (h *KeyHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["key"]
	entry, ok := st.Entry(key)
	if !ok {
		apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("key"))
		return
	}

	resp := EntryResponse{
		Key:   key,
		Kind:  string(entry.Kind()),
		Value: entry.Value(),
	}
	if at, set := entry.Expires(); set {
		s := at.UTC().Format(time.RFC3339Nano)
		resp.Expires = &s
		if d, ok := entry.ExpiresIn(); ok {
			secs := d.Seconds()
			resp.ExpiresInSeconds = &secs
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Set writes a value under a key.
// PUT /v1/namespaces/{namespace}/keys/{key}
func (h *KeyHandler) Set(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidJSON())
		return
	}
	if len(req.Value) == 0 {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationMissingField("value"))
		return
	}

	value, err := decodeValue(req.Value, req.Kind)
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("value", err.Error()))
		return
	}

	opts := []store.SetOption{}
	if req.TTLSeconds != nil {
		opts = append(opts, store.WithExpiry(store.ExpiresIn(time.Duration(*req.TTLSeconds*float64(time.Second)))))
	}
	if req.Transient {
		opts = append(opts, store.Transient())
	}

	key := mux.Vars(r)["key"]
	if err := st.Set(key, value, opts...); err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidToken):
			apierr.WriteErrorWithContext(w, r, apierr.InvalidKey(key))
		case errors.Is(err, store.ErrUnsupportedKind):
			apierr.WriteErrorWithContext(w, r, apierr.ValidationInvalidValue("value", err.Error()))
		default:
			logger.ErrorContext(r.Context(), "Set failed", "namespace", st.Namespace(), "key", key, "error", err)
			apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Write failed"))
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Delete removes one key.
// DELETE /v1/namespaces/{namespace}/keys/{key}
func (h *KeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st, ok := h.ns.openStore(w, r)
	if !ok {
		return
	}

	key := mux.Vars(r)["key"]
	if err := st.Delete(key); err != nil {
		if errors.Is(err, store.ErrKeyNotFound) {
			apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("key"))
			return
		}
		logger.ErrorContext(r.Context(), "Delete failed", "namespace", st.Namespace(), "key", key, "error", err)
		apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Delete failed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// decodeValue turns a raw JSON value into one of the store's supported
// kinds. Without a kind hint, JSON numbers decode as float64; the hint
// recovers integers, byte blobs (base64) and timestamps (RFC 3339).
func decodeValue(raw json.RawMessage, kind string) (any, error) {
	switch kind {
	case "":
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "int":
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "bytes":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(s)
	case "datetime":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return time.Parse(time.RFC3339Nano, s)
	default:
		return nil, errors.New("unknown kind " + kind)
	}
}
