// Package api wires the ops API: namespace and key management, blob
// transfer, backups, cache administration and the event stream.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/onnwee/nstore/internal/api/handlers"
	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/middleware"
	"github.com/onnwee/nstore/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the ops API router for a server. hub may be nil to
// disable the event stream; limiter may be nil to disable rate
// limiting.
func NewRouter(srv *server.Server, hub *handlers.Hub, limiter *middleware.RateLimiter) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RecoverWithSentry)
	r.Use(middleware.Metrics)
	r.Use(middleware.Compress)
	if limiter != nil {
		r.Use(limiter.Limit)
	}

	r.HandleFunc("/health", handlers.Health(srv)).Methods("GET")
	r.HandleFunc("/version", handlers.GetVersion).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	v1 := r.PathPrefix("/v1").Subrouter()

	// Namespaces
	ns := handlers.NewNamespaceHandler(srv)
	v1.HandleFunc("/namespaces", ns.List).Methods("GET")
	v1.HandleFunc("/namespaces/{namespace}", ns.Stats).Methods("GET")
	v1.HandleFunc("/namespaces/{namespace}", ns.Clear).Methods("DELETE")
	v1.HandleFunc("/namespaces/{namespace}/flush", ns.Flush).Methods("POST")
	v1.HandleFunc("/namespaces/{namespace}/prune", ns.Prune).Methods("POST")

	// Cached keys
	keys := handlers.NewKeyHandler(srv)
	v1.HandleFunc("/namespaces/{namespace}/keys", keys.List).Methods("GET")
	v1.HandleFunc("/namespaces/{namespace}/keys/{key}", keys.Get).Methods("GET")
	v1.HandleFunc("/namespaces/{namespace}/keys/{key}", keys.Set).Methods("PUT")
	v1.HandleFunc("/namespaces/{namespace}/keys/{key}", keys.Delete).Methods("DELETE")

	// Raw blobs
	blobs := handlers.NewBlobHandler(srv)
	v1.HandleFunc("/namespaces/{namespace}/blobs/{key}", blobs.Download).Methods("GET")
	v1.HandleFunc("/namespaces/{namespace}/blobs/{key}", blobs.Upload).Methods("PUT")
	v1.HandleFunc("/namespaces/{namespace}/blobs/{key}", blobs.Remove).Methods("DELETE")

	// Backups
	backups := handlers.NewBackupHandler(srv)
	v1.HandleFunc("/backups", backups.List).Methods("GET")
	v1.HandleFunc("/backups/{namespace}", backups.Download).Methods("GET")

	// Blob cache administration
	cacheAdmin := handlers.NewCacheAdminHandler(srv.BlobCache())
	v1.HandleFunc("/cache/stats", cacheAdmin.Stats).Methods("GET")
	v1.HandleFunc("/cache/invalidate", cacheAdmin.Invalidate).Methods("POST")

	// Event stream
	if hub != nil {
		v1.HandleFunc("/events", hub.HandleEvents).Methods("GET")
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		apierr.WriteError(w, apierr.ResourceNotFound("route"))
	})

	return r
}
