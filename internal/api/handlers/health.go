package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/nstore/internal/server"
)

// Health returns a simple JSON payload to indicate the API is alive,
// plus whether persistence is active.
func Health(srv *server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg := srv.Config()
		persistent := cfg.StorageEnabled && cfg.StorageRoot != ""

		body := map[string]any{
			"status":     "ok",
			"persistent": persistent,
		}
		if b := srv.Breaker(); b != nil {
			body["breaker"] = b.State().String()
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}
