package handlers

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Build metadata, overridden at link time with
// -ldflags "-X .../handlers.Version=v1.2.3".
var (
	Version = "dev"
	Commit  = "unknown"
)

// GetVersion reports the daemon's build information.
// GET /version
func GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"version":    Version,
		"commit":     Commit,
		"go_version": runtime.Version(),
	})
}
