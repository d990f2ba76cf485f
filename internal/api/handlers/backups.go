package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/onnwee/nstore/internal/apierr"
	"github.com/onnwee/nstore/internal/server"
	"github.com/onnwee/nstore/internal/store"
)

// BackupHandler exposes the previous cache file generation kept under
// each namespace, for operators recovering from a bad write.
type BackupHandler struct {
	srv *server.Server
}

// NewBackupHandler creates a backup handler.
func NewBackupHandler(srv *server.Server) *BackupHandler {
	return &BackupHandler{srv: srv}
}

// BackupInfo describes one namespace backup file.
type BackupInfo struct {
	Namespace string `json:"namespace"`
	Size      int64  `json:"size"`
	Modified  string `json:"modified"`
}

// List returns every namespace that currently holds a backup file,
// newest first.
// GET /v1/backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	cfg := h.srv.Config()

	var out []BackupInfo
	if cfg.StorageRoot != "" && cfg.StorageEnabled {
		entries, err := os.ReadDir(cfg.StorageRoot)
		if err != nil && !os.IsNotExist(err) {
			apierr.WriteErrorWithContext(w, r, apierr.StoreIO("Failed to scan storage root"))
			return
		}
		for _, e := range entries {
			if !e.IsDir() || !store.ValidToken(e.Name()) {
				continue
			}
			fi, err := os.Stat(filepath.Join(cfg.StorageRoot, e.Name(), store.BackupFileName))
			if err != nil {
				continue
			}
			out = append(out, BackupInfo{
				Namespace: e.Name(),
				Size:      fi.Size(),
				Modified:  fi.ModTime().UTC().Format(time.RFC3339),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified > out[j].Modified })
	if out == nil {
		out = []BackupInfo{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

// Download streams one namespace's backup file.
// GET /v1/backups/{namespace}
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	ns := mux.Vars(r)["namespace"]
	if !store.ValidToken(ns) {
		apierr.WriteErrorWithContext(w, r, apierr.InvalidNamespace(ns))
		return
	}

	cfg := h.srv.Config()
	if cfg.StorageRoot == "" || !cfg.StorageEnabled {
		apierr.WriteErrorWithContext(w, r, apierr.StoreDisabled())
		return
	}

	f, err := os.Open(filepath.Join(cfg.StorageRoot, ns, store.BackupFileName))
	if err != nil {
		apierr.WriteErrorWithContext(w, r, apierr.ResourceNotFound("backup"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ns+`-`+store.BackupFileName+`"`)
	_, _ = io.Copy(w, f)
}
