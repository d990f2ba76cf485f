// Package server owns the set of open stores for the storage daemon.
// Namespaces are opened on demand, shared across requests, and all
// closed together on shutdown so auto-mode stores get their final
// flush.
package server

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/onnwee/nstore/internal/cache"
	"github.com/onnwee/nstore/internal/circuitbreaker"
	"github.com/onnwee/nstore/internal/config"
	"github.com/onnwee/nstore/internal/logger"
	"github.com/onnwee/nstore/internal/store"
)

// Server manages open stores under one storage root. All methods are
// safe for concurrent use.
type Server struct {
	cfg     *config.Config
	blobs   cache.Cache
	breaker *circuitbreaker.Breaker
	onEvent func(store.Event)

	mu     sync.Mutex
	stores map[string]*store.Store
	closed bool
}

// New creates a server from configuration. onEvent, when non-nil,
// observes flush/prune/clear events from every open store.
func New(cfg *config.Config, onEvent func(store.Event)) (*Server, error) {
	var blobs cache.Cache
	if cfg.CacheMaxSizeMB > 0 {
		lru, err := cache.NewLRU(cfg.CacheMaxSizeMB, cfg.CacheMaxEntries, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create blob cache: %w", err)
		}
		blobs = lru
	}

	var breaker *circuitbreaker.Breaker
	if cfg.BreakerEnabled {
		breaker = circuitbreaker.New(circuitbreaker.Config{
			Name:             "store-commit",
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerTimeout,
		})
	}

	return &Server{
		cfg:     cfg,
		blobs:   blobs,
		breaker: breaker,
		onEvent: onEvent,
		stores:  make(map[string]*store.Store),
	}, nil
}

// Store returns the open store for namespace, opening it on first use.
func (s *Server) Store(namespace string) (*store.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, store.ErrClosed
	}
	if st, ok := s.stores[namespace]; ok {
		return st, nil
	}

	st, err := store.Open(namespace, store.Options{
		Root:         s.cfg.StorageRoot,
		Mode:         s.cfg.StorageMode,
		Disabled:     !s.cfg.StorageEnabled,
		MaxBlobBytes: s.cfg.StorageMaxBlobBytes,
		SyncWrites:   s.cfg.StorageSyncWrites,
		BlobCache:    s.blobs,
		Breaker:      s.breaker,
		OnEvent:      s.onEvent,
	})
	if err != nil {
		return nil, err
	}
	s.stores[namespace] = st
	return st, nil
}

// Namespaces lists every namespace: directories under the storage root
// plus open memory-mode stores. Sorted.
func (s *Server) Namespaces() ([]string, error) {
	seen := make(map[string]struct{})

	if s.cfg.StorageRoot != "" && s.cfg.StorageEnabled {
		entries, err := os.ReadDir(s.cfg.StorageRoot)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("scan storage root: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() && store.ValidToken(entry.Name()) {
				seen[entry.Name()] = struct{}{}
			}
		}
	}

	s.mu.Lock()
	for ns := range s.stores {
		seen[ns] = struct{}{}
	}
	s.mu.Unlock()

	namespaces := make([]string, 0, len(seen))
	for ns := range seen {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	return namespaces, nil
}

// BlobCache exposes the shared blob cache, nil when disabled.
func (s *Server) BlobCache() cache.Cache {
	return s.blobs
}

// Breaker exposes the shared commit breaker, nil when disabled.
func (s *Server) Breaker() *circuitbreaker.Breaker {
	return s.breaker
}

// Config returns the server's configuration.
func (s *Server) Config() *config.Config {
	return s.cfg
}

// Forget drops a namespace from the open set after its directory was
// cleared, so a later access starts from a fresh load.
func (s *Server) Forget(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stores, namespace)
}

// CloseAll closes every open store. Errors are logged, not returned
// one by one; the first failure is reported after all stores close.
func (s *Server) CloseAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var first error
	for ns, st := range s.stores {
		if err := st.Close(); err != nil {
			logger.Error("could not close store", "namespace", ns, "error", err)
			if first == nil {
				first = err
			}
		}
	}
	s.stores = make(map[string]*store.Store)

	if lru, ok := s.blobs.(*cache.LRU); ok {
		lru.Close()
	}
	return first
}
