package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/nstore/internal/config"
	"github.com/onnwee/nstore/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		StorageRoot:         t.TempDir(),
		StorageMode:         store.ModeAuto,
		StorageEnabled:      true,
		StorageMaxBlobBytes: store.DefaultMaxBlobBytes,
		CacheMaxSizeMB:      1,
		CacheMaxEntries:     64,
		CacheTTL:            time.Minute,
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { srv.CloseAll() })
	return srv
}

func TestServer_StoreOpensOnDemand(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	st, err := srv.Store("settings")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if st.Namespace() != "settings" {
		t.Errorf("Expected namespace settings, got %q", st.Namespace())
	}

	again, err := srv.Store("settings")
	if err != nil {
		t.Fatalf("Second Store failed: %v", err)
	}
	if st != again {
		t.Error("Expected the same store instance for a repeated namespace")
	}
}

func TestServer_StoreRejectsInvalidNamespace(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	if _, err := srv.Store("../escape"); err == nil {
		t.Fatal("Expected an error for an invalid namespace")
	}
}

func TestServer_NamespacesMergesDiskAndOpen(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	// On-disk namespace from a previous run.
	if err := os.MkdirAll(filepath.Join(cfg.StorageRoot, "archive"), 0o770); err != nil {
		t.Fatal(err)
	}
	// Stray non-namespace directory is ignored.
	if err := os.MkdirAll(filepath.Join(cfg.StorageRoot, ".tmp"), 0o770); err != nil {
		t.Fatal(err)
	}

	if _, err := srv.Store("settings"); err != nil {
		t.Fatal(err)
	}

	got, err := srv.Namespaces()
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	want := []string{"archive", "settings"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestServer_NamespacesMissingRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageRoot = filepath.Join(cfg.StorageRoot, "never-created")
	srv := newTestServer(t, cfg)

	got, err := srv.Namespaces()
	if err != nil {
		t.Fatalf("Namespaces failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no namespaces, got %v", got)
	}
}

func TestServer_DisabledStorageOpensMemoryStores(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageEnabled = false
	srv := newTestServer(t, cfg)

	st, err := srv.Store("settings")
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if st.Mode() != store.ModeMemory {
		t.Errorf("Expected memory mode with storage disabled, got %v", st.Mode())
	}

	// Memory stores still show up in the namespace listing.
	got, err := srv.Namespaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != "settings" {
		t.Errorf("Expected [settings], got %v", got)
	}
}

func TestServer_ForgetDropsOpenStore(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	st, err := srv.Store("settings")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	srv.Forget("settings")

	reopened, err := srv.Store("settings")
	if err != nil {
		t.Fatal(err)
	}
	if st == reopened {
		t.Error("Expected a fresh store after Forget")
	}
}

func TestServer_CloseAllFlushesAutoStores(t *testing.T) {
	cfg := testConfig(t)
	srv := newTestServer(t, cfg)

	st, err := srv.Store("settings")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Set("theme", "dark"); err != nil {
		t.Fatal(err)
	}

	if err := srv.CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}

	cacheFile := filepath.Join(cfg.StorageRoot, "settings", store.CacheFileName)
	if _, err := os.Stat(cacheFile); err != nil {
		t.Errorf("Expected cache file after shutdown flush: %v", err)
	}
}

func TestServer_ClosedServerRejectsStore(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	if err := srv.CloseAll(); err != nil {
		t.Fatal(err)
	}
	if _, err := srv.Store("settings"); err == nil {
		t.Fatal("Expected an error opening a store on a closed server")
	}

	// CloseAll is idempotent.
	if err := srv.CloseAll(); err != nil {
		t.Errorf("Second CloseAll failed: %v", err)
	}
}

func TestServer_CacheDisabledWhenSizeZero(t *testing.T) {
	cfg := testConfig(t)
	cfg.CacheMaxSizeMB = 0
	srv := newTestServer(t, cfg)

	if srv.BlobCache() != nil {
		t.Error("Expected no blob cache when size is zero")
	}
}

func TestServer_BreakerEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.BreakerEnabled = true
	cfg.BreakerFailureThreshold = 5
	cfg.BreakerSuccessThreshold = 2
	cfg.BreakerTimeout = time.Minute
	srv := newTestServer(t, cfg)

	if srv.Breaker() == nil {
		t.Error("Expected a commit breaker when enabled")
	}
}
