package config

import (
	"os"
	"testing"
	"time"

	"github.com/onnwee/nstore/internal/store"
)

func TestLoadDefaults(t *testing.T) {
	ResetForTest()
	os.Unsetenv("STORAGE_ROOT")
	os.Unsetenv("STORAGE_MODE")
	os.Unsetenv("STORAGE_ENABLED")
	os.Unsetenv("STORAGE_MAX_BLOB_BYTES")
	os.Unsetenv("LISTEN_ADDR")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageRoot != "" {
		t.Errorf("Expected empty storage root, got %q", cfg.StorageRoot)
	}
	if cfg.StorageMode != store.ModeAuto {
		t.Errorf("Expected auto mode default, got %v", cfg.StorageMode)
	}
	if !cfg.StorageEnabled {
		t.Error("Expected storage enabled by default")
	}
	if cfg.StorageMaxBlobBytes != store.DefaultMaxBlobBytes {
		t.Errorf("Expected default size cap, got %d", cfg.StorageMaxBlobBytes)
	}
	if cfg.ListenAddr != ":8520" {
		t.Errorf("Expected default listen address, got %q", cfg.ListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.CollectInterval != 30*time.Second {
		t.Errorf("Expected 30s collect interval, got %v", cfg.CollectInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	ResetForTest()
	os.Setenv("STORAGE_ROOT", "/var/lib/nstore")
	os.Setenv("STORAGE_MODE", "flush")
	os.Setenv("STORAGE_ENABLED", "false")
	os.Setenv("STORAGE_MAX_BLOB_BYTES", "2097152")
	os.Setenv("BLOB_CACHE_SIZE_MB", "0")
	defer func() {
		os.Unsetenv("STORAGE_ROOT")
		os.Unsetenv("STORAGE_MODE")
		os.Unsetenv("STORAGE_ENABLED")
		os.Unsetenv("STORAGE_MAX_BLOB_BYTES")
		os.Unsetenv("BLOB_CACHE_SIZE_MB")
		ResetForTest()
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageRoot != "/var/lib/nstore" {
		t.Errorf("Expected configured root, got %q", cfg.StorageRoot)
	}
	if cfg.StorageMode != store.ModeFlush {
		t.Errorf("Expected flush mode, got %v", cfg.StorageMode)
	}
	if cfg.StorageEnabled {
		t.Error("Expected storage disabled")
	}
	if cfg.StorageMaxBlobBytes != 2097152 {
		t.Errorf("Expected 2 MiB cap, got %d", cfg.StorageMaxBlobBytes)
	}
	if cfg.CacheMaxSizeMB != 0 {
		t.Errorf("Expected blob cache disabled, got %d MB", cfg.CacheMaxSizeMB)
	}
}

func TestLoadInvalidModeFails(t *testing.T) {
	ResetForTest()
	os.Setenv("STORAGE_MODE", "turbo")
	defer func() {
		os.Unsetenv("STORAGE_MODE")
		ResetForTest()
	}()

	if _, err := Load(); err == nil {
		t.Fatal("Expected an error for an unknown storage mode")
	}
}

func TestLoadCaches(t *testing.T) {
	ResetForTest()
	os.Unsetenv("STORAGE_MODE")

	first, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, _ := Load()
	if first != second {
		t.Error("Expected Load to return the cached config")
	}
	ResetForTest()
}
