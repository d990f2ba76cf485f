// Package config loads the storage daemon's configuration from the
// environment, once, with defaults that make an unconfigured daemon
// run memory-only rather than fail.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/onnwee/nstore/internal/store"
	"github.com/onnwee/nstore/internal/utils"
)

// Config holds application configuration derived from environment
// variables.
type Config struct {
	// Storage layer
	StorageRoot         string     // base directory for namespace directories; "" = memory-only
	StorageMode         store.Mode // flush policy for opened stores
	StorageEnabled      bool       // global persistence switch
	StorageMaxBlobBytes int64      // per-namespace size cap
	StorageSyncWrites   bool       // fsync after committed writes

	// Blob read cache
	CacheMaxSizeMB  int64         // 0 disables the cache
	CacheMaxEntries int64
	CacheTTL        time.Duration

	// Commit circuit breaker
	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration

	// Ops API
	ListenAddr           string
	RateLimitGlobal      float64 // requests per second globally
	RateLimitGlobalBurst int
	RateLimitPerIP       float64 // requests per second per IP
	RateLimitPerIPBurst  int
	EnableRateLimit      bool

	// Disk usage gauge refresh
	CollectInterval time.Duration

	// Observability
	LogLevel          string
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
}

var cached *Config

// Load reads env vars once and caches them. An invalid STORAGE_MODE is
// the one hard failure: silently falling back to a different
// durability policy would be worse than refusing to start.
func Load() (*Config, error) {
	if cached != nil {
		return cached, nil
	}

	mode, err := store.ParseMode(os.Getenv("STORAGE_MODE"))
	if err != nil {
		return nil, fmt.Errorf("STORAGE_MODE: %w", err)
	}

	cached = &Config{
		StorageRoot:         strings.TrimSpace(os.Getenv("STORAGE_ROOT")),
		StorageMode:         mode,
		StorageEnabled:      utils.GetEnvAsBool("STORAGE_ENABLED", true),
		StorageMaxBlobBytes: int64(utils.GetEnvAsInt("STORAGE_MAX_BLOB_BYTES", store.DefaultMaxBlobBytes)),
		StorageSyncWrites:   utils.GetEnvAsBool("STORAGE_SYNC_WRITES", false),

		CacheMaxSizeMB:  int64(utils.GetEnvAsInt("BLOB_CACHE_SIZE_MB", 16)),
		CacheMaxEntries: int64(utils.GetEnvAsInt("BLOB_CACHE_MAX_ENTRIES", 1024)),
		CacheTTL:        time.Duration(utils.GetEnvAsInt("BLOB_CACHE_TTL_SEC", 300)) * time.Second,

		BreakerEnabled:          utils.GetEnvAsBool("BREAKER_ENABLED", true),
		BreakerFailureThreshold: utils.GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: utils.GetEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerTimeout:          time.Duration(utils.GetEnvAsInt("BREAKER_TIMEOUT_SEC", 60)) * time.Second,

		ListenAddr:           strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),

		CollectInterval: time.Duration(utils.GetEnvAsInt("COLLECT_INTERVAL_SEC", 30)) * time.Second,

		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}

	if cached.ListenAddr == "" {
		cached.ListenAddr = ":8520"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	return cached, nil
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
