package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store flush metrics
	StoreFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_flushes_total",
			Help: "Total number of cache flushes to disk",
		},
		[]string{"status"}, // status: success, failed, skipped
	)

	StoreFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_flush_duration_seconds",
			Help:    "Duration of cache flushes in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	StoreLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_loads_total",
			Help: "Total number of cache file loads",
		},
		[]string{"status"}, // status: success, empty, corrupt, failed
	)

	// Entries dropped during load because checksum verification or
	// decoding rejected them
	StoreEntriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_entries_dropped_total",
			Help: "Total number of cache entries dropped as corrupt or tampered",
		},
	)

	StoreEntriesLoaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_entries_loaded_total",
			Help: "Total number of cache entries loaded from disk",
		},
	)

	// Blob I/O metrics
	BlobReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_blob_reads_total",
			Help: "Total number of raw blob reads",
		},
		[]string{"status"}, // status: hit, miss, cached
	)

	BlobWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_blob_writes_total",
			Help: "Total number of raw blob writes",
		},
		[]string{"status"}, // status: success, failed, too_large
	)

	// Disk usage gauges, refreshed by the Collector
	NamespaceDiskUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_namespace_disk_bytes",
			Help: "On-disk size of a namespace in bytes",
		},
		[]string{"namespace"},
	)

	NamespaceFiles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_namespace_files",
			Help: "Number of files in a namespace directory",
		},
		[]string{"namespace"},
	)

	NamespacesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_namespaces_total",
			Help: "Number of namespace directories under the storage root",
		},
	)

	CollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_metrics_collection_errors_total",
			Help: "Total number of errors while refreshing disk usage gauges",
		},
		[]string{"stage"}, // stage: scan, walk
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"name"},
	)

	// Ops API metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the ops API",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Event hub metrics
	EventClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_event_clients",
			Help: "Number of connected websocket event clients",
		},
	)

	EventsBroadcast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_events_broadcast_total",
			Help: "Total number of store events broadcast to clients",
		},
	)
)
