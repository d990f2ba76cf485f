// Package store implements the namespaced persistent cache store: an
// embedded key/value cache backed by an on-disk, crash-resilient,
// integrity-checked file, plus a raw blob storage facility under the
// same namespace directory.
//
// A Store gives callers cache ergonomics (get/set/expire) with the
// durability semantics of a small storage engine: atomic
// replace-on-write, tamper detection, backup-before-overwrite and
// graceful degradation to memory-only operation when the filesystem is
// unusable. It is single-process; two processes pointed at the same
// namespace directory are undefined (last rename wins).
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/nstore/internal/cache"
	"github.com/onnwee/nstore/internal/circuitbreaker"
	"github.com/onnwee/nstore/internal/logger"
)

const (
	// CacheFileName is the per-namespace cache file.
	CacheFileName = "_cache.dat"
	// BackupFileName holds the previous cache file generation.
	BackupFileName = "_cache.bak"
	// TempDirName is the hidden scratch area for atomic writes.
	TempDirName = ".tmp"

	// DefaultMaxBlobBytes caps the combined size of all files in a
	// namespace (1 MiB).
	DefaultMaxBlobBytes = 1 << 20

	dirPerm  = 0o770
	filePerm = 0o660
)

// Tokens must start alphanumeric; period, underscore, dash and equal
// are allowed afterwards. Applies to namespaces and keys alike and is
// enforced before anything reaches the filesystem layer.
var validToken = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._=-]*$`)

// ValidToken reports whether s is a legal namespace or key token.
func ValidToken(s string) bool {
	return validToken.MatchString(s)
}

// EventType labels a store lifecycle event.
type EventType string

const (
	EventFlush EventType = "flush"
	EventPrune EventType = "prune"
	EventClear EventType = "clear"
)

// Event is emitted through Options.OnEvent after a successful flush,
// prune or namespace clear.
type Event struct {
	Namespace string    `json:"namespace"`
	Type      EventType `json:"type"`
	Time      time.Time `json:"time"`
}

// Options configures a Store. The zero value is a memory-only store.
type Options struct {
	// Root is the base directory holding namespace directories. Empty
	// forces memory mode.
	Root string

	// Mode selects the flush policy. Defaults to ModeAuto when Root is
	// set; forced to ModeMemory otherwise.
	Mode Mode

	// Disabled turns persistence off regardless of Root, mirroring the
	// host configuration's global switch.
	Disabled bool

	// MaxBlobBytes caps combined blob storage per namespace. Defaults
	// to DefaultMaxBlobBytes.
	MaxBlobBytes int64

	// SyncWrites forces an fsync after every committed write.
	SyncWrites bool

	// Logger receives diagnostics. Defaults to the package logger
	// labelled with the namespace.
	Logger *slog.Logger

	// BlobCache, when set, serves repeated blob reads from memory.
	BlobCache cache.Cache

	// Breaker, when set, guards the disk commit path so repeated
	// environmental failures degrade the store to memory-only until
	// the filesystem recovers.
	Breaker *circuitbreaker.Breaker

	// OnEvent, when set, observes flush/prune/clear events.
	OnEvent func(Event)
}

// Store is a namespaced persistent cache. All methods are safe for
// concurrent use from one process; see the package comment for the
// multi-process caveat.
type Store struct {
	namespace string
	mode      Mode
	basePath  string
	tmpPath   string
	maxBlob   int64
	sync      bool

	log     *slog.Logger
	blobs   cache.Cache
	breaker *circuitbreaker.Breaker
	onEvent func(Event)

	mu      sync.Mutex
	table   map[string]*Entry // nil until the first lazy load
	dirty   bool
	closed  bool
	handles map[*os.File]struct{}

	// Usage caches, invalidated when a flush or blob write completes.
	sizeCache  map[bool]int64
	filesCache map[bool][]string
}

// Open creates a store for the given namespace. The namespace is
// validated against the token grammar and is immutable for the store's
// lifetime. Open never touches the filesystem; directories are created
// on the first flush or blob write.
func Open(namespace string, opts Options) (*Store, error) {
	if !ValidToken(namespace) {
		return nil, fmt.Errorf("%w: namespace %q", ErrInvalidToken, namespace)
	}

	mode := opts.Mode
	basePath, tmpPath := "", ""
	if opts.Root == "" || opts.Disabled {
		mode = ModeMemory
	} else {
		basePath = filepath.Join(opts.Root, namespace)
		tmpPath = filepath.Join(basePath, TempDirName)
	}

	maxBlob := opts.MaxBlobBytes
	if maxBlob <= 0 {
		maxBlob = DefaultMaxBlobBytes
	}

	log := opts.Logger
	if log == nil {
		log = logger.WithNamespace(namespace)
	}

	return &Store{
		namespace:  namespace,
		mode:       mode,
		basePath:   basePath,
		tmpPath:    tmpPath,
		maxBlob:    maxBlob,
		sync:       opts.SyncWrites,
		log:        log,
		blobs:      opts.BlobCache,
		breaker:    opts.Breaker,
		onEvent:    opts.OnEvent,
		handles:    make(map[*os.File]struct{}),
		sizeCache:  make(map[bool]int64),
		filesCache: make(map[bool][]string),
	}, nil
}

// Namespace returns the validated namespace token.
func (s *Store) Namespace() string { return s.namespace }

// Mode returns the store's flush policy.
func (s *Store) Mode() Mode { return s.mode }

// Path returns the namespace directory, or "" in memory mode.
func (s *Store) Path() string { return s.basePath }

// Get returns the value stored under key, or nil and false when the
// key is absent, expired, the cache file could not be loaded, or the
// store is closed.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, false
	}
	e, ok := s.table[key]
	if !ok || !e.Live() {
		return nil, false
	}
	return e.Value(), true
}

// Fetch is Get with a not-found error instead of a sentinel, for
// callers that need to distinguish absence from a stored nil.
func (s *Store) Fetch(key string) (any, error) {
	v, ok := s.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return v, nil
}

// Entry returns the live entry stored under key, with its metadata.
func (s *Store) Entry(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, false
	}
	e, ok := s.table[key]
	if !ok || !e.Live() {
		return nil, false
	}
	return e, true
}

// Has reports whether a live entry exists for key. Expired entries are
// treated as absent.
func (s *Store) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns the sorted keys of all live entries. ErrClosed after
// Close.
func (s *Store) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.table))
	for k, e := range s.table {
		if e.Live() {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// SetOption adjusts a Set call.
type SetOption func(*setConfig)

type setConfig struct {
	expiry     Expiry
	persistent bool
	elide      bool
}

// WithExpiry sets or clears the entry's expiry.
func WithExpiry(e Expiry) SetOption {
	return func(c *setConfig) { c.expiry = e }
}

// Transient marks the entry memory-only: it is dropped on flush and
// never dirties the store.
func Transient() SetOption {
	return func(c *setConfig) { c.persistent = false }
}

// NoElide disables lazy write elision, forcing the mutation even when
// an identical live entry already exists.
func NoElide() SetOption {
	return func(c *setConfig) { c.elide = false }
}

// Set stores value under key. Entries are persistent with no expiry
// unless options say otherwise. When an identical live entry already
// exists the call is a no-op success, avoiding redundant disk churn.
// In flush mode a persistent mutation is durable before Set returns.
func (s *Store) Set(key string, value any, opts ...SetOption) error {
	if !ValidToken(key) {
		return fmt.Errorf("%w: key %q", ErrInvalidToken, key)
	}

	cfg := setConfig{persistent: true, elide: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	entry, err := NewEntry(value, cfg.persistent)
	if err != nil {
		return err
	}
	entry.applyExpiry(cfg.expiry)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	if cfg.elide {
		if old, ok := s.table[key]; ok && old.Live() && entry.equivalent(old) {
			return nil
		}
	}

	s.table[key] = entry
	if entry.Persistent() {
		s.dirty = true
	}

	if s.dirty && s.mode == ModeFlush {
		return s.flushLocked(true, false)
	}
	return nil
}

// Delete removes key from the cache. Removing a persistent entry
// dirties the store and, in flush mode, is committed before Delete
// returns.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := s.ensureLoaded(); err != nil {
		return err
	}

	e, ok := s.table[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	if e.Persistent() {
		s.dirty = true
	}
	delete(s.table, key)

	if s.dirty && s.mode == ModeFlush {
		return s.flushLocked(true, false)
	}
	return nil
}

// Prune removes every entry that is no longer live and reports whether
// anything was removed. Persistent removals dirty the store and follow
// the mode flush rule.
func (s *Store) Prune() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	if err := s.ensureLoaded(); err != nil {
		return false, err
	}

	changed := false
	for k, e := range s.table {
		if e.Live() {
			continue
		}
		if e.Persistent() {
			s.dirty = true
		}
		delete(s.table, k)
		changed = true
	}

	if s.dirty && s.mode == ModeFlush {
		if err := s.flushLocked(true, false); err != nil {
			return changed, err
		}
	}
	if changed {
		s.emit(EventPrune)
	}
	return changed, nil
}

// Flush commits the in-memory table to the cache file. A no-op when
// the store is clean or memory-only.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flushLocked(s.sync, false)
}

// Close releases the store: outstanding raw file handles are closed
// and, in auto mode, dirty state gets its final flush. The owner must
// call Close on every exit path; there is no finalizer fallback.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for f := range s.handles {
		f.Close()
	}
	s.handles = make(map[*os.File]struct{})

	if s.mode == ModeAuto && s.dirty {
		return s.flushLocked(s.sync, false)
	}
	return nil
}

func (s *Store) emit(t EventType) {
	if s.onEvent != nil {
		s.onEvent(Event{Namespace: s.namespace, Type: t, Time: time.Now().UTC()})
	}
}
