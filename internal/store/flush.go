package store

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/onnwee/nstore/internal/atomicfile"
	"github.com/onnwee/nstore/internal/metrics"
)

// ensureLoaded populates the table on first access. Called with the
// store lock held. The table loads at most once per store lifetime; a
// lower-level access failure leaves it unset so a later access
// retries. A closed store never loads: reads after Close fail like
// writes do instead of touching the filesystem.
func (s *Store) ensureLoaded() error {
	if s.closed {
		return ErrClosed
	}
	if s.table != nil {
		return nil
	}
	return s.load()
}

// load reads and decodes the cache file.
//
// Failure handling is deliberately uneven: a missing file is an empty
// store; a corrupt file (bad gzip, bad JSON) is an empty store plus a
// warning, and the file is left alone until the next flush overwrites
// it; a permission-style failure aborts so the caller sees the error.
// Individual entries that fail codec validation are dropped and the
// store is marked dirty so the next flush rewrites a clean file.
func (s *Store) load() error {
	s.dirty = false

	if s.mode == ModeMemory {
		s.table = make(map[string]*Entry)
		return nil
	}

	cacheFile := filepath.Join(s.basePath, CacheFileName)
	f, err := os.Open(cacheFile)
	if errors.Is(err, os.ErrNotExist) {
		s.table = make(map[string]*Entry)
		metrics.StoreLoads.WithLabelValues("empty").Inc()
		return nil
	}
	if err != nil {
		s.log.Warn("could not load persistent cache", "error", err)
		metrics.StoreLoads.WithLabelValues("failed").Inc()
		return fmt.Errorf("load cache file: %w", err)
	}
	defer f.Close()

	raw, err := decompressCache(f)
	if err != nil {
		// A table we could not even decode: start empty, do not mark
		// dirty, and leave the corrupt file alone until the next write
		// path decides to overwrite it.
		s.table = make(map[string]*Entry)
		s.log.Warn("corrupted persistent cache content", "file", cacheFile, "error", err)
		metrics.StoreLoads.WithLabelValues("corrupt").Inc()
		return nil
	}

	s.table = make(map[string]*Entry, len(raw))
	for k, v := range raw {
		e := decodeEntry(v, s.log)
		if e == nil {
			// Self-heal: the next flush writes a clean file without
			// the tampered entry.
			s.dirty = true
			metrics.StoreEntriesDropped.Inc()
			continue
		}
		s.table[k] = e
	}
	metrics.StoreEntriesLoaded.Add(float64(len(s.table)))
	metrics.StoreLoads.WithLabelValues("success").Inc()
	return nil
}

func decompressCache(r io.Reader) (map[string]json.RawMessage, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}

	table := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return table, nil
}

// flushLocked commits the table to disk. Called with the store lock
// held. The commit sequence never writes the canonical filename
// directly: content is staged in the temp dir and renamed into place,
// with the previous generation rotated to the backup name first, so a
// crash at any point leaves either the old or the new file readable.
func (s *Store) flushLocked(sync, force bool) error {
	if s.table == nil || s.mode == ModeMemory {
		return nil
	}
	if !force && !s.dirty {
		s.log.Debug("persistent cache is consistent with memory map")
		metrics.StoreFlushes.WithLabelValues("skipped").Inc()
		return nil
	}

	start := time.Now()
	commit := func() error { return s.commit(sync) }

	var err error
	if s.breaker != nil {
		err = s.breaker.Call(commit)
	} else {
		err = commit()
	}
	if err != nil {
		metrics.StoreFlushes.WithLabelValues("failed").Inc()
		return err
	}

	metrics.StoreFlushes.WithLabelValues("success").Inc()
	metrics.StoreFlushDuration.Observe(time.Since(start).Seconds())

	s.dirty = false
	s.invalidateUsage()
	s.emit(EventFlush)
	return nil
}

func (s *Store) commit(sync bool) error {
	if err := s.ensureDirs(); err != nil {
		return err
	}

	cacheFile := filepath.Join(s.basePath, CacheFileName)
	backupFile := filepath.Join(s.basePath, BackupFileName)

	// Persistence, not liveness, gates inclusion: expired entries are
	// written too and pruned explicitly.
	persistent := make(map[string]json.RawMessage, len(s.table))
	for k, e := range s.table {
		if !e.Persistent() {
			continue
		}
		raw, err := encodeEntry(e)
		if err != nil {
			return fmt.Errorf("encode entry %q: %w", k, err)
		}
		persistent[k] = raw
	}

	if len(persistent) == 0 {
		// Empty store: rotate the current file out to the backup name.
		// Absence of either file is not an error.
		if err := os.Remove(backupFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cache backup removal failed", "file", backupFile, "error", err)
		}
		if err := os.Rename(cacheFile, backupFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cache rotation failed", "file", cacheFile, "error", err)
		}
		return nil
	}

	payload, err := json.Marshal(persistent)
	if err != nil {
		return fmt.Errorf("encode cache table: %w", err)
	}

	w, err := atomicfile.New(cacheFile, s.tmpPath, sync)
	if err != nil {
		s.log.Error("temporary directory inaccessible", "dir", s.tmpPath, "error", err)
		return err
	}
	defer w.Abort()

	gz := gzip.NewWriter(w)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	// Rotate: drop the old backup, move the current file to the backup
	// name, then rename the staged file into place.
	if err := os.Remove(backupFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("cache backup removal failed", "file", backupFile, "error", err)
		return err
	}
	rotated := true
	if err := os.Rename(cacheFile, backupFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("cache file backup failed", "file", cacheFile, "error", err)
			return err
		}
		// First ever flush has no predecessor.
		rotated = false
	}

	if err := w.Commit(); err != nil {
		s.log.Error("could not install new cache file", "file", cacheFile, "error", err)
		if rotated {
			if rerr := os.Rename(backupFile, cacheFile); rerr != nil {
				s.log.Warn("cache file restoration failed", "file", cacheFile, "error", rerr)
			}
		}
		return err
	}

	s.log.Debug("persistent cache generated", "file", cacheFile)
	return nil
}

// ensureDirs creates the namespace directory and its temp subdirectory
// with owner/group-only permissions.
func (s *Store) ensureDirs() error {
	if err := os.MkdirAll(s.basePath, dirPerm); err != nil {
		s.log.Error("could not create store directory", "dir", s.basePath, "error", err)
		return fmt.Errorf("create store directory: %w", err)
	}
	if err := os.MkdirAll(s.tmpPath, dirPerm); err != nil {
		s.log.Error("could not create temp directory", "dir", s.tmpPath, "error", err)
		return fmt.Errorf("create temp directory: %w", err)
	}
	return nil
}
