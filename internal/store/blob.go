package store

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/onnwee/nstore/internal/atomicfile"
	"github.com/onnwee/nstore/internal/metrics"
)

// blobExt is appended to blob keys to form their filename under the
// namespace directory.
const blobExt = ".dat"

func (s *Store) blobPath(key string) string {
	return filepath.Join(s.basePath, key+blobExt)
}

func (s *Store) blobCacheKey(key string, compressed bool) string {
	if compressed {
		return s.namespace + "/" + key + "#gz"
	}
	return s.namespace + "/" + key
}

// Write stores the bytes produced by r as the blob named key,
// optionally gzip-compressed. The write fails with ErrTooLarge, before
// touching disk, when the stored bytes plus everything else in the
// namespace (excluding the blob being replaced) would exceed the size
// cap. The commit uses the same temp-file plus rename discipline as
// the cache flush; blobs are independent files, so no backup rotation.
func (s *Store) Write(key string, r io.Reader, compress bool) error {
	if !ValidToken(key) {
		return fmt.Errorf("%w: key %q", ErrInvalidToken, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.mode == ModeMemory {
		return ErrMemoryMode
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBlob+1))
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	if int64(len(data)) > s.maxBlob {
		metrics.BlobWrites.WithLabelValues("too_large").Inc()
		return fmt.Errorf("%w: content larger than %d bytes", ErrTooLarge, s.maxBlob)
	}

	if compress {
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(data); err != nil {
			return fmt.Errorf("compress content: %w", err)
		}
		if err := gz.Close(); err != nil {
			return fmt.Errorf("compress content: %w", err)
		}
		data = buf.Bytes()
	}

	if used := s.usedBytesExcluding(key); int64(len(data))+used > s.maxBlob {
		s.log.Error("content exceeds allowable maximum size",
			"max_kb", s.maxBlob/1024, "key", key)
		metrics.BlobWrites.WithLabelValues("too_large").Inc()
		return fmt.Errorf("%w: namespace would exceed %d bytes", ErrTooLarge, s.maxBlob)
	}

	if err := s.ensureDirs(); err != nil {
		metrics.BlobWrites.WithLabelValues("failed").Inc()
		return err
	}

	w, err := atomicfile.New(s.blobPath(key), s.tmpPath, s.sync)
	if err != nil {
		metrics.BlobWrites.WithLabelValues("failed").Inc()
		return err
	}
	defer w.Abort()

	if _, err := w.Write(data); err != nil {
		metrics.BlobWrites.WithLabelValues("failed").Inc()
		return fmt.Errorf("write content: %w", err)
	}
	if err := w.Commit(); err != nil {
		metrics.BlobWrites.WithLabelValues("failed").Inc()
		return err
	}

	s.invalidateUsage()
	s.dropCachedBlob(key)
	metrics.BlobWrites.WithLabelValues("success").Inc()
	return nil
}

// WriteBytes is Write for an in-memory byte slice.
func (s *Store) WriteBytes(key string, data []byte, compress bool) error {
	return s.Write(key, bytes.NewReader(data), compress)
}

// WriteString is Write for a string.
func (s *Store) WriteString(key string, data string, compress bool) error {
	return s.Write(key, strings.NewReader(data), compress)
}

// Read returns the content of the blob named key, decompressing when
// compressed is set. Absence and unreadable files are "not present",
// reported as nil bytes with a nil error; only an invalid key token is
// an error. At most the configured size cap is read.
func (s *Store) Read(key string, compressed bool) ([]byte, error) {
	if !ValidToken(key) {
		return nil, fmt.Errorf("%w: key %q", ErrInvalidToken, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.mode == ModeMemory {
		return nil, nil
	}

	if s.blobs != nil {
		if data, ok := s.blobs.Get(s.blobCacheKey(key, compressed)); ok {
			metrics.BlobReads.WithLabelValues("cached").Inc()
			return data, nil
		}
	}

	f, err := os.Open(s.blobPath(key))
	if err != nil {
		s.log.Debug("blob not readable", "key", key, "error", err)
		metrics.BlobReads.WithLabelValues("miss").Inc()
		return nil, nil
	}
	defer f.Close()

	var r io.Reader = io.LimitReader(f, s.maxBlob)
	if compressed {
		gz, err := gzip.NewReader(r)
		if err != nil {
			s.log.Debug("blob not decompressible", "key", key, "error", err)
			metrics.BlobReads.WithLabelValues("miss").Inc()
			return nil, nil
		}
		defer gz.Close()
		r = io.LimitReader(gz, s.maxBlob)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		s.log.Debug("blob not readable", "key", key, "error", err)
		metrics.BlobReads.WithLabelValues("miss").Inc()
		return nil, nil
	}

	if s.blobs != nil {
		s.blobs.Set(s.blobCacheKey(key, compressed), data, 0)
	}
	metrics.BlobReads.WithLabelValues("hit").Inc()
	return data, nil
}

// OpenFile returns a raw handle to the blob named key, opened with the
// given os.OpenFile flags. The handle is caller-owned but also tracked
// by the store, so handles still open at Close are closed then.
// Opening a missing blob for reading fails with os.ErrNotExist.
func (s *Store) OpenFile(key string, flag int) (*os.File, error) {
	if !ValidToken(key) {
		return nil, fmt.Errorf("%w: key %q", ErrInvalidToken, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.mode == ModeMemory {
		return nil, ErrMemoryMode
	}

	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 {
		if err := s.ensureDirs(); err != nil {
			return nil, err
		}
	}

	f, err := os.OpenFile(s.blobPath(key), flag, filePerm)
	if err != nil {
		return nil, fmt.Errorf("open blob %q: %w", key, err)
	}
	s.handles[f] = struct{}{}
	s.dropCachedBlob(key)
	return f, nil
}

// Remove deletes the blob named key. A missing blob is a not-found
// error.
func (s *Store) Remove(key string) error {
	if !ValidToken(key) {
		return fmt.Errorf("%w: key %q", ErrInvalidToken, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.mode == ModeMemory {
		return fmt.Errorf("%w: blob %q", ErrKeyNotFound, key)
	}

	if err := os.Remove(s.blobPath(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: blob %q", ErrKeyNotFound, key)
		}
		return fmt.Errorf("remove blob %q: %w", key, err)
	}

	s.invalidateUsage()
	s.dropCachedBlob(key)
	return nil
}

// Clear performs a full namespace reset: every blob, the cache file,
// its backup and the temp directory are removed, and the in-memory
// table starts over empty.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.table = make(map[string]*Entry)
	s.dirty = false

	if s.mode != ModeMemory {
		if err := os.RemoveAll(s.basePath); err != nil {
			s.log.Error("could not clear namespace directory", "dir", s.basePath, "error", err)
			return fmt.Errorf("clear namespace: %w", err)
		}
	}

	s.invalidateUsage()
	if s.blobs != nil {
		s.blobs.Clear()
	}
	s.emit(EventClear)
	return nil
}

func (s *Store) dropCachedBlob(key string) {
	if s.blobs == nil {
		return
	}
	s.blobs.Delete(s.blobCacheKey(key, false))
	s.blobs.Delete(s.blobCacheKey(key, true))
}
