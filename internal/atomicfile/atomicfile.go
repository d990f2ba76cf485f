// Package atomicfile commits file contents with a write-to-temp,
// rename-into-place discipline. Rename is the only operation that
// touches the destination name, so readers observe either the old file
// or the new one, never a truncated in-between state.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// File is a pending write. Content is staged in a uniquely named
// temporary file until Commit renames it over the destination. Abort
// discards the staged content.
type File struct {
	tmp  *os.File
	path string
	sync bool
	done bool
}

// New stages a write to path using a temporary file inside tmpDir.
// tmpDir must live on the same filesystem as path for the final rename
// to be atomic. When syncAfter is set, Commit fsyncs the staged file
// and its parent directory before returning.
func New(path, tmpDir string, syncAfter bool) (*File, error) {
	tmp, err := os.CreateTemp(tmpDir, filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &File{tmp: tmp, path: path, sync: syncAfter}, nil
}

// Write appends to the staged content.
func (f *File) Write(p []byte) (int, error) {
	return f.tmp.Write(p)
}

// Name returns the path of the staging file.
func (f *File) Name() string {
	return f.tmp.Name()
}

// Commit closes the staged file and renames it over the destination.
// On failure the staging file is removed and the destination is left
// untouched.
func (f *File) Commit() error {
	if f.done {
		return nil
	}
	f.done = true

	if f.sync {
		if err := f.tmp.Sync(); err != nil {
			f.discard()
			return fmt.Errorf("sync temp file: %w", err)
		}
	}
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("rename into place: %w", err)
	}
	if f.sync {
		syncDir(filepath.Dir(f.path))
	}
	return nil
}

// Abort removes the staged file without touching the destination.
// Calling Abort after a successful Commit is a no-op, so it is safe to
// defer.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.discard()
}

func (f *File) discard() {
	f.tmp.Close()
	os.Remove(f.tmp.Name())
}

// syncDir makes the rename durable. Best effort: some filesystems do
// not support fsync on directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	d.Sync()
}
