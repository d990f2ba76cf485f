package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestUsage_FilesAndSize(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t, "ns", Options{Root: root})

	s.Set("k", "v")
	s.Flush()
	s.WriteBytes("blob", []byte("0123456789"), false)

	files := s.Files(true)
	if len(files) != 2 {
		t.Fatalf("Expected cache file plus one blob, got %v", files)
	}
	for _, f := range files {
		if !strings.HasPrefix(f, filepath.Join(root, "ns")) {
			t.Errorf("Expected file under the namespace directory, got %q", f)
		}
	}

	size := s.Size(true)
	if size < 10 {
		t.Errorf("Expected size to cover at least the blob bytes, got %d", size)
	}
}

func TestUsage_MemoryModeIsEmpty(t *testing.T) {
	s := newTestStore(t, "ns", Options{})
	s.Set("k", "v")

	if files := s.Files(true); files != nil {
		t.Errorf("Expected no files in memory mode, got %v", files)
	}
	if size := s.Size(true); size != 0 {
		t.Errorf("Expected zero size in memory mode, got %d", size)
	}
}

func TestUsage_ExcludesBackupAndTemp(t *testing.T) {
	root := t.TempDir()
	s := newTestStore(t, "ns", Options{Root: root})

	s.Set("gen", 1)
	s.Flush()
	s.Set("gen", 2)
	s.Flush()

	// Second flush rotated a backup into place; leave a stray temp file
	// behind too.
	if _, err := os.Stat(filepath.Join(root, "ns", BackupFileName)); err != nil {
		t.Fatalf("Expected backup file: %v", err)
	}
	stray := filepath.Join(root, "ns", TempDirName, "leftover")
	if err := os.WriteFile(stray, []byte("x"), 0o660); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	excluded := s.Files(true)
	for _, f := range excluded {
		if strings.Contains(f, BackupFileName) || strings.Contains(f, TempDirName) {
			t.Errorf("Expected backup and temp artifacts to be excluded, got %q", f)
		}
	}

	all := s.Files(false)
	if len(all) <= len(excluded) {
		t.Errorf("Expected unfiltered listing to be larger: %d vs %d", len(all), len(excluded))
	}
	if s.Size(false) <= s.Size(true) {
		t.Error("Expected unfiltered size to be larger")
	}
}

func TestUsage_CacheInvalidatedByWrites(t *testing.T) {
	s := newTestStore(t, "ns", Options{Root: t.TempDir()})

	s.WriteBytes("a", make([]byte, 100), false)
	before := s.Size(true)

	s.WriteBytes("b", make([]byte, 100), false)
	after := s.Size(true)
	if after <= before {
		t.Errorf("Expected size to grow after a new blob: %d then %d", before, after)
	}

	s.Remove("a")
	if final := s.Size(true); final >= after {
		t.Errorf("Expected size to shrink after Remove: %d then %d", after, final)
	}
}

func TestUsage_MissingDirectoryIsEmpty(t *testing.T) {
	s := newTestStore(t, "ns", Options{Root: t.TempDir()})
	if files := s.Files(true); len(files) != 0 {
		t.Errorf("Expected no files before the first write, got %v", files)
	}
	if size := s.Size(true); size != 0 {
		t.Errorf("Expected zero size before the first write, got %d", size)
	}
}
