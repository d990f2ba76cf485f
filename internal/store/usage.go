package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Files returns every file under the namespace directory. With
// excludeTemp set (the usual case) the backup file and everything
// under the temp subdirectory are skipped. Results are cached per
// exclusion mode until the next flush or blob write invalidates them.
// Nil after Close.
func (s *Store) Files(excludeTemp bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filesLocked(excludeTemp)
}

// Size returns the total on-disk size of the namespace in bytes,
// cached like Files. Always 0 in memory mode and after Close.
func (s *Store) Size(excludeTemp bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizeLocked(excludeTemp)
}

func (s *Store) filesLocked(excludeTemp bool) []string {
	if s.closed || s.mode == ModeMemory {
		return nil
	}
	if cached, ok := s.filesCache[excludeTemp]; ok {
		return cached
	}
	files := s.walkFiles(excludeTemp, "")
	s.filesCache[excludeTemp] = files
	return files
}

func (s *Store) sizeLocked(excludeTemp bool) int64 {
	if s.closed || s.mode == ModeMemory {
		return 0
	}
	if cached, ok := s.sizeCache[excludeTemp]; ok {
		return cached
	}
	var total int64
	for _, path := range s.filesLocked(excludeTemp) {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	s.sizeCache[excludeTemp] = total
	return total
}

// usedBytesExcluding computes current disk usage for the size-cap
// check on blob writes. Always a fresh walk: the cap decision cannot
// run on stale cached state. The blob being replaced, the backup file
// and temp artifacts do not count against the cap.
func (s *Store) usedBytesExcluding(key string) int64 {
	var total int64
	for _, path := range s.walkFiles(true, s.blobPath(key)) {
		if info, err := os.Stat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

// walkFiles lists regular files under the namespace directory,
// optionally excluding temp/backup artifacts and one specific path.
// An unreadable or missing directory yields an empty list.
func (s *Store) walkFiles(excludeTemp bool, excludePath string) []string {
	var files []string
	backup := filepath.Join(s.basePath, BackupFileName)

	filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if excludeTemp && path == s.tmpPath {
				return filepath.SkipDir
			}
			return nil
		}
		if excludeTemp && (path == backup || strings.HasPrefix(path, s.tmpPath+string(filepath.Separator))) {
			return nil
		}
		if excludePath != "" && path == excludePath {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files
}

// invalidateUsage drops the cached listing and size. Called at the two
// mutation points that change disk state: flush completion and blob
// writes/removals.
func (s *Store) invalidateUsage() {
	s.sizeCache = make(map[bool]int64)
	s.filesCache = make(map[bool][]string)
}
