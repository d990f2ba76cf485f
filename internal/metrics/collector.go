package metrics

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/onnwee/nstore/internal/logger"
)

// Collector periodically walks the storage root and refreshes the
// per-namespace disk usage gauges. It reads the filesystem directly
// instead of asking open stores, so namespaces nobody has opened this
// process still show up.
type Collector struct {
	root     string
	interval time.Duration
	stop     chan struct{}
}

// NewCollector creates a collector for the given storage root.
func NewCollector(root string, interval time.Duration) *Collector {
	return &Collector{
		root:     root,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the collection loop. Blocks until Stop or ctx ends.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.collect()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the collection loop.
func (c *Collector) Stop() {
	close(c.stop)
}

func (c *Collector) collect() {
	if c.root == "" {
		return
	}

	entries, err := os.ReadDir(c.root)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not scan storage root", "root", c.root, "error", err)
			CollectionErrors.WithLabelValues("scan").Inc()
		}
		NamespacesTotal.Set(0)
		return
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		count++
		files, bytes := c.measureNamespace(filepath.Join(c.root, entry.Name()))
		NamespaceFiles.WithLabelValues(entry.Name()).Set(float64(files))
		NamespaceDiskUsage.WithLabelValues(entry.Name()).Set(float64(bytes))
	}
	NamespacesTotal.Set(float64(count))
}

// measureNamespace counts the files and bytes under one namespace
// directory, temp artifacts included: the gauge reports what the disk
// actually holds.
func (c *Collector) measureNamespace(dir string) (int, int64) {
	var files int
	var bytes int64

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		files++
		if info, ierr := d.Info(); ierr == nil {
			bytes += info.Size()
		}
		return nil
	})
	if err != nil {
		CollectionErrors.WithLabelValues("walk").Inc()
	}
	return files, bytes
}
