package tle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	cachePrefix    = "tle_"
	cacheSuffix    = ".txt.zst"
	legacySuffix   = ".txt"
	defaultMaxKept = 5
)

// Cache manages zstd-compressed element-set snapshots on disk.
// Uncompressed .txt snapshots left by older versions are still readable.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = defaultMaxKept
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write compresses data into a timestamped file and prunes old files beyond maxFiles.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(data, make([]byte, 0, len(data)/4))
	enc.Close()

	path := filepath.Join(c.dir, fmt.Sprintf("%s%d%s", cachePrefix, ts.Unix(), cacheSuffix))
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest reads the newest snapshot by the timestamp in its filename.
// Returns the decompressed data, the timestamp, and any error.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, fmt.Errorf("no cache files found in %s", c.dir)
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(filepath.Join(c.dir, latest.name))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	if !latest.compressed {
		return data, latest.ts, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("decompressing %s: %w", latest.name, err)
	}
	return out, latest.ts, nil
}

type cacheFile struct {
	name       string
	ts         time.Time
	compressed bool
}

func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, cachePrefix) {
			continue
		}
		var tsStr string
		var compressed bool
		switch {
		case strings.HasSuffix(name, cacheSuffix):
			tsStr = strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), cacheSuffix)
			compressed = true
		case strings.HasSuffix(name, legacySuffix):
			tsStr = strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), legacySuffix)
		default:
			continue
		}
		unix, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0), compressed: compressed})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}
