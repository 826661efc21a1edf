// Package cache stores per-file import references between runs so that
// unchanged files are not parsed again.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Cache provides file-based caching of extracted references. It is safe
// for concurrent use as long as each file is handled by one worker.
type Cache struct {
	dir     string
	ttl     time.Duration
	enabled bool
	variant string
}

// Entry represents a cached extraction result.
type Entry struct {
	Hash       string    `json:"hash"`
	Timestamp  time.Time `json:"timestamp"`
	References []string  `json:"references"`
}

// New creates a new cache instance. variant distinguishes extraction
// settings; entries written under one variant are never read under another.
func New(dir string, ttlHours int, enabled bool, variant string) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:     dir,
		ttl:     time.Duration(ttlHours) * time.Hour,
		enabled: true,
		variant: variant,
	}, nil
}

// Enabled reports whether the cache reads and writes entries.
func (c *Cache) Enabled() bool {
	return c != nil && c.enabled
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Lookup returns the cached references for path if its content is unchanged
// and the entry has not expired.
func (c *Cache) Lookup(path string, content []byte) ([]string, bool) {
	if !c.Enabled() {
		return nil, false
	}

	entryPath := c.keyPath(path)
	data, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	if entry.Hash != HashBytes(content) {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(entryPath)
		return nil, false
	}

	return entry.References, true
}

// Store records the references extracted from content at path.
func (c *Cache) Store(path string, content []byte, refs []string) error {
	if !c.Enabled() {
		return nil
	}

	if refs == nil {
		refs = []string{}
	}
	entry := Entry{
		Hash:       HashBytes(content),
		Timestamp:  time.Now(),
		References: refs,
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	dest := c.keyPath(path)
	tmp, err := os.CreateTemp(c.dir, ".entry-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.Enabled() {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a source path to an entry path.
func (c *Cache) keyPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := xxhash.Sum64String(c.variant + "\x00" + path)
	return filepath.Join(c.dir, strconv.FormatUint(sum, 16)+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.Enabled() {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}

	return stats, nil
}
