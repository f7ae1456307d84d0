package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache implements a file-based cache for CLI usage.
// Each entry is a JSON file holding the data and its expiry, so results
// survive between short-lived CLI invocations.
type FileCache struct {
	dir  string
	opts Options
	counters
}

// NewFileCache creates a file-based cache in the given directory.
// The directory will be created if it doesn't exist.
func NewFileCache(dir string, opts Options) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir, opts: opts.withDefaults()}, nil
}

type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, ok := c.load(ctx, key)
	if !ok {
		c.misses.Add(1)
		c.opts.Hooks.OnCacheMiss(ctx, keyType(key))
		return nil, false, nil
	}
	c.hits.Add(1)
	c.opts.Hooks.OnCacheHit(ctx, keyType(key))
	return entry.Data, true, nil
}

// load reads and validates an entry, removing it when corrupt or expired.
func (c *FileCache) load(ctx context.Context, key string) (fileEntry, bool) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.opts.Logger.Warn("file cache read failed", "key", key, "error", err)
		}
		return fileEntry{}, false
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.Key != key {
		_ = os.Remove(path)
		return fileEntry{}, false
	}

	if !entry.ExpiresAt.IsZero() && !c.opts.Clock().Before(entry.ExpiresAt) {
		_ = os.Remove(path)
		c.evictions.Add(1)
		c.opts.Hooks.OnCacheEvict(ctx, keyType(key))
		return fileEntry{}, false
	}
	return entry, true
}

func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := fileEntry{Key: key, Data: data}
	if d := c.opts.resolveTTL(key, ttl); d > 0 {
		entry.ExpiresAt = c.opts.Clock().Add(d)
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	// Write then rename so concurrent readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	_, err = tmp.Write(entryData)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	c.sets.Add(1)
	c.opts.Hooks.OnCacheSet(ctx, keyType(key), len(data))
	return nil
}

func (c *FileCache) Delete(ctx context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil {
		c.deletes.Add(1)
	}
	return err
}

func (c *FileCache) Has(ctx context.Context, key string) bool {
	_, ok := c.load(ctx, key)
	return ok
}

// Metrics reports this process's counters. Size is not tracked.
func (c *FileCache) Metrics() Metrics {
	return c.snapshot(0)
}

// Clear removes every entry in the cache directory.
func (c *FileCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Close does nothing for file cache.
func (c *FileCache) Close() error {
	return nil
}

// path converts a cache key to a file path.
// The first two hash characters pick a subdirectory to keep directories small.
func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}

var _ Cache = (*FileCache)(nil)
