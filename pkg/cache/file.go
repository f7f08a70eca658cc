package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FileCache keeps one JSON file per key under dir, sharded into 256
// subdirectories by the first byte of the key's SHA-256. It is the default
// backend: records outlive the process, so a second build of the same
// component needs no network.
type FileCache struct {
	dir string
}

// fileEntry is the on-disk form. Key is stored so a shard collision reads
// as a miss instead of another key's data.
type fileEntry struct {
	Key       string     `json:"key"`
	Data      []byte     `json:"data"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewFileCache opens (and creates if needed) a cache rooted at dir.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get reads key. Corrupt and expired entries are removed and reported as
// misses.
func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e fileEntry
	if json.Unmarshal(raw, &e) != nil || (e.ExpiresAt != nil && time.Now().After(*e.ExpiresAt)) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if e.Key != key {
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes key atomically: readers see the old entry or the new one,
// never a partial file.
func (c *FileCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	e := fileEntry{Key: key, Data: data}
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		e.ExpiresAt = &exp
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return writeAtomic(c.path(key), raw)
}

// Delete removes key. A missing key is not an error.
func (c *FileCache) Delete(ctx context.Context, key string) error {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Clear removes every entry and the emptied shard directories, keeping dir
// itself. It returns the number of entries removed.
func (c *FileCache) Clear() (int, error) {
	shards, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, shard := range shards {
		path := filepath.Join(c.dir, shard.Name())
		if !shard.IsDir() {
			if os.Remove(path) == nil {
				n++
			}
			continue
		}
		files, err := os.ReadDir(path)
		if err != nil {
			return n, err
		}
		for _, f := range files {
			if os.Remove(filepath.Join(path, f.Name())) == nil {
				n++
			}
		}
		_ = os.Remove(path)
	}
	return n, nil
}

func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+".json")
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Hash returns the hex-encoded SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var _ Cache = (*FileCache)(nil)
