package speech

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
)

const (
	audioSuffix = ".audio.zst"
	metaSuffix  = ".json"
)

// Cache stores synthesized narration on disk. Audio is zstd compressed and
// kept next to the JSON result it belongs to, both named after the request
// fingerprint.
type Cache struct {
	dir     string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	mu      sync.RWMutex
}

// CacheStats summarizes the cache contents
type CacheStats struct {
	Entries int
	Files   int
	Bytes   int64
}

func (s CacheStats) String() string {
	return fmt.Sprintf("%d entries, %d files, %s", s.Entries, s.Files, humanize.Bytes(uint64(s.Bytes)))
}

// OpenCache opens or creates a cache rooted at dir
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Cache{dir: dir, encoder: encoder, decoder: decoder}, nil
}

// Dir returns the cache root
func (c *Cache) Dir() string {
	return c.dir
}

// Close releases the compression resources
func (c *Cache) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// path returns the file for key with suffix, spread over subdirectories by
// the first two characters of the key
func (c *Cache) path(key, suffix string) string {
	return filepath.Join(c.dir, key[:2], key+suffix)
}

// Get returns the audio and result stored under key
func (c *Cache) Get(key string) ([]byte, *Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(key) < 2 {
		return nil, nil, false
	}

	meta, err := os.ReadFile(c.path(key, metaSuffix))
	if err != nil {
		return nil, nil, false
	}
	var result Result
	if err := json.Unmarshal(meta, &result); err != nil {
		return nil, nil, false
	}

	compressed, err := os.ReadFile(c.path(key, audioSuffix))
	if err != nil {
		return nil, nil, false
	}
	audio, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, nil, false
	}

	return audio, &result, true
}

// Put stores audio and its result under key
func (c *Cache) Put(key string, audio []byte, result *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(key) < 2 {
		return fmt.Errorf("invalid cache key %q", key)
	}

	meta, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache metadata: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path(key, "")), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := writeFileAtomic(c.path(key, audioSuffix), c.encoder.EncodeAll(audio, nil)); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	// Metadata goes last so a reader never sees it without its audio
	if err := writeFileAtomic(c.path(key, metaSuffix), meta); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Stats walks the cache and counts entries, files and bytes on disk
func (c *Cache) Stats() (CacheStats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var stats CacheStats
	err := filepath.WalkDir(c.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += info.Size()
		if strings.HasSuffix(path, metaSuffix) {
			stats.Entries++
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return stats, fmt.Errorf("failed to read cache: %w", err)
	}
	return stats, nil
}

// Clear removes every cache entry
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
