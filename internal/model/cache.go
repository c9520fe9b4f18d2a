package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"iacsift/internal/features"
	"iacsift/internal/logging"
)

// DefaultCacheTTL is how long a cached model score stays valid
const DefaultCacheTTL = 24 * time.Hour

type cacheEntry struct {
	Score    float64   `json:"score"`
	StoredAt time.Time `json:"stored_at"`
}

// Cached wraps a Model with a score cache keyed by the vector's canonical JSON.
// Errors are never cached. The cache can be persisted to a JSON file.
type Cached struct {
	inner     Model
	cacheFile string
	ttl       time.Duration
	entries   map[string]cacheEntry
	cacheLock sync.RWMutex
	saveLock  sync.Mutex
	now       func() time.Time
}

// NewCached wraps inner. An empty cacheFile keeps the cache in memory only.
func NewCached(inner Model, cacheFile string, ttl time.Duration) (*Cached, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	c := &Cached{
		inner:     inner,
		cacheFile: cacheFile,
		ttl:       ttl,
		entries:   make(map[string]cacheEntry),
		now:       time.Now,
	}

	if cacheFile != "" {
		if err := os.MkdirAll(filepath.Dir(cacheFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		if err := c.Load(); err != nil {
			logging.Error("Failed to load model cache", err, map[string]interface{}{
				"cache_file": cacheFile,
			})
		}
	}

	return c, nil
}

// Score implements Model
func (c *Cached) Score(ctx context.Context, v features.Vector) (float64, error) {
	key, err := cacheKey(v)
	if err != nil {
		return c.inner.Score(ctx, v)
	}

	if p, ok := c.get(key); ok {
		return p, nil
	}

	p, err := c.inner.Score(ctx, v)
	if err != nil {
		return 0, err
	}

	c.cacheLock.Lock()
	c.entries[key] = cacheEntry{Score: p, StoredAt: c.now()}
	c.cacheLock.Unlock()
	return p, nil
}

func (c *Cached) get(key string) (float64, bool) {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.now().Sub(entry.StoredAt) > c.ttl {
		return 0, false
	}
	return entry.Score, true
}

// Len returns the number of cached scores, expired ones included
func (c *Cached) Len() int {
	c.cacheLock.RLock()
	defer c.cacheLock.RUnlock()
	return len(c.entries)
}

// Load reads the cache file, dropping expired entries
func (c *Cached) Load() error {
	data, err := os.ReadFile(c.cacheFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache file: %w", err)
	}

	var stored map[string]cacheEntry
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to parse cache data: %w", err)
	}

	now := c.now()
	c.cacheLock.Lock()
	defer c.cacheLock.Unlock()
	for key, entry := range stored {
		if now.Sub(entry.StoredAt) <= c.ttl {
			c.entries[key] = entry
		}
	}
	return nil
}

// Save writes the live entries to the cache file
func (c *Cached) Save() error {
	if c.cacheFile == "" {
		return nil
	}

	c.saveLock.Lock()
	defer c.saveLock.Unlock()

	now := c.now()
	c.cacheLock.RLock()
	live := make(map[string]cacheEntry, len(c.entries))
	for k, entry := range c.entries {
		if now.Sub(entry.StoredAt) <= c.ttl {
			live[k] = entry
		}
	}
	c.cacheLock.RUnlock()

	data, err := json.Marshal(live)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	tempFile := c.cacheFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}

	if err := os.Rename(tempFile, c.cacheFile); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp cache file: %w", err)
	}

	logging.Debug("Model cache saved", map[string]interface{}{
		"cache_file": c.cacheFile,
		"entries":    len(live),
	})
	return nil
}

// cacheKey hashes the vector's JSON, which has sorted keys
func cacheKey(v features.Vector) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
