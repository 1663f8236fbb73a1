package embedding

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cache stores embeddings by key.
type Cache interface {
	Get(key string) ([]float32, bool)
	Put(key string, vector []float32)
}

// CacheKey identifies the embedding of text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// DefaultCacheDir returns the embedding cache directory, preferring XDG_CACHE_HOME.
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, "caselaw-go", "embeddings"), nil
	}

	// Fall back to ~/.cache
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}

	return filepath.Join(home, ".cache", "caselaw-go", "embeddings"), nil
}

// MemoryCache keeps embeddings for the life of the process.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
}

// NewMemoryCache returns an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]float32)}
}

// Get implements Cache.
func (c *MemoryCache) Get(key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put implements Cache.
func (c *MemoryCache) Put(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = vector
}

// cachedEmbedding is the on-disk form of one cache entry.
type cachedEmbedding struct {
	Vector   []float32 `json:"vector"`
	StoredAt time.Time `json:"stored_at"`
}

// DiskCache keeps one JSON file per embedding under a directory. Read and
// write errors are never fatal: a broken entry is a miss, and a failed write
// switches the cache to memory for the rest of the process.
type DiskCache struct {
	dir    string
	memory *MemoryCache
	logger *slog.Logger

	mu         sync.Mutex
	memoryOnly bool
}

// NewDiskCache returns a cache rooted at dir.
func NewDiskCache(dir string, logger *slog.Logger) *DiskCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiskCache{dir: dir, memory: NewMemoryCache(), logger: logger}
}

func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get implements Cache.
func (c *DiskCache) Get(key string) ([]float32, bool) {
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	if c.isMemoryOnly() {
		return nil, false
	}

	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Could not read embedding cache entry", "key", key, "error", err)
		}
		return nil, false
	}

	var entry cachedEmbedding
	if err := json.Unmarshal(data, &entry); err != nil || len(entry.Vector) == 0 {
		// Invalid cache file - treat as non-existent
		return nil, false
	}

	c.memory.Put(key, entry.Vector)
	return entry.Vector, true
}

// Put implements Cache.
func (c *DiskCache) Put(key string, vector []float32) {
	c.memory.Put(key, vector)
	if c.isMemoryOnly() {
		return
	}

	data, err := json.Marshal(cachedEmbedding{Vector: vector, StoredAt: time.Now().UTC()})
	if err != nil {
		c.logger.Warn("Could not marshal embedding cache entry", "error", err)
		return
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.fallback("create cache directory", err)
		return
	}
	if err := os.WriteFile(c.path(key), data, 0644); err != nil {
		c.fallback("write cache file", err)
	}
}

func (c *DiskCache) isMemoryOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memoryOnly
}

func (c *DiskCache) fallback(action string, err error) {
	c.mu.Lock()
	c.memoryOnly = true
	c.mu.Unlock()
	c.logger.Warn("Embedding cache falling back to memory", "action", action, "dir", c.dir, "error", err)
}
