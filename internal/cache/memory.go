package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ppiankov/stancedb/internal/model"
)

// MemoryCache is an in-process TTL cache. It stores and returns copies so
// callers cannot mutate cached records.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(defaultTTL time.Duration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a record from the cache
func (c *MemoryCache) Get(key string) (*model.StanceRecord, bool) {
	val, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	rec, ok := val.(model.StanceRecord)
	if !ok {
		return nil, false
	}
	return clone(&rec), true
}

// Set stores rec under key with the default TTL
func (c *MemoryCache) Set(key string, rec *model.StanceRecord) {
	if rec == nil {
		return
	}
	c.cache.SetDefault(key, *clone(rec))
}

func clone(rec *model.StanceRecord) *model.StanceRecord {
	out := *rec
	out.Sources = append([]string(nil), rec.Sources...)
	return &out
}
