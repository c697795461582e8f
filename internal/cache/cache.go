package cache

import (
	"github.com/ppiankov/stancedb/internal/model"
)

// Cache holds recently served stance records keyed by normalized name
type Cache interface {
	Get(key string) (*model.StanceRecord, bool)
	Set(key string, rec *model.StanceRecord)
}

// Key builds the cache key for a normalized name key. Callers pass the
// result to Get and Set.
func Key(nameKey string) string {
	return "stancedb:v1:" + nameKey
}

// Noop is a Cache that stores nothing
type Noop struct{}

func (Noop) Get(string) (*model.StanceRecord, bool) { return nil, false }
func (Noop) Set(string, *model.StanceRecord)        {}
