// Package store persists stance records.
//
// Two logical collections (persons and organizations) are exposed through a
// single Store interface keyed by variant. Every driver enforces uniqueness of
// (variant, case-folded name) and validates records before writing them.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/stancedb/internal/model"
)

// Sentinel errors for store operations
var (
	ErrNotFound      = errors.New("store: record not found")
	ErrUnknownDriver = errors.New("store: unknown driver")
)

// Order selects how search results are sorted
type Order int

const (
	// OrderName sorts alphabetically by name
	OrderName Order = iota

	// OrderRanked sorts by featured desc, confidence desc, source count desc
	OrderRanked

	// OrderConfidence sorts by confidence desc, then newest first
	OrderConfidence
)

// Query filters a search over one variant
type Query struct {
	// Text is matched case-insensitively as a substring of name or category.
	// Empty matches every record.
	Text string

	Stance       model.Stance
	Status       model.Status
	FeaturedOnly bool
	Order        Order
	Limit        int
}

// Store is the persistence capability used by lookup and populate
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - FindByName returns ErrNotFound on miss.
// - Insert never creates a second record for the same (variant, name key);
//   when one exists it is returned unchanged with created=false.
// - Insert rejects records failing model.StanceRecord.Validate.
type Store interface {
	FindByName(ctx context.Context, variant model.Variant, key string) (*model.StanceRecord, error)
	Search(ctx context.Context, variant model.Variant, q Query) ([]model.StanceRecord, error)
	Insert(ctx context.Context, rec *model.StanceRecord) (*model.StanceRecord, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg model.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite", "sqlite3":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return NewSQLiteStore(dsn)

	case "mongo", "mongodb":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database)

	default:
		return nil, fmt.Errorf("%w: %s (supported: sqlite, mongo)", ErrUnknownDriver, cfg.Driver)
	}
}
