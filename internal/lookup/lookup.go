// Package lookup answers read-only queries against the stance store.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/normalize"
	"github.com/ppiankov/stancedb/internal/store"
)

// DefaultSearchLimit caps search results per variant
const DefaultSearchLimit = 25

// Service queries both variants of the store
type Service struct {
	store       store.Store
	searchLimit int
}

// New creates a lookup service. A non-positive searchLimit uses DefaultSearchLimit.
func New(s store.Store, searchLimit int) *Service {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Service{store: s, searchLimit: searchLimit}
}

// Search returns approved records whose name or category contains query,
// persons first then organizations, each alphabetical by name.
// A blank query returns an empty slice without touching the store.
func (s *Service) Search(ctx context.Context, query string) ([]model.StanceRecord, error) {
	results := make([]model.StanceRecord, 0)

	query = strings.TrimSpace(query)
	if query == "" {
		return results, nil
	}

	for _, variant := range model.Variants {
		recs, err := s.store.Search(ctx, variant, store.Query{
			Text:   query,
			Status: model.StatusApproved,
			Order:  store.OrderName,
			Limit:  s.searchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", variant, err)
		}
		results = append(results, recs...)
	}

	return results, nil
}

// Exact finds the record whose name key equals name.Key, checking persons
// before organizations. Returns store.ErrNotFound on miss.
func (s *Service) Exact(ctx context.Context, name normalize.Name) (*model.StanceRecord, error) {
	for _, variant := range model.Variants {
		rec, err := s.store.FindByName(ctx, variant, name.Key)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, store.ErrNotFound
}

// Top returns approved pro records ranked by featured, confidence and
// number of sources across both variants.
func (s *Service) Top(ctx context.Context, limit int) ([]model.StanceRecord, error) {
	return s.merged(ctx, store.Query{
		Stance: model.StancePro,
		Status: model.StatusApproved,
		Order:  store.OrderRanked,
		Limit:  limit,
	})
}

// Featured returns approved featured pro records by confidence then recency.
// Falls back to Top when nothing is featured.
func (s *Service) Featured(ctx context.Context, limit int) ([]model.StanceRecord, error) {
	recs, err := s.merged(ctx, store.Query{
		Stance:       model.StancePro,
		Status:       model.StatusApproved,
		FeaturedOnly: true,
		Order:        store.OrderConfidence,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		return recs, nil
	}
	return s.Top(ctx, limit)
}

// merged runs q against every variant and merges the results in q.Order,
// truncated to q.Limit.
func (s *Service) merged(ctx context.Context, q store.Query) ([]model.StanceRecord, error) {
	var lists [][]model.StanceRecord
	for _, variant := range model.Variants {
		recs, err := s.store.Search(ctx, variant, q)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", variant, err)
		}
		lists = append(lists, recs)
	}

	merged := make([]model.StanceRecord, 0)
	for _, l := range lists {
		merged = append(merged, l...)
	}
	sortRecords(merged, q.Order)

	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	return merged, nil
}
