package lookup

import (
	"cmp"
	"slices"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/store"
)

// sortRecords orders recs the same way the store drivers do for o
func sortRecords(recs []model.StanceRecord, o store.Order) {
	slices.SortStableFunc(recs, func(a, b model.StanceRecord) int {
		switch o {
		case store.OrderRanked:
			if c := compareBool(b.Featured, a.Featured); c != 0 {
				return c
			}
			if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
				return c
			}
			if c := cmp.Compare(len(b.Sources), len(a.Sources)); c != 0 {
				return c
			}
		case store.OrderConfidence:
			if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
				return c
			}
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.NameKey(), b.NameKey())
	})
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
