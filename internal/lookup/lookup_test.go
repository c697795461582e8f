package lookup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stancedb/internal/model"
	"github.com/ppiankov/stancedb/internal/normalize"
	"github.com/ppiankov/stancedb/internal/store"
)

func newService(t *testing.T, recs ...*model.StanceRecord) (*Service, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	for _, rec := range recs {
		_, _, err := s.Insert(context.Background(), rec)
		require.NoError(t, err)
	}
	return New(s, 0), s
}

func rec(variant model.Variant, name, category string, stance model.Stance, confidence int) *model.StanceRecord {
	return &model.StanceRecord{
		Variant:    variant,
		Name:       name,
		Category:   category,
		Stance:     stance,
		Sources:    []string{"https://one.example", "https://two.example"},
		Confidence: confidence,
		Status:     model.StatusApproved,
		Featured:   model.IsFeatured(stance, confidence, 90),
	}
}

func names(recs []model.StanceRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Name
	}
	return out
}

func TestSearchPersonsThenOrganizations(t *testing.T) {
	svc, _ := newService(t,
		rec(model.VariantOrganization, "Apple", "Technology", model.StanceNeutral, 50),
		rec(model.VariantPerson, "Zapple Artist", "Musician", model.StancePro, 70),
		rec(model.VariantPerson, "Applewhite", "Actor", model.StanceAgainst, 70),
		rec(model.VariantOrganization, "Banana Co", "Apple Farming", model.StancePro, 70),
	)

	got, err := svc.Search(context.Background(), "APPLE")
	require.NoError(t, err)
	assert.Equal(t, []string{"Applewhite", "Zapple Artist", "Apple", "Banana Co"}, names(got))
}

func TestSearchBlankQuery(t *testing.T) {
	svc := New(failingStore{}, 0)

	got, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchExcludesUnapproved(t *testing.T) {
	pending := rec(model.VariantPerson, "Pending Person", "Actor", model.StancePro, 80)
	pending.Status = model.StatusPending

	svc, _ := newService(t, pending)

	got, err := svc.Search(context.Background(), "pending")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchLimitPerVariant(t *testing.T) {
	var recs []*model.StanceRecord
	for _, n := range []string{"Sam A", "Sam B", "Sam C"} {
		recs = append(recs, rec(model.VariantPerson, n, "Actor", model.StancePro, 50))
		recs = append(recs, rec(model.VariantOrganization, n+" Inc", "Retail", model.StancePro, 50))
	}
	_, s := newService(t, recs...)
	svc := New(s, 2)

	got, err := svc.Search(context.Background(), "sam")
	require.NoError(t, err)
	assert.Equal(t, []string{"Sam A", "Sam B", "Sam A Inc", "Sam B Inc"}, names(got))
}

func TestSearchStoreError(t *testing.T) {
	svc := New(failingStore{}, 0)

	_, err := svc.Search(context.Background(), "x")
	assert.ErrorIs(t, err, errBoom)
}

func TestExactPrefersPerson(t *testing.T) {
	svc, _ := newService(t,
		rec(model.VariantOrganization, "Jordan", "Apparel", model.StanceNeutral, 50),
		rec(model.VariantPerson, "Jordan", "Athlete", model.StancePro, 60),
	)

	name, err := normalize.Normalize("  jORDAN ")
	require.NoError(t, err)

	got, err := svc.Exact(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, model.VariantPerson, got.Variant)
}

func TestExactFallsBackToOrganization(t *testing.T) {
	svc, _ := newService(t, rec(model.VariantOrganization, "Acme Corp", "Retail", model.StanceAgainst, 60))

	name, err := normalize.Normalize("acme corp")
	require.NoError(t, err)

	got, err := svc.Exact(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", got.Name)
}

func TestExactIsNotSubstring(t *testing.T) {
	svc, _ := newService(t, rec(model.VariantPerson, "Bella Hadid", "Model", model.StancePro, 85))

	name, err := normalize.Normalize("bella")
	require.NoError(t, err)

	_, err = svc.Exact(context.Background(), name)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExactStoreError(t *testing.T) {
	svc := New(failingStore{}, 0)

	_, err := svc.Exact(context.Background(), normalize.Name{Key: "x", Display: "X"})
	assert.ErrorIs(t, err, errBoom)
}

func TestTopRanking(t *testing.T) {
	more := rec(model.VariantOrganization, "More Sources", "Retail", model.StancePro, 80)
	more.Sources = append(more.Sources, "https://three.example")

	svc, _ := newService(t,
		rec(model.VariantPerson, "Plain", "Actor", model.StancePro, 80),
		more,
		rec(model.VariantPerson, "Star", "Actor", model.StancePro, 95),
		rec(model.VariantOrganization, "Highest Unfeatured", "Retail", model.StancePro, 89),
		rec(model.VariantPerson, "Opponent", "Actor", model.StanceAgainst, 99),
	)

	got, err := svc.Top(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Star", "Highest Unfeatured", "More Sources"}, names(got))
}

func TestFeaturedOrder(t *testing.T) {
	older := rec(model.VariantPerson, "Older", "Actor", model.StancePro, 95)
	older.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := rec(model.VariantOrganization, "Newer", "Retail", model.StancePro, 95)
	newer.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	svc, _ := newService(t,
		older,
		newer,
		rec(model.VariantPerson, "Best", "Actor", model.StancePro, 99),
		rec(model.VariantPerson, "Not Featured", "Actor", model.StancePro, 80),
	)

	got, err := svc.Featured(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"Best", "Newer", "Older"}, names(got))
}

func TestFeaturedFallsBackToTop(t *testing.T) {
	svc, _ := newService(t,
		rec(model.VariantPerson, "Low", "Actor", model.StancePro, 40),
		rec(model.VariantPerson, "High", "Actor", model.StancePro, 70),
		rec(model.VariantPerson, "Against", "Actor", model.StanceAgainst, 95),
	)

	got, err := svc.Featured(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"High", "Low"}, names(got))
}

var errBoom = errors.New("boom")

type failingStore struct{}

func (failingStore) FindByName(context.Context, model.Variant, string) (*model.StanceRecord, error) {
	return nil, errBoom
}

func (failingStore) Search(context.Context, model.Variant, store.Query) ([]model.StanceRecord, error) {
	return nil, errBoom
}

func (failingStore) Insert(context.Context, *model.StanceRecord) (*model.StanceRecord, bool, error) {
	return nil, false, errBoom
}

func (failingStore) Ping(context.Context) error { return errBoom }
func (failingStore) Close() error               { return nil }
