package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/stancedb/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecord(variant model.Variant, name string, stance model.Stance, confidence int) *model.StanceRecord {
	return &model.StanceRecord{
		Variant:    variant,
		Name:       name,
		Category:   "Musician",
		Stance:     stance,
		Sources:    []string{"https://a.example/1", "https://b.example/2"},
		Confidence: confidence,
		Status:     model.StatusApproved,
	}
}

func TestSQLiteInsertAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := testRecord(model.VariantPerson, "Bella Hadid", model.StancePro, 85)
	rec.Summary = "Posted repeatedly in support of a ceasefire."

	stored, created, err := s.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, stored.ID)
	assert.False(t, stored.CreatedAt.IsZero())
	assert.Empty(t, rec.ID, "input record must not be mutated")

	got, err := s.FindByName(ctx, model.VariantPerson, "  BELLA hadid ")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, got.ID)
	assert.Equal(t, "Bella Hadid", got.Name)
	assert.Equal(t, model.StancePro, got.Stance)
	assert.Equal(t, rec.Sources, got.Sources)
	assert.Equal(t, rec.Summary, got.Summary)
	assert.Equal(t, stored.CreatedAt, got.CreatedAt)
}

func TestSQLiteFindMiss(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FindByName(context.Background(), model.VariantPerson, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteInsertExistingReturnsOriginal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, created, err := s.Insert(ctx, testRecord(model.VariantPerson, "Ada Lovelace", model.StancePro, 70))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.Insert(ctx, testRecord(model.VariantPerson, "ADA LOVELACE", model.StanceAgainst, 95))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.StancePro, second.Stance)
	assert.Equal(t, 70, second.Confidence)
}

func TestSQLiteSameNameAcrossVariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, created, err := s.Insert(ctx, testRecord(model.VariantPerson, "Apple", model.StanceNeutral, 50))
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = s.Insert(ctx, testRecord(model.VariantOrganization, "Apple", model.StanceNeutral, 50))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSQLiteInsertRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(r *model.StanceRecord)
		want   error
	}{
		{"empty name", func(r *model.StanceRecord) { r.Name = " " }, model.ErrEmptyName},
		{"one source", func(r *model.StanceRecord) { r.Sources = r.Sources[:1] }, model.ErrTooFewSources},
		{"bad stance", func(r *model.StanceRecord) { r.Stance = "maybe" }, model.ErrInvalidStance},
		{"confidence", func(r *model.StanceRecord) { r.Confidence = 101 }, model.ErrConfidenceRange},
		{"parent on person", func(r *model.StanceRecord) { r.ParentCompany = "Acme" }, model.ErrParentOnPersonOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord(model.VariantPerson, "Invalid Person", model.StancePro, 50)
			tt.mutate(rec)

			_, _, err := s.Insert(ctx, rec)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := s.FindByName(ctx, model.VariantPerson, "invalid person")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteConcurrentInsertCreatesOne(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]struct{})
	)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, ok, err := s.Insert(ctx, testRecord(model.VariantOrganization, "Acme Corp", model.StanceAgainst, 60))
			if err != nil {
				t.Errorf("insert: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if ok {
				created++
			}
			ids[rec.ID] = struct{}{}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
}

func TestSQLiteSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*model.StanceRecord{
		testRecord(model.VariantPerson, "Zoe Saldana", model.StanceNeutral, 40),
		testRecord(model.VariantPerson, "Bella Hadid", model.StancePro, 92),
		testRecord(model.VariantPerson, "Gal Gadot", model.StanceAgainst, 88),
		testRecord(model.VariantPerson, "100% Pure", model.StanceNeutral, 40),
	}
	pending := testRecord(model.VariantPerson, "Bella Pending", model.StancePro, 90)
	pending.Status = model.StatusPending
	seed = append(seed, pending)

	for _, rec := range seed {
		_, _, err := s.Insert(ctx, rec)
		require.NoError(t, err)
	}

	t.Run("substring on name, approved only", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantPerson, Query{Text: "BELLA", Status: model.StatusApproved})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Bella Hadid", got[0].Name)
	})

	t.Run("substring on category", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantPerson, Query{Text: "music", Status: model.StatusApproved})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("alphabetical", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantPerson, Query{Status: model.StatusApproved})
		require.NoError(t, err)
		assert.Equal(t, []string{"100% Pure", "Bella Hadid", "Gal Gadot", "Zoe Saldana"}, namesOf(got))
	})

	t.Run("wildcards are literal", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantPerson, Query{Text: "%"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "100% Pure", got[0].Name)

		got, err = s.Search(ctx, model.VariantPerson, Query{Text: "_"})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantPerson, Query{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("other variant empty", func(t *testing.T) {
		got, err := s.Search(ctx, model.VariantOrganization, Query{})
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

func TestSQLiteSearchOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(name string, confidence, sources int, featured bool) {
		rec := testRecord(model.VariantPerson, name, model.StancePro, confidence)
		rec.Featured = featured
		for i := len(rec.Sources); i < sources; i++ {
			rec.Sources = append(rec.Sources, "https://more.example/"+name+string(rune('a'+i)))
		}
		_, _, err := s.Insert(ctx, rec)
		require.NoError(t, err)
	}

	mk("Alpha", 80, 2, false)
	mk("Bravo", 80, 4, false)
	mk("Charlie", 95, 2, true)
	mk("Delta", 99, 2, false)

	got, err := s.Search(ctx, model.VariantPerson, Query{Order: OrderRanked})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"Charlie", "Delta", "Bravo", "Alpha"}, namesOf(got))

	got, err = s.Search(ctx, model.VariantPerson, Query{Order: OrderConfidence})
	require.NoError(t, err)
	assert.Equal(t, "Delta", got[0].Name)

	got, err = s.Search(ctx, model.VariantPerson, Query{FeaturedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Charlie"}, namesOf(got))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), model.StoreConfig{Driver: "postgres"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestOpenDefaultsToMemorySQLite(t *testing.T) {
	s, err := Open(context.Background(), model.StoreConfig{})
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
}

func namesOf(recs []model.StanceRecord) []string {
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Name
	}
	return names
}
