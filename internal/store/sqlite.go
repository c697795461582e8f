package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/ppiankov/stancedb/internal/model"
)

// SQLiteStore is the embedded SQLite-backed store.
// Both variants live in one table tagged by the variant column.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stance_records (
    id TEXT PRIMARY KEY,
    variant TEXT NOT NULL,
    name TEXT NOT NULL,
    name_key TEXT NOT NULL,
    category TEXT NOT NULL,
    category_key TEXT NOT NULL,
    stance TEXT NOT NULL,
    sources TEXT NOT NULL,
    source_count INTEGER NOT NULL,
    confidence INTEGER NOT NULL,
    status TEXT NOT NULL,
    featured INTEGER NOT NULL DEFAULT 0,
    summary TEXT NOT NULL DEFAULT '',
    parent_company TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    UNIQUE (variant, name_key)
);

CREATE INDEX IF NOT EXISTS idx_stance_records_stance ON stance_records(variant, stance);
CREATE INDEX IF NOT EXISTS idx_stance_records_status ON stance_records(variant, status);
CREATE INDEX IF NOT EXISTS idx_stance_records_rank ON stance_records(variant, featured, confidence);
`

const sqliteColumns = `id, variant, name, category, stance, sources, confidence, status,
	featured, summary, parent_company, created_at, updated_at`

// NewSQLiteStore opens (or creates) the database at dsn.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every pooled connection to ":memory:" would get its own empty database
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindByName returns the record of the given variant whose name key matches
func (s *SQLiteStore) FindByName(ctx context.Context, variant model.Variant, key string) (*model.StanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByName(ctx, variant, key)
}

func (s *SQLiteStore) findByName(ctx context.Context, variant model.Variant, key string) (*model.StanceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM stance_records WHERE variant = ? AND name_key = ?`,
		string(variant), model.NameKey(key))

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s %q: %w", variant, key, err)
	}
	return rec, nil
}

// Search returns records of one variant matching q
func (s *SQLiteStore) Search(ctx context.Context, variant model.Variant, q Query) ([]model.StanceRecord, error) {
	where := []string{"variant = ?"}
	args := []any{string(variant)}

	if text := strings.ToLower(strings.TrimSpace(q.Text)); text != "" {
		pattern := "%" + escapeLike(text) + "%"
		where = append(where, `(name_key LIKE ? ESCAPE '\' OR category_key LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if q.Stance != "" {
		where = append(where, "stance = ?")
		args = append(args, string(q.Stance))
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.FeaturedOnly {
		where = append(where, "featured = 1")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit)

	query := `SELECT ` + sqliteColumns + ` FROM stance_records WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + sqliteOrderBy(q.Order) + ` LIMIT ?`

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", variant, err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]model.StanceRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", variant, err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", variant, err)
	}

	return records, nil
}

// Insert stores rec unless a record with the same variant and name key exists,
// in which case the existing record is returned with created=false.
func (s *SQLiteStore) Insert(ctx context.Context, rec *model.StanceRecord) (*model.StanceRecord, bool, error) {
	if err := rec.Validate(); err != nil {
		return nil, false, err
	}

	stored := prepareInsert(rec)

	sourcesJSON, err := json.Marshal(stored.Sources)
	if err != nil {
		return nil, false, fmt.Errorf("marshal sources: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO stance_records (id, variant, name, name_key, category, category_key,
			stance, sources, source_count, confidence, status, featured, summary,
			parent_company, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(variant, name_key) DO NOTHING
	`, stored.ID, string(stored.Variant), stored.Name, stored.NameKey(),
		stored.Category, strings.ToLower(stored.Category), string(stored.Stance),
		string(sourcesJSON), len(stored.Sources), stored.Confidence, string(stored.Status),
		boolToInt(stored.Featured), stored.Summary, stored.ParentCompany,
		stored.CreatedAt.UnixMilli(), stored.UpdatedAt.UnixMilli())
	if err != nil {
		return nil, false, fmt.Errorf("insert %s %q: %w", stored.Variant, stored.Name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert %s %q: %w", stored.Variant, stored.Name, err)
	}
	if affected == 0 {
		existing, err := s.findByName(ctx, stored.Variant, stored.NameKey())
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return stored, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.StanceRecord, error) {
	var (
		rec         model.StanceRecord
		variant     string
		stance      string
		status      string
		sourcesJSON string
		featured    int
		createdAt   int64
		updatedAt   int64
	)

	err := row.Scan(&rec.ID, &variant, &rec.Name, &rec.Category, &stance, &sourcesJSON,
		&rec.Confidence, &status, &featured, &rec.Summary, &rec.ParentCompany,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(sourcesJSON), &rec.Sources); err != nil {
		return nil, fmt.Errorf("unmarshal sources: %w", err)
	}

	rec.Variant = model.Variant(variant)
	rec.Stance = model.Stance(stance)
	rec.Status = model.Status(status)
	rec.Featured = featured == 1
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &rec, nil
}

func sqliteOrderBy(o Order) string {
	switch o {
	case OrderRanked:
		return "featured DESC, confidence DESC, source_count DESC, name_key ASC"
	case OrderConfidence:
		return "confidence DESC, created_at DESC, name_key ASC"
	default:
		return "name_key ASC"
	}
}

// escapeLike escapes LIKE wildcards so user text matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// prepareInsert copies rec and fills the ID and timestamps when unset
func prepareInsert(rec *model.StanceRecord) *model.StanceRecord {
	stored := *rec
	stored.Sources = append([]string(nil), rec.Sources...)

	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	return &stored
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
