// Package store provides a SQLite-backed search counter collection. It mirrors
// the remote document store: documents have opaque ids and movie_id carries no
// uniqueness constraint.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/handsomefox/moviescope/internal/counters"

	_ "modernc.org/sqlite"
)

const (
	memoryPath = ":memory:"
	// Fixed-width so created_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type Store struct {
	sqldb *sql.DB
	db    *bun.DB
}

var _ counters.Documents = (*Store)(nil)

type SearchCounter struct {
	bun.BaseModel `bun:"table:search_counters,alias:sc"`

	ID         string `bun:"id,pk"`
	MovieID    int64  `bun:"movie_id,notnull"`
	Title      string `bun:"title,notnull"`
	PosterURL  string `bun:"poster_url,notnull"`
	SearchTerm string `bun:"search_term,notnull"`
	Count      int64  `bun:"count,notnull"`
	CreatedAt  string `bun:"created_at,notnull"`
	UpdatedAt  string `bun:"updated_at,notnull"`
}

func (sc *SearchCounter) toCounter() counters.Counter {
	return counters.Counter{
		ID:         sc.ID,
		MovieID:    sc.MovieID,
		Title:      sc.Title,
		PosterURL:  sc.PosterURL,
		SearchTerm: sc.SearchTerm,
		Count:      sc.Count,
	}
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("DB_PATH is required")
	}

	if dbPath != memoryPath {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}

	sqldb, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	sqldb.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := sqldb.PingContext(ctx); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("ping db: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	if err := initSchema(ctx, sqldb); err != nil {
		if cerr := sqldb.Close(); cerr != nil {
			return nil, fmt.Errorf("init schema: %w; close failed: %w", err, cerr)
		}
		return nil, err
	}

	bdb := bun.NewDB(sqldb, sqlitedialect.New())
	return &Store{sqldb: sqldb, db: bdb}, nil
}

func (s *Store) Close() error { return s.sqldb.Close() }

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS search_counters (
	id TEXT PRIMARY KEY,
	movie_id INTEGER NOT NULL,
	title TEXT NOT NULL,
	poster_url TEXT NOT NULL,
	search_term TEXT NOT NULL DEFAULT '',
	count INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_counters_movie ON search_counters(movie_id);
CREATE INDEX IF NOT EXISTS idx_search_counters_count ON search_counters(count);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// EnsureSession has no session to open locally; it checks the database is alive.
func (s *Store) EnsureSession(ctx context.Context) error {
	return s.sqldb.PingContext(ctx)
}

func (s *Store) FindByMovieID(ctx context.Context, movieID int64) ([]counters.Counter, error) {
	var rows []SearchCounter
	err := s.db.NewSelect().
		Model(&rows).
		Where("movie_id = ?", movieID).
		OrderExpr("rowid ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toCounters(rows), nil
}

func (s *Store) ListByCountDesc(ctx context.Context, limit int) ([]counters.Counter, error) {
	if limit <= 0 {
		return []counters.Counter{}, nil
	}
	var rows []SearchCounter
	err := s.db.NewSelect().
		Model(&rows).
		OrderExpr("count DESC").
		OrderExpr("rowid ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toCounters(rows), nil
}

func (s *Store) Create(ctx context.Context, c counters.Counter) error {
	now := time.Now().UTC().Format(timeLayout)
	row := SearchCounter{
		ID:         c.ID,
		MovieID:    c.MovieID,
		Title:      c.Title,
		PosterURL:  c.PosterURL,
		SearchTerm: c.SearchTerm,
		Count:      c.Count,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *Store) Update(ctx context.Context, docID string, count int64, searchTerm string) error {
	now := time.Now().UTC().Format(timeLayout)

	res, err := s.db.NewUpdate().
		Table("search_counters").
		Set("count = ?", count).
		Set("search_term = ?", searchTerm).
		Set("updated_at = ?", now).
		Where("id = ?", docID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func expectRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func toCounters(rows []SearchCounter) []counters.Counter {
	out := make([]counters.Counter, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toCounter())
	}
	return out
}
