package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/peak-enrich/internal/model"
)

const sqliteCacheSchema = `
CREATE TABLE IF NOT EXISTS wikidata_cache (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);`

// SQLite is a Store backed by a modernc.org/sqlite table. Puts are held in
// memory and committed in one transaction by Flush.
type SQLite struct {
	db      *sql.DB
	pending map[string]model.Location
}

// OpenSQLite opens (or creates) the cache database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		return nil, eris.New("cache: sqlite path is required")
	}
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "cache: create dir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteCacheSchema); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "cache: sqlite migrate")
	}
	return &SQLite{db: db, pending: make(map[string]model.Location)}, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) (*model.Location, bool, error) {
	if loc, ok := s.pending[key]; ok {
		return &loc, true, nil
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM wikidata_cache WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite get %s", key)
	}

	var loc model.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, false, eris.Wrapf(err, "cache: sqlite decode %s", key)
	}
	return &loc, true, nil
}

// Put implements Store.
func (s *SQLite) Put(_ context.Context, key string, loc model.Location) error {
	s.pending[key] = loc
	return nil
}

// Flush implements Store.
func (s *SQLite) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "cache: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO wikidata_cache (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	if err != nil {
		return eris.Wrap(err, "cache: sqlite prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for key, loc := range s.pending {
		raw, err := json.Marshal(loc)
		if err != nil {
			return eris.Wrapf(err, "cache: sqlite encode %s", key)
		}
		if _, err := stmt.ExecContext(ctx, key, string(raw)); err != nil {
			return eris.Wrapf(err, "cache: sqlite put %s", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "cache: sqlite commit")
	}
	s.pending = make(map[string]model.Location)
	return nil
}

// Keys implements Lister.
func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM wikidata_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite list")
	}
	defer rows.Close() //nolint:errcheck

	seen := make(map[string]bool)
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: sqlite scan key")
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: sqlite iterate keys")
	}
	for k := range s.pending {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store. Unflushed entries are discarded.
func (s *SQLite) Close() error {
	return s.db.Close()
}
