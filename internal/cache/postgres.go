package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/db"
	"github.com/sells-group/peak-enrich/internal/model"
)

// DefaultPostgresTable holds cache entries when no table is configured.
const DefaultPostgresTable = "wikidata_cache"

// Postgres is a Store kept in a table of the peaks database. Puts are
// buffered and merged with one bulk upsert on Flush.
type Postgres struct {
	pool    db.Pool
	table   string
	pending map[string]model.Location
}

// OpenPostgres connects to connString and creates the cache table if needed.
func OpenPostgres(ctx context.Context, connString, table string) (*Postgres, error) {
	if connString == "" {
		return nil, eris.New("cache: postgres connection string is required")
	}
	pool, err := db.Connect(ctx, connString, 2)
	if err != nil {
		return nil, eris.Wrap(err, "cache: connect postgres")
	}
	p := NewPostgres(pool, table)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an existing pool. An empty table uses DefaultPostgresTable.
func NewPostgres(pool db.Pool, table string) *Postgres {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &Postgres{pool: pool, table: table, pending: make(map[string]model.Location)}
}

// Migrate creates the cache table.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, db.SanitizeTable(p.table)))
	if err != nil {
		return eris.Wrapf(err, "cache: postgres migrate %s", p.table)
	}
	return nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, key string) (*model.Location, bool, error) {
	if loc, ok := p.pending[key]; ok {
		return &loc, true, nil
	}

	var raw string
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE key = $1", db.SanitizeTable(p.table)), key,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres get %s", key)
	}

	var loc model.Location
	if err := json.Unmarshal([]byte(raw), &loc); err != nil {
		return nil, false, eris.Wrapf(err, "cache: postgres decode %s", key)
	}
	return &loc, true, nil
}

// Put implements Store.
func (p *Postgres) Put(_ context.Context, key string, loc model.Location) error {
	p.pending[key] = loc
	return nil
}

// Flush implements Store.
func (p *Postgres) Flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	keys := make([]string, 0, len(p.pending))
	for k := range p.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		raw, err := json.Marshal(p.pending[k])
		if err != nil {
			return eris.Wrapf(err, "cache: postgres encode %s", k)
		}
		rows = append(rows, []any{k, string(raw)})
	}

	if _, err := db.Upsert(ctx, p.pool, db.UpsertConfig{
		Table:        p.table,
		Columns:      []string{"key", "value"},
		ConflictKeys: []string{"key"},
	}, rows); err != nil {
		return eris.Wrap(err, "cache: postgres flush")
	}
	p.pending = make(map[string]model.Location)
	return nil
}

// Keys implements Lister.
func (p *Postgres) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf("SELECT key FROM %s", db.SanitizeTable(p.table)))
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres list")
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: postgres scan key")
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "cache: postgres iterate keys")
	}
	for k := range p.pending {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements Store. Unflushed entries are discarded.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
