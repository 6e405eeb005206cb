package source

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/db"
	"github.com/sells-group/peak-enrich/internal/model"
)

const postgresPeaksQuery = `
SELECT p.slug,
       p.elevation_m::integer,
       p.latitude::float8,
       p.longitude::float8,
       p.is_korona,
       p.range_id::bigint,
       COALESCE(pi.name, p.slug) AS name
FROM peaks p
LEFT JOIN peaks_i18n pi ON pi.peak_id = p.id AND pi.lang = $1
ORDER BY p.is_korona DESC, p.range_id, p.elevation_m DESC`

// Querier is the subset of *pgxpool.Pool used by the Postgres reader.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Postgres reads peaks through pgx.
type Postgres struct {
	pool Querier
	lang string
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool Querier, lang string) *Postgres {
	return &Postgres{pool: pool, lang: lang}
}

// OpenPostgres connects with a single-connection pool and pings the server.
func OpenPostgres(ctx context.Context, connString, lang string) (*Postgres, error) {
	pool, err := db.Connect(ctx, connString, 1)
	if err != nil {
		return nil, eris.Wrap(err, "source: connect postgres")
	}
	return NewPostgres(pool, lang), nil
}

// ReadPeaks implements Reader.
func (p *Postgres) ReadPeaks(ctx context.Context) ([]model.Peak, error) {
	rows, err := p.pool.Query(ctx, postgresPeaksQuery, p.lang)
	if err != nil {
		return nil, eris.Wrap(err, "source: query peaks")
	}
	defer rows.Close()

	var peaks []model.Peak
	for rows.Next() {
		var pk model.Peak
		if err := rows.Scan(&pk.Slug, &pk.ElevationM, &pk.Latitude, &pk.Longitude, &pk.IsKorona, &pk.RangeID, &pk.Name); err != nil {
			return nil, eris.Wrap(err, "source: scan peak")
		}
		peaks = append(peaks, pk)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate peaks")
	}
	return peaks, nil
}

// Close implements Reader.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
