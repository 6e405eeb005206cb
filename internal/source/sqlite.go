package source

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/peak-enrich/internal/model"
)

const sqlitePeaksQuery = `
SELECT p.slug,
       p.elevation_m,
       p.latitude,
       p.longitude,
       p.is_korona,
       p.range_id,
       COALESCE(pi.name, p.slug) AS name
FROM peaks p
LEFT JOIN peaks_i18n pi ON pi.peak_id = p.id AND pi.lang = ?
ORDER BY p.is_korona DESC, p.range_id, p.elevation_m DESC`

// SQLite reads peaks from a local SQLite copy of the schema.
type SQLite struct {
	db   *sql.DB
	lang string
}

// OpenSQLite opens the database file at dsn read-only.
func OpenSQLite(ctx context.Context, dsn, lang string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "source: sqlite open")
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "source: sqlite ping")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "source: sqlite set query_only")
	}
	return &SQLite{db: db, lang: lang}, nil
}

// ReadPeaks implements Reader.
func (s *SQLite) ReadPeaks(ctx context.Context) ([]model.Peak, error) {
	rows, err := s.db.QueryContext(ctx, sqlitePeaksQuery, s.lang)
	if err != nil {
		return nil, eris.Wrap(err, "source: sqlite query peaks")
	}
	defer rows.Close() //nolint:errcheck

	var peaks []model.Peak
	for rows.Next() {
		var pk model.Peak
		if err := rows.Scan(&pk.Slug, &pk.ElevationM, &pk.Latitude, &pk.Longitude, &pk.IsKorona, &pk.RangeID, &pk.Name); err != nil {
			return nil, eris.Wrap(err, "source: sqlite scan peak")
		}
		peaks = append(peaks, pk)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: sqlite iterate peaks")
	}
	return peaks, nil
}

// Close implements Reader.
func (s *SQLite) Close() error {
	return s.db.Close()
}
