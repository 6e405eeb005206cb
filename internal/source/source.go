// Package source reads the peaks that the enrichment run works on.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/peak-enrich/internal/config"
	"github.com/sells-group/peak-enrich/internal/model"
)

// Reader loads peaks from a relational store.
type Reader interface {
	// ReadPeaks returns peaks ordered by is_korona DESC, range_id, elevation_m DESC.
	ReadPeaks(ctx context.Context) ([]model.Peak, error)
	Close() error
}

// Availability is the result of checking whether a data source can be opened.
type Availability struct {
	Available bool
	Driver    string
	Reason    string
}

// Check reports whether cfg describes a usable data source without connecting.
func Check(cfg config.SourceConfig) Availability {
	a := Availability{Driver: cfg.Driver}
	switch cfg.Driver {
	case "postgres", "sqlite":
	case "":
		a.Reason = "source.driver is not set"
		return a
	default:
		a.Reason = "unsupported source driver " + cfg.Driver + " (want postgres or sqlite)"
		return a
	}
	if cfg.DatabaseURL == "" {
		a.Reason = "DATABASE_URL not set"
		return a
	}
	a.Available = true
	return a
}

// Open checks cfg and connects to the selected driver.
func Open(ctx context.Context, cfg config.SourceConfig) (Reader, error) {
	if a := Check(cfg); !a.Available {
		return nil, eris.Errorf("source: unavailable: %s", a.Reason)
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "pl"
	}
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(ctx, cfg.DatabaseURL, lang)
	default:
		return OpenPostgres(ctx, cfg.DatabaseURL, lang)
	}
}
