// Package pipeline drives one enrichment run over a list of peaks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/peak-enrich/internal/emit"
	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/internal/resilience"
	"github.com/sells-group/peak-enrich/internal/resolve"
)

// DefaultDelay is the pause after each successful resolution.
const DefaultDelay = 150 * time.Millisecond

// Resolver resolves a search text to a location.
type Resolver interface {
	Resolve(ctx context.Context, searchText string) (*model.Location, error)
}

// Deps are the collaborators of a run.
type Deps struct {
	Resolver  Resolver
	Overrides resolve.Overrides
	// Builder receives the updates. A new one is created when nil.
	Builder *emit.Builder
}

// Options tunes a run.
type Options struct {
	// Delay is slept after every resolved peak. Zero uses DefaultDelay; a
	// negative value disables the pause.
	Delay time.Duration
	// Limit caps how many peaks are resolved. Zero means no cap.
	Limit int
	// Sleep waits between peaks. Defaults to resilience.SleepContext.
	Sleep resilience.SleepFunc
	// RunID identifies the run in logs and the output header. Generated when empty.
	RunID string
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID   string
	Updated int
	// Replaced counts updates for peaks that already had coordinates.
	Replaced int
	Skipped  int
	Missing  []string
	Builder  *emit.Builder
	Duration time.Duration
}

// Run resolves every non-korona peak in order and collects UPDATE statements.
// Peaks that cannot be resolved are listed in Summary.Missing and do not fail
// the run. A cancelled context aborts the run with an error.
func Run(ctx context.Context, peaks []model.Peak, deps Deps, opts Options) (*Summary, error) {
	if deps.Resolver == nil {
		return nil, eris.New("pipeline: resolver is required")
	}
	opts = applyDefaults(opts)

	b := deps.Builder
	if b == nil {
		b = emit.NewBuilder()
	}
	sum := &Summary{RunID: opts.RunID, Builder: b}
	log := zap.L().With(zap.String("run_id", sum.RunID))
	start := time.Now()

	log.Info("pipeline: starting run", zap.Int("peaks", len(peaks)))

	attempted := 0
	for _, p := range peaks {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "pipeline: run cancelled")
		}
		if p.IsKorona {
			sum.Skipped++
			continue
		}
		if opts.Limit > 0 && attempted >= opts.Limit {
			break
		}
		attempted++

		text := deps.Overrides.SearchText(p.Slug, p.SearchName())
		plog := log.With(zap.String("slug", p.Slug), zap.String("search", text))

		loc, err := deps.Resolver.Resolve(ctx, text)
		switch {
		case err == nil:
		case errors.Is(err, resolve.ErrNotFound):
			plog.Info("pipeline: no match")
			sum.Missing = append(sum.Missing, fmt.Sprintf("%s: %s", p.Slug, text))
			continue
		case ctx.Err() != nil:
			return nil, eris.Wrap(ctx.Err(), "pipeline: run cancelled")
		default:
			plog.Warn("pipeline: resolve failed", zap.Error(err))
			sum.Missing = append(sum.Missing, fmt.Sprintf("%s: %s (ERR: %s)", p.Slug, text, err))
			continue
		}

		b.AddUpdate(p.Slug, *loc)
		sum.Updated++
		if p.HasCoords() {
			sum.Replaced++
		}
		plog.Debug("pipeline: resolved",
			zap.Bool("had_coords", p.HasCoords()),
			zap.String("qid", loc.QID),
			zap.Float64("lat", loc.Lat),
			zap.Float64("lon", loc.Lon),
		)

		if opts.Delay > 0 {
			if err := opts.Sleep(ctx, opts.Delay); err != nil {
				return nil, eris.Wrap(err, "pipeline: run cancelled")
			}
		}
	}

	sum.Duration = time.Since(start)
	log.Info("pipeline: run complete",
		zap.Int("updated", sum.Updated),
		zap.Int("replaced", sum.Replaced),
		zap.Int("skipped", sum.Skipped),
		zap.Int("missing", len(sum.Missing)),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func applyDefaults(opts Options) Options {
	if opts.Delay == 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = resilience.SleepContext
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return opts
}
