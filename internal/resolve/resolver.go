// Package resolve turns peak names into Wikidata coordinates and elevations.
package resolve

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/peak-enrich/internal/cache"
	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/pkg/wikidata"
)

// ErrNotFound means neither the exact-label lookup nor the search fallback
// produced an entity with coordinates.
var ErrNotFound = errors.New("resolve: no candidate found")

// Options tunes the Wikidata queries.
type Options struct {
	Lang        string // label and search language
	LabelLangs  string // label service fallback chain
	LabelLimit  int
	SearchLimit int
}

// DefaultOptions mirrors the production query settings.
func DefaultOptions() Options {
	return Options{Lang: "pl", LabelLangs: "pl,en", LabelLimit: 8, SearchLimit: 8}
}

// Resolver looks names up in the cache, then Wikidata.
type Resolver struct {
	client wikidata.Client
	cache  cache.Store
	opts   Options
}

// New creates a Resolver. Zero option fields take their defaults.
func New(client wikidata.Client, store cache.Store, opts Options) *Resolver {
	def := DefaultOptions()
	if opts.Lang == "" {
		opts.Lang = def.Lang
	}
	if opts.LabelLangs == "" {
		opts.LabelLangs = def.LabelLangs
	}
	if opts.LabelLimit <= 0 {
		opts.LabelLimit = def.LabelLimit
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = def.SearchLimit
	}
	return &Resolver{client: client, cache: store, opts: opts}
}

// Resolve returns the location for searchText. A cache hit issues no network
// call. Returns ErrNotFound when nothing matches.
func (r *Resolver) Resolve(ctx context.Context, searchText string) (*model.Location, error) {
	text := norm.NFC.String(searchText)
	labelKey := cache.LabelKey(text)
	log := zap.L().With(zap.String("search", text))

	cached, ok, err := r.cache.Get(ctx, labelKey)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: cache get")
	}
	if ok {
		log.Debug("resolve: cache hit", zap.String("key", labelKey))
		return cached, nil
	}

	best, err := r.byLabel(ctx, text)
	if err != nil {
		return nil, err
	}

	if best == nil {
		qid, err := r.searchQID(ctx, text)
		if err != nil {
			return nil, err
		}
		if qid == "" {
			return nil, ErrNotFound
		}
		log.Debug("resolve: exact label missed, using search hit", zap.String("qid", qid))

		best, err = r.byQID(ctx, qid, text)
		if err != nil {
			return nil, err
		}
		if best == nil {
			return nil, ErrNotFound
		}
	}

	if err := r.cache.Put(ctx, labelKey, *best); err != nil {
		return nil, eris.Wrap(err, "resolve: cache put")
	}
	return best, nil
}

func (r *Resolver) byLabel(ctx context.Context, text string) (*model.Location, error) {
	bindings, err := r.client.Sparql(ctx, wikidata.LabelQuery(text, r.opts.Lang, r.opts.LabelLangs, r.opts.LabelLimit))
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: label lookup %q", text)
	}
	return SelectBest(CandidatesFromBindings(bindings, text)), nil
}

func (r *Resolver) searchQID(ctx context.Context, text string) (string, error) {
	hits, err := r.client.Search(ctx, text, r.opts.Lang, r.opts.SearchLimit)
	if err != nil {
		return "", eris.Wrapf(err, "resolve: search %q", text)
	}
	qid := RankSearch(hits)
	if qid != "" && !wikidata.ValidQID(qid) {
		zap.L().Warn("resolve: ignoring malformed search id", zap.String("id", qid))
		return "", nil
	}
	return qid, nil
}

// byQID fetches one entity, consulting and filling the qid: cache key.
func (r *Resolver) byQID(ctx context.Context, qid, fallbackLabel string) (*model.Location, error) {
	key := cache.QIDKey(qid)
	cached, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: cache get")
	}
	if ok {
		return cached, nil
	}

	bindings, err := r.client.Sparql(ctx, wikidata.QIDQuery(qid, r.opts.LabelLangs))
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: entity lookup %s", qid)
	}
	best := SelectBest(CandidatesFromBindings(bindings, fallbackLabel))
	if best == nil {
		return nil, nil
	}
	if err := r.cache.Put(ctx, key, *best); err != nil {
		return nil, eris.Wrap(err, "resolve: cache put")
	}
	return best, nil
}
