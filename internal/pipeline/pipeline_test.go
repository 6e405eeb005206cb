package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/peak-enrich/internal/cache"
	"github.com/sells-group/peak-enrich/internal/emit"
	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/internal/resolve"
	"github.com/sells-group/peak-enrich/pkg/wikidata"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func intPtr(v int) *int { return &v }

type fakeResolver struct {
	results map[string]*model.Location
	errs    map[string]error
	seen    []string
}

func (f *fakeResolver) Resolve(_ context.Context, text string) (*model.Location, error) {
	f.seen = append(f.seen, text)
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	if loc, ok := f.results[text]; ok {
		return loc, nil
	}
	return nil, resolve.ErrNotFound
}

type recordSleep struct {
	calls []time.Duration
}

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.calls = append(r.calls, d)
	return nil
}

func TestRun_Outcomes(t *testing.T) {
	fr := &fakeResolver{
		results: map[string]*model.Location{
			"Rysy":  {Lat: 49.1795, Lon: 20.0881, ElevM: intPtr(2499), QID: "Q130"},
			"Wołek": {Lat: 50.9, Lon: 15.9, QID: "Q5"},
		},
		errs: map[string]error{
			"Zepsuta": errors.New("wikidata: unexpected status 400 Bad Request"),
		},
	}
	peaks := []model.Peak{
		{Slug: "rysy", Name: "Rysy"},
		{Slug: "sniezka", Name: "Śnieżka", IsKorona: true},
		{Slug: "wolek", Name: "Wolek"},
		{Slug: "nieznana", Name: "Nieznana"},
		{Slug: "zepsuta", Name: "Zepsuta"},
	}
	rs := &recordSleep{}

	sum, err := Run(context.Background(), peaks,
		Deps{Resolver: fr, Overrides: resolve.DefaultOverrides()},
		Options{Sleep: rs.sleep, RunID: "run-1"},
	)
	require.NoError(t, err)

	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, 2, sum.Updated)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, []string{
		"nieznana: Nieznana",
		"zepsuta: Zepsuta (ERR: wikidata: unexpected status 400 Bad Request)",
	}, sum.Missing)
	assert.Equal(t, []string{"Rysy", "Wołek", "Nieznana", "Zepsuta"}, fr.seen, "korona skipped, override applied")
	assert.Equal(t, []time.Duration{DefaultDelay, DefaultDelay}, rs.calls, "sleep only after successes")

	assert.Equal(t, []string{
		"UPDATE peaks SET latitude=49.1795, longitude=20.0881, elevation_m=2499 WHERE slug='rysy';",
		"UPDATE peaks SET latitude=50.9, longitude=15.9 WHERE slug='wolek';",
	}, sum.Builder.Updates())
}

func TestRun_CountsReplacedCoordinates(t *testing.T) {
	lat, lon := 49.0, 20.0
	fr := &fakeResolver{results: map[string]*model.Location{
		"A": {Lat: 1, Lon: 1},
		"B": {Lat: 2, Lon: 2},
	}}
	peaks := []model.Peak{
		{Slug: "a", Name: "A", Latitude: &lat, Longitude: &lon},
		{Slug: "b", Name: "B"},
	}

	sum, err := Run(context.Background(), peaks, Deps{Resolver: fr}, Options{Delay: -1})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Updated)
	assert.Equal(t, 1, sum.Replaced)
}

func TestRun_SlugFallbackWhenNameEmpty(t *testing.T) {
	fr := &fakeResolver{}
	sum, err := Run(context.Background(), []model.Peak{{Slug: "bez-nazwy"}},
		Deps{Resolver: fr}, Options{Delay: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"bez-nazwy"}, fr.seen)
	assert.Equal(t, []string{"bez-nazwy: bez-nazwy"}, sum.Missing)
}

func TestRun_Limit(t *testing.T) {
	fr := &fakeResolver{}
	peaks := []model.Peak{
		{Slug: "k", Name: "K", IsKorona: true},
		{Slug: "a", Name: "A"},
		{Slug: "b", Name: "B"},
		{Slug: "c", Name: "C"},
	}
	sum, err := Run(context.Background(), peaks, Deps{Resolver: fr}, Options{Limit: 2, Delay: -1})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, fr.seen)
	assert.Len(t, sum.Missing, 2)
}

func TestRun_NoDelay(t *testing.T) {
	fr := &fakeResolver{results: map[string]*model.Location{"A": {Lat: 1, Lon: 1}}}
	rs := &recordSleep{}
	_, err := Run(context.Background(), []model.Peak{{Slug: "a", Name: "A"}},
		Deps{Resolver: fr}, Options{Delay: -1, Sleep: rs.sleep})
	require.NoError(t, err)
	assert.Empty(t, rs.calls)
}

func TestRun_UsesGivenBuilder(t *testing.T) {
	b := emit.NewBuilder()
	fr := &fakeResolver{results: map[string]*model.Location{"A": {Lat: 1, Lon: 1}}}
	sum, err := Run(context.Background(), []model.Peak{{Slug: "a", Name: "A"}},
		Deps{Resolver: fr, Builder: b}, Options{Delay: -1})
	require.NoError(t, err)
	assert.Same(t, b, sum.Builder)
	assert.Equal(t, 1, b.UpdateCount())
}

func TestRun_GeneratesRunID(t *testing.T) {
	sum, err := Run(context.Background(), nil, Deps{Resolver: &fakeResolver{}}, Options{})
	require.NoError(t, err)
	assert.Len(t, sum.RunID, 36)
	assert.Equal(t, 0, sum.Updated)
	assert.Empty(t, sum.Missing)
}

func TestRun_RequiresResolver(t *testing.T) {
	_, err := Run(context.Background(), nil, Deps{}, Options{})
	assert.Error(t, err)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fr := &fakeResolver{}
	sum, err := Run(ctx, []model.Peak{{Slug: "a", Name: "A"}}, Deps{Resolver: fr}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, sum)
	assert.Empty(t, fr.seen)
}

type cancellingResolver struct {
	cancel context.CancelFunc
}

func (c *cancellingResolver) Resolve(ctx context.Context, _ string) (*model.Location, error) {
	c.cancel()
	return nil, ctx.Err()
}

func TestRun_CancelledDuringResolve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sum, err := Run(ctx, []model.Peak{{Slug: "a", Name: "A"}, {Slug: "b", Name: "B"}},
		Deps{Resolver: &cancellingResolver{cancel: cancel}}, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, sum)
}

func TestRun_SleepErrorAborts(t *testing.T) {
	fr := &fakeResolver{results: map[string]*model.Location{"A": {Lat: 1, Lon: 1}}}
	failSleep := func(context.Context, time.Duration) error { return context.DeadlineExceeded }

	_, err := Run(context.Background(), []model.Peak{{Slug: "a", Name: "A"}},
		Deps{Resolver: fr}, Options{Sleep: failSleep})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// wikiStub answers exact-label queries for a fixed set of labels.
type wikiStub struct {
	labels map[string]wikidata.Binding
}

func (w *wikiStub) Sparql(_ context.Context, query string) ([]wikidata.Binding, error) {
	for label, b := range w.labels {
		if strings.Contains(query, `"`+label+`"@pl`) {
			return []wikidata.Binding{b}, nil
		}
	}
	return nil, nil
}

func (w *wikiStub) Search(context.Context, string, string, int) ([]wikidata.SearchHit, error) {
	return nil, nil
}

func TestRun_EndToEndWithResolver(t *testing.T) {
	wc := &wikiStub{labels: map[string]wikidata.Binding{
		"X": {
			"item":      {Type: "uri", Value: "http://www.wikidata.org/entity/Q1"},
			"itemLabel": {Type: "literal", Value: "X"},
			"coord":     {Type: "literal", Value: "Point(20.0 50.0)"},
			"elev":      {Type: "literal", Value: "1000"},
		},
	}}
	r := resolve.New(wc, cache.NewMemory(), resolve.Options{})

	sum, err := Run(context.Background(),
		[]model.Peak{{Slug: "x", Name: "X"}, {Slug: "y", Name: "Y"}},
		Deps{Resolver: r}, Options{Delay: -1})
	require.NoError(t, err)

	assert.Equal(t, []string{"UPDATE peaks SET latitude=50.0, longitude=20.0, elevation_m=1000 WHERE slug='x';"},
		sum.Builder.Updates())
	assert.Equal(t, []string{"y: Y"}, sum.Missing)
}
