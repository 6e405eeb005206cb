package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/peak-enrich/internal/config"
	"github.com/sells-group/peak-enrich/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func intPtr(v int) *int { return &v }

func sampleLocation() model.Location {
	return model.Location{Lat: 49.573055, Lon: 19.529166, ElevM: intPtr(1725), QID: "Q179840", Label: "Babia Góra"}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "label:Babia Góra", LabelKey("Babia Góra"))
	assert.Equal(t, "qid:Q179840", QIDKey("Q179840"))
}

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "label:x")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "label:x", sampleLocation()))
	got, ok, err := m.Get(ctx, "label:x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(sampleLocation(), *got))
	assert.Equal(t, 1, m.Len())
	assert.NoError(t, m.Flush(ctx))
	assert.NoError(t, m.Close())
}

func TestCountKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, LabelKey("a"), sampleLocation()))
	require.NoError(t, m.Put(ctx, LabelKey("b"), sampleLocation()))
	require.NoError(t, m.Put(ctx, QIDKey("Q1"), sampleLocation()))
	require.NoError(t, m.Put(ctx, "legacy", sampleLocation()))

	st, err := CountKeys(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, Stats{Labels: 2, QIDs: 1, Other: 1}, st)
	assert.Equal(t, 4, st.Total())
}

type nonLister struct{ Store }

func TestCountKeys_Unsupported(t *testing.T) {
	_, err := CountKeys(context.Background(), nonLister{NewMemory()})
	assert.Error(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.CacheConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.CacheConfig{Driver: "file", Path: filepath.Join(dir, "c.json")})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	s, err = Open(ctx, config.CacheConfig{Driver: "sqlite", Path: filepath.Join(dir, "c.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.CacheConfig{Driver: "bogus"})
	assert.Error(t, err)

	_, err = Open(ctx, config.CacheConfig{Driver: "postgres"})
	assert.Error(t, err)

	_, err = Open(ctx, config.CacheConfig{Driver: "redis"})
	assert.Error(t, err)
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scripts", ".wikidata_cache.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.False(t, f.Dirty())

	noElev := model.Location{Lat: 50.0, Lon: 20.0, QID: "Q2", Label: "Bez wysokości"}
	require.NoError(t, f.Put(ctx, LabelKey("Babia Góra"), sampleLocation()))
	require.NoError(t, f.Put(ctx, QIDKey("Q2"), noElev))
	assert.True(t, f.Dirty())

	// Nothing is on disk until Flush.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, f.Flush(ctx))
	assert.False(t, f.Dirty())

	reopened, err := OpenFile(path)
	require.NoError(t, err)

	got, ok, err := reopened.Get(ctx, LabelKey("Babia Góra"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(sampleLocation(), *got))

	got, ok, err = reopened.Get(ctx, QIDKey("Q2"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.ElevM)
	assert.Empty(t, cmp.Diff(noElev, *got))
}

func TestFile_FlushSkipsCleanCache(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scripts", "cache.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())
	require.NoError(t, f.Flush(ctx))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "clean cache must not be written")
}

func TestFile_Format(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Put(ctx, LabelKey("Łysica"), model.Location{Lat: 50.8925, Lon: 20.8936, QID: "Q1049434", Label: "Łysica"}))
	require.NoError(t, f.Flush(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `"label:Łysica": {`)
	assert.Contains(t, text, `  "label:Łysica"`)
	assert.Contains(t, text, `"elev_m": null`)
	assert.NotContains(t, text, `\u`)
}

func TestFile_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	f, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
}

func TestFile_EmptyPath(t *testing.T) {
	_, err := OpenFile("")
	assert.Error(t, err)
}

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, LabelKey("Babia Góra"), sampleLocation()))

	// Pending entries are visible before Flush.
	got, ok, err := s.Get(ctx, LabelKey("Babia Góra"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Q179840", got.QID)

	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err = s.Get(ctx, LabelKey("Babia Góra"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(sampleLocation(), *got))

	_, ok, err = s.Get(ctx, LabelKey("missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, QIDKey("Q1"), sampleLocation()))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"label:Babia Góra", "qid:Q1"}, keys)
}

func TestSQLite_UnflushedEntriesAreLost(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, LabelKey("x"), sampleLocation()))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	_, ok, err := s.Get(ctx, LabelKey("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}
