package resolve

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/pkg/wikidata"
)

func intPtr(v int) *int { return &v }

// binding builds a SPARQL row; empty coord or elev leaves the variable unbound.
func binding(qid, label, coord, elev string) wikidata.Binding {
	b := wikidata.Binding{
		"item": {Type: "uri", Value: "http://www.wikidata.org/entity/" + qid},
	}
	if label != "" {
		b["itemLabel"] = wikidata.Value{Type: "literal", Value: label}
	}
	if coord != "" {
		b["coord"] = wikidata.Value{Type: "literal", Value: coord}
	}
	if elev != "" {
		b["elev"] = wikidata.Value{Type: "literal", Value: elev}
	}
	return b
}

func TestCandidatesFromBindings(t *testing.T) {
	cands := CandidatesFromBindings([]wikidata.Binding{
		binding("Q1", "Babia Góra", "Point(19.529 49.573)", "1725.4"),
		binding("Q2", "", "", ""),
		binding("Q3", "Zła", "Point(bad)", "abc"),
	}, "fallback")
	require.Len(t, cands, 3)

	assert.Equal(t, "Q1", cands[0].QID)
	assert.Equal(t, "Babia Góra", cands[0].Label)
	assert.True(t, cands[0].HasCoord)
	assert.InDelta(t, 49.573, cands[0].Lat, 1e-9)
	assert.InDelta(t, 19.529, cands[0].Lon, 1e-9)
	require.NotNil(t, cands[0].ElevM)
	assert.Equal(t, 1725, *cands[0].ElevM)

	assert.Equal(t, "fallback", cands[1].Label)
	assert.False(t, cands[1].HasCoord)
	assert.Nil(t, cands[1].ElevM)

	assert.False(t, cands[2].HasCoord)
	assert.Nil(t, cands[2].ElevM)
}

func TestCandidatesFromBindings_OffEarthCoordinateDropped(t *testing.T) {
	cands := CandidatesFromBindings([]wikidata.Binding{
		binding("Q1", "Mons Huygens", "<http://www.wikidata.org/entity/Q405> Point(-2.9 20.0)", "5500"),
	}, "Mons Huygens")
	require.Len(t, cands, 1)
	assert.False(t, cands[0].HasCoord)
	assert.Nil(t, SelectBest(cands))
}

func TestParseElevation_RoundsHalfToEven(t *testing.T) {
	tests := map[string]int{
		"1000":   1000,
		"1725.4": 1725,
		"1725.6": 1726,
		"1602.5": 1602,
		"1603.5": 1604,
		" 812 ":  812,
		"-10.2":  -10,
		"2.5e3":  2500,
	}
	for in, want := range tests {
		got := parseElevation(in)
		require.NotNil(t, got, in)
		assert.Equal(t, want, *got, in)
	}
	assert.Nil(t, parseElevation(""))
	assert.Nil(t, parseElevation("NaN"))
	assert.Nil(t, parseElevation("unknown"))
}

func TestSelectBest(t *testing.T) {
	withCoord := func(qid string, elev *int) Candidate {
		return Candidate{QID: qid, Label: qid, Lat: 50, Lon: 20, HasCoord: true, ElevM: elev}
	}
	noCoord := func(qid string, elev *int) Candidate {
		return Candidate{QID: qid, Label: qid, ElevM: elev}
	}

	tests := []struct {
		name  string
		cands []Candidate
		want  string
	}{
		{name: "empty", cands: nil, want: ""},
		{name: "no coordinates", cands: []Candidate{noCoord("Q1", intPtr(1)), noCoord("Q2", nil)}, want: ""},
		{name: "first with elevation wins", cands: []Candidate{withCoord("Q1", nil), withCoord("Q2", intPtr(900)), withCoord("Q3", intPtr(1000))}, want: "Q2"},
		{name: "elevation without coordinate ignored", cands: []Candidate{noCoord("Q1", intPtr(1)), withCoord("Q2", nil)}, want: "Q2"},
		{name: "first coordinate when no elevation", cands: []Candidate{noCoord("Q1", nil), withCoord("Q2", nil), withCoord("Q3", nil)}, want: "Q2"},
		{name: "zero elevation counts", cands: []Candidate{withCoord("Q1", nil), withCoord("Q2", intPtr(0))}, want: "Q2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectBest(tt.cands)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.QID)
		})
	}
}

func TestSelectBest_CopiesElevation(t *testing.T) {
	elev := 1000
	cands := []Candidate{{QID: "Q1", Label: "X", Lat: 50, Lon: 20, HasCoord: true, ElevM: &elev}}
	got := SelectBest(cands)
	elev = 1

	want := &model.Location{Lat: 50, Lon: 20, ElevM: intPtr(1000), QID: "Q1", Label: "X"}
	assert.Empty(t, cmp.Diff(want, got))
}

func TestKeywordScore(t *testing.T) {
	assert.Equal(t, 0, KeywordScore(""))
	assert.Equal(t, 0, KeywordScore("wieś w Polsce"))
	assert.Equal(t, 10, KeywordScore("szczyt w Beskidzie Żywieckim"))
	assert.Equal(t, 10, KeywordScore("GÓRA w Sudetach"))
	assert.Equal(t, 20, KeywordScore("mountain peak in Poland"))
	assert.Equal(t, 10, KeywordScore("Hill"))
}

func TestRankSearch(t *testing.T) {
	assert.Equal(t, "", RankSearch(nil))

	hits := []wikidata.SearchHit{
		{ID: "Q10", Description: "village in Lesser Poland"},
		{ID: "Q20", Description: "peak in the Tatra Mountains"},
	}
	assert.Equal(t, "Q20", RankSearch(hits))

	// Reversed order gives the same answer.
	reversed := []wikidata.SearchHit{hits[1], hits[0]}
	assert.Equal(t, "Q20", RankSearch(reversed))

	// Ties keep the original order.
	ties := []wikidata.SearchHit{
		{ID: "Q1", Description: "szczyt"},
		{ID: "Q2", Description: "szczyt"},
	}
	assert.Equal(t, "Q1", RankSearch(ties))

	// No keyword anywhere: first hit.
	none := []wikidata.SearchHit{{ID: "Q7"}, {ID: "Q8", Description: "family name"}}
	assert.Equal(t, "Q7", RankSearch(none))

	// Input slice is not reordered.
	assert.Equal(t, "Q10", hits[0].ID)
}
