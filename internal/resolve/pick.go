package resolve

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/peak-enrich/internal/model"
	"github.com/sells-group/peak-enrich/pkg/wikidata"
)

// keywordWeight is added to a search hit's score per matched keyword.
const keywordWeight = 10

// peakKeywords mark a search hit description as describing a summit.
var peakKeywords = []string{"góra", "szczyt", "wzniesienie", "mountain", "peak", "summit", "hill"}

var lowerPL = cases.Lower(language.Polish)

// Candidate is one entity parsed from a SPARQL binding.
type Candidate struct {
	QID      string
	Label    string
	Lat      float64
	Lon      float64
	HasCoord bool
	ElevM    *int
}

// CandidatesFromBindings converts SPARQL rows to candidates in result order.
// Rows whose coordinate is present but unparseable are kept without coordinates.
func CandidatesFromBindings(bindings []wikidata.Binding, fallbackLabel string) []Candidate {
	out := make([]Candidate, 0, len(bindings))
	for _, b := range bindings {
		item, _ := b.Get("item")
		c := Candidate{QID: wikidata.EntityID(item), Label: fallbackLabel}
		if label, ok := b.Get("itemLabel"); ok {
			c.Label = label
		}

		if coord, ok := b.Get("coord"); ok {
			lat, lon, err := wikidata.ParsePoint(coord)
			if err != nil {
				zap.L().Debug("resolve: skipping unparseable coordinate",
					zap.String("qid", c.QID),
					zap.String("coord", coord),
					zap.Error(err),
				)
			} else {
				c.Lat, c.Lon, c.HasCoord = lat, lon, true
			}
		}

		if elev, ok := b.Get("elev"); ok {
			c.ElevM = parseElevation(elev)
		}
		out = append(out, c)
	}
	return out
}

// parseElevation rounds a decimal elevation to whole meters, half to even.
func parseElevation(s string) *int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	m := int(math.RoundToEven(f))
	return &m
}

// SelectBest drops candidates without coordinates, then returns the first one
// carrying an elevation, else the first remaining one. Result order is kept as
// the endpoint returned it. Returns nil when nothing has coordinates.
func SelectBest(candidates []Candidate) *model.Location {
	var first *Candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.HasCoord {
			continue
		}
		if c.ElevM != nil {
			return c.location()
		}
		if first == nil {
			first = c
		}
	}
	if first == nil {
		return nil
	}
	return first.location()
}

func (c *Candidate) location() *model.Location {
	loc := &model.Location{Lat: c.Lat, Lon: c.Lon, QID: c.QID, Label: c.Label}
	if c.ElevM != nil {
		e := *c.ElevM
		loc.ElevM = &e
	}
	return loc
}

// KeywordScore scores a description by the summit keywords it contains.
func KeywordScore(description string) int {
	desc := lowerPL.String(description)
	score := 0
	for _, kw := range peakKeywords {
		if strings.Contains(desc, kw) {
			score += keywordWeight
		}
	}
	return score
}

// RankSearch returns the id of the best-scoring hit, keeping the endpoint's
// order among equal scores. Returns "" for an empty list.
func RankSearch(hits []wikidata.SearchHit) string {
	if len(hits) == 0 {
		return ""
	}
	ranked := make([]wikidata.SearchHit, len(hits))
	copy(ranked, hits)
	sort.SliceStable(ranked, func(i, j int) bool {
		return KeywordScore(ranked[i].Description) > KeywordScore(ranked[j].Description)
	})
	return ranked[0].ID
}
