// Package emit renders resolved peak locations as a SQL update script.
package emit

import (
	"strconv"
	"strings"

	"github.com/sells-group/peak-enrich/internal/model"
)

// GeomRebuildComment precedes GeomRebuildSQL in the script.
const GeomRebuildComment = "-- Rebuild geom for all peaks with coords"

// GeomRebuildSQL recomputes the PostGIS point for every peak with coordinates.
const GeomRebuildSQL = `UPDATE peaks
SET geom = ST_SetSRID(ST_MakePoint(longitude, latitude), 4326)
WHERE latitude IS NOT NULL AND longitude IS NOT NULL;`

// Builder accumulates per-peak UPDATE statements in insertion order.
type Builder struct {
	updates []string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddUpdate appends the UPDATE for one peak. The elevation column is set only
// when loc carries one.
func (b *Builder) AddUpdate(slug string, loc model.Location) {
	var sb strings.Builder
	sb.WriteString("UPDATE peaks SET latitude=")
	sb.WriteString(FormatCoord(loc.Lat))
	sb.WriteString(", longitude=")
	sb.WriteString(FormatCoord(loc.Lon))
	if loc.HasElevation() {
		sb.WriteString(", elevation_m=")
		sb.WriteString(strconv.Itoa(*loc.ElevM))
	}
	sb.WriteString(" WHERE slug='")
	sb.WriteString(EscapeSQL(slug))
	sb.WriteString("';")
	b.updates = append(b.updates, sb.String())
}

// UpdateCount returns the number of per-peak updates.
func (b *Builder) UpdateCount() int {
	return len(b.updates)
}

// Updates returns a copy of the per-peak statements.
func (b *Builder) Updates() []string {
	out := make([]string, len(b.updates))
	copy(out, b.updates)
	return out
}

// Statements returns the per-peak updates followed by the geometry rebuild.
func (b *Builder) Statements() []string {
	return append(b.Updates(), GeomRebuildSQL)
}

// FormatCoord rounds v to 6 decimal places and prints the shortest
// representation, keeping a decimal point on whole numbers (50 -> "50.0").
func FormatCoord(v float64) string {
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 6, 64), 64)
	if err != nil {
		rounded = v
	}
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

var quoteEscaper = strings.NewReplacer("'", "''")

// EscapeSQL doubles single quotes for use in a SQL string literal.
func EscapeSQL(s string) string {
	return quoteEscaper.Replace(s)
}
