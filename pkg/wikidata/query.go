package wikidata

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
)

const (
	// PropCoordinate is "coordinate location".
	PropCoordinate = "P625"
	// PropElevation is "elevation above sea level".
	PropElevation = "P2044"
)

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)

// EscapeLiteral escapes s for use inside a double-quoted SPARQL string literal.
func EscapeLiteral(s string) string {
	return literalEscaper.Replace(s)
}

// LabelQuery selects entities whose label in lang equals label exactly, with
// their coordinate and elevation when present.
func LabelQuery(label, lang, labelLangs string, limit int) string {
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?coord ?elev WHERE {
  ?item rdfs:label "%s"@%s .
  OPTIONAL { ?item wdt:%s ?coord. }
  OPTIONAL { ?item wdt:%s ?elev. }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
LIMIT %d`, EscapeLiteral(label), lang, PropCoordinate, PropElevation, labelLangs, limit)
}

// QIDQuery selects the coordinate and elevation of a single entity.
func QIDQuery(qid, labelLangs string) string {
	return fmt.Sprintf(`SELECT ?item ?itemLabel ?coord ?elev WHERE {
  BIND(wd:%s AS ?item)
  OPTIONAL { ?item wdt:%s ?coord. }
  OPTIONAL { ?item wdt:%s ?elev. }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s". }
}
LIMIT 1`, qid, PropCoordinate, PropElevation, labelLangs)
}

// ValidQID reports whether s looks like an item identifier (Q followed by digits).
func ValidQID(s string) bool {
	if len(s) < 2 || s[0] != 'Q' {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 10, 64)
	return err == nil
}

// EntityID returns the last path segment of an entity URI
// ("http://www.wikidata.org/entity/Q1" -> "Q1").
func EntityID(uri string) string {
	if i := strings.LastIndex(uri, "/"); i >= 0 {
		return uri[i+1:]
	}
	return uri
}

// EarthQID is the globe item for terrestrial coordinates.
const EarthQID = "Q2"

// ParsePoint parses a WKT coordinate literal ("Point(lon lat)") and returns
// latitude and longitude. A leading globe IRI must name Earth; coordinates on
// other bodies are rejected.
func ParsePoint(s string) (lat, lon float64, err error) {
	text := strings.TrimSpace(s)
	if strings.HasPrefix(text, "<") {
		end := strings.Index(text, ">")
		if end < 0 {
			return 0, 0, eris.Errorf("wikidata: unterminated globe in coordinate %q", s)
		}
		if globe := EntityID(text[1:end]); globe != EarthQID {
			return 0, 0, eris.Errorf("wikidata: coordinate %q is on globe %s, not Earth", s, globe)
		}
		text = text[end+1:]
	}
	upper := strings.ToUpper(strings.TrimSpace(text))

	g, err := wkt.Unmarshal(upper)
	if err != nil {
		return 0, 0, eris.Wrapf(err, "wikidata: parse coordinate %q", s)
	}
	p, ok := g.(*geom.Point)
	if !ok || len(p.FlatCoords()) < 2 {
		return 0, 0, eris.Errorf("wikidata: coordinate %q is not a point", s)
	}
	coords := p.FlatCoords()
	return coords[1], coords[0], nil
}
