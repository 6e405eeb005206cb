package model

// Peak is a row from the peaks table as seen by the enrichment run.
type Peak struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	ElevationM *int     `json:"elevation_m,omitempty"`
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	IsKorona   bool     `json:"is_korona"`
	RangeID    *int64   `json:"range_id,omitempty"`
}

// SearchName returns the localized name, or the slug when the peak has none.
func (p Peak) SearchName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Slug
}

// HasCoords reports whether the peak already carries both coordinates.
func (p Peak) HasCoords() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Location is a resolved Wikidata position for a peak.
type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	ElevM *int    `json:"elev_m"`
	QID   string  `json:"qid"`
	Label string  `json:"label"`
}

// HasElevation reports whether the entity carried an elevation fact.
func (l Location) HasElevation() bool {
	return l.ElevM != nil
}
