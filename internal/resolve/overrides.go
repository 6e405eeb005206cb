package resolve

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Override replaces the search text for a peak whose name is ambiguous or
// has no exact Wikidata label.
type Override struct {
	Search string `yaml:"search"`
}

// Overrides maps a peak slug to its override. It is read-only after loading.
type Overrides map[string]Override

// DefaultOverrides are manual nudges for known problem names.
func DefaultOverrides() Overrides {
	return Overrides{
		"iwinka":                  {Search: "Iwinka"},
		"czarna-gora-bystrzyckie": {Search: "Czarna Góra"},
		"wolek":                   {Search: "Wołek"},
		"sokolik-wielki":          {Search: "Sokolik"},
		"rudawiec-zlote":          {Search: "Rudawiec"},
		"srebrna-gora":            {Search: "Srebrna Kopa"},
		"kudla-wyspowy":           {Search: "Kudłacze"},
		"lakowa-wyspowy":          {Search: "Łackowa"},
		"lysica-skarpowa":         {Search: "Łysica"},
	}
}

// LoadOverrides returns DefaultOverrides merged with the YAML file at path.
// Entries from the file win. An empty path returns the defaults.
//
//	lubon-wielki:
//	  search: Luboń Wielki
func LoadOverrides(path string) (Overrides, error) {
	ov := DefaultOverrides()
	if path == "" {
		return ov, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: read overrides %s", path)
	}
	var extra map[string]Override
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrapf(err, "resolve: parse overrides %s", path)
	}
	for slug, o := range extra {
		if o.Search == "" {
			return nil, eris.Errorf("resolve: override for %q has no search text", slug)
		}
		ov[slug] = o
	}
	return ov, nil
}

// SearchText returns the override search text for slug, or name.
func (o Overrides) SearchText(slug, name string) string {
	if ov, ok := o[slug]; ok && ov.Search != "" {
		return ov.Search
	}
	return name
}
