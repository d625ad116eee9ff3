package mockplaces

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fixtures is the canned data a Server answers from.
//
//	places:
//	  - query: vans.com
//	    place:
//	      name: Vans
//	      address: 1 Main St
//	      hours: {weekdayDescriptions: ["Mon: 9-5"]}
//	  - query: flaky.com
//	    status: 503
//	geocode:
//	  - address: Tokyo Station
//	    lat: 35.6812
//	    lon: 139.7671
type Fixtures struct {
	Places  []PlaceFixture   `yaml:"places"`
	Geocode []GeocodeFixture `yaml:"geocode"`
}

// PlaceFixture answers one search query. A non-zero Status makes the query
// fail with that HTTP status instead.
type PlaceFixture struct {
	Query  string `yaml:"query"`
	Status int    `yaml:"status"`
	Place  Place  `yaml:"place"`
}

type Place struct {
	Name    string         `yaml:"name"`
	Address string         `yaml:"address"`
	Phone   string         `yaml:"phone"`
	URL     string         `yaml:"url"`
	MapsURI string         `yaml:"maps_uri"`
	Summary string         `yaml:"summary"`
	Hours   map[string]any `yaml:"hours"`
}

type GeocodeFixture struct {
	Address string  `yaml:"address"`
	Lat     float64 `yaml:"lat"`
	Lon     float64 `yaml:"lon"`
}

// ParseFixtures decodes YAML fixtures.
func ParseFixtures(b []byte) (Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, p := range f.Places {
		if strings.TrimSpace(p.Query) == "" {
			return Fixtures{}, fmt.Errorf("parse fixtures: places[%d] has no query", i)
		}
	}
	return f, nil
}

// LoadFixtures reads YAML fixtures from path.
func LoadFixtures(path string) (Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, err
	}
	return ParseFixtures(b)
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
