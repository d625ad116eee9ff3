// Package azure implements places lookups against Azure Maps POI search and
// geocoding.
package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shpitdev/places-enricher/pkg/places"
)

const (
	DefaultBaseURL = "https://atlas.microsoft.com"

	providerName = "azure"
)

type Config struct {
	SubscriptionKey string

	// BaseURL overrides the Azure Maps host. Useful for proxies/testing.
	BaseURL string

	// CountrySet limits POI results to ISO country codes (e.g. ["US"]).
	CountrySet []string

	HTTPClient *http.Client
}

type Client struct {
	key        string
	base       string
	countrySet []string
	http       *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SubscriptionKey) == "" {
		return nil, fmt.Errorf("SUBSCRIPTION_KEY is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	var countries []string
	for _, c := range cfg.CountrySet {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			countries = append(countries, c)
		}
	}
	return &Client{
		key:        strings.TrimSpace(cfg.SubscriptionKey),
		base:       strings.TrimRight(base, "/"),
		countrySet: countries,
		http:       hc,
	}, nil
}

type poiResponse struct {
	Results []struct {
		POI *struct {
			Name         string          `json:"name"`
			Phone        string          `json:"phone"`
			URL          string          `json:"url"`
			OpeningHours json.RawMessage `json:"openingHours"`
		} `json:"poi"`
		Address struct {
			FreeformAddress string `json:"freeformAddress"`
		} `json:"address"`
	} `json:"results"`
}

// Search runs one POI search. Results without a poi block are skipped.
func (c *Client) Search(ctx context.Context, req places.SearchRequest) (places.Place, bool, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return places.Place{}, false, nil
	}

	q := url.Values{}
	q.Set("api-version", "1.0")
	q.Set("query", query)
	q.Set("limit", "5")
	if req.Fields.Has(places.FieldHours) {
		q.Set("openingHours", "nextSevenDays")
	}
	if len(c.countrySet) > 0 {
		q.Set("countrySet", strings.Join(c.countrySet, ","))
	}
	if req.Bias != nil {
		q.Set("lat", strconv.FormatFloat(req.Bias.Center.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(req.Bias.Center.Lon, 'f', -1, 64))
		if req.Bias.RadiusMeters > 0 {
			q.Set("radius", strconv.Itoa(int(req.Bias.RadiusMeters)))
		}
	}

	httpReq, err := c.newRequest(ctx, "/search/poi/json", q)
	if err != nil {
		return places.Place{}, false, err
	}
	var resp poiResponse
	if err := places.DoJSON(c.http, providerName, "poiSearch", httpReq, &resp); err != nil {
		return places.Place{}, false, err
	}

	for _, r := range resp.Results {
		if r.POI == nil {
			continue
		}
		p := places.Place{
			Name:    strings.TrimSpace(r.POI.Name),
			Address: strings.TrimSpace(r.Address.FreeformAddress),
			Phone:   strings.TrimSpace(r.POI.Phone),
			URL:     strings.TrimSpace(r.POI.URL),
		}
		if len(r.POI.OpeningHours) > 0 && string(r.POI.OpeningHours) != "null" {
			p.Hours = r.POI.OpeningHours
		}
		return p.Restrict(req.Fields), true, nil
	}
	return places.Place{}, false, nil
}

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			// GeoJSON order: [lon, lat].
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Geocode resolves an address with the Azure Maps geocoding API.
func (c *Client) Geocode(ctx context.Context, address string) (places.Coordinates, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return places.Coordinates{}, false, nil
	}

	q := url.Values{}
	q.Set("api-version", "2023-06-01")
	q.Set("query", address)
	httpReq, err := c.newRequest(ctx, "/geocode", q)
	if err != nil {
		return places.Coordinates{}, false, err
	}
	var resp geocodeResponse
	if err := places.DoJSON(c.http, providerName, "geocode", httpReq, &resp); err != nil {
		return places.Coordinates{}, false, err
	}
	if len(resp.Features) == 0 || len(resp.Features[0].Geometry.Coordinates) < 2 {
		return places.Coordinates{}, false, nil
	}
	coords := resp.Features[0].Geometry.Coordinates
	return places.Coordinates{Lat: coords[1], Lon: coords[0]}, true, nil
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("subscription-key", c.key)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
