// Package google implements places lookups against the Google Places API (New)
// text search and the Google Geocoding API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shpitdev/places-enricher/pkg/places"
)

const (
	DefaultPlacesBaseURL  = "https://places.googleapis.com"
	DefaultGeocodeBaseURL = "https://maps.googleapis.com"

	providerName = "google"
)

type Config struct {
	APIKey string

	// PlacesBaseURL and GeocodeBaseURL override the API hosts. Useful for proxies/testing.
	PlacesBaseURL  string
	GeocodeBaseURL string

	// LanguageCode is forwarded to text search when set (e.g. "en").
	LanguageCode string

	HTTPClient *http.Client
}

// Client is stateless apart from its configuration and safe for concurrent use.
type Client struct {
	apiKey       string
	placesBase   string
	geocodeBase  string
	languageCode string
	http         *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GOOGLE_MAPS_API_KEY is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		apiKey:       strings.TrimSpace(cfg.APIKey),
		placesBase:   baseOrDefault(cfg.PlacesBaseURL, DefaultPlacesBaseURL),
		geocodeBase:  baseOrDefault(cfg.GeocodeBaseURL, DefaultGeocodeBaseURL),
		languageCode: strings.TrimSpace(cfg.LanguageCode),
		http:         hc,
	}, nil
}

func baseOrDefault(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	return strings.TrimRight(raw, "/")
}

var fieldMasks = map[places.Field]string{
	places.FieldName:    "places.displayName",
	places.FieldAddress: "places.formattedAddress",
	places.FieldPhone:   "places.nationalPhoneNumber",
	places.FieldURL:     "places.websiteUri",
	places.FieldMapsURI: "places.googleMapsUri",
	places.FieldSummary: "places.editorialSummary",
	places.FieldHours:   "places.regularOpeningHours",
}

// FieldMask returns the X-Goog-FieldMask value for fs.
func FieldMask(fs places.FieldSet) string {
	parts := []string{"places.id"}
	for _, f := range fs.Sorted() {
		parts = append(parts, fieldMasks[f])
	}
	return strings.Join(parts, ",")
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type locationBias struct {
	Circle circle `json:"circle"`
}

type searchTextRequest struct {
	TextQuery    string        `json:"textQuery"`
	PageSize     int           `json:"pageSize,omitempty"`
	LanguageCode string        `json:"languageCode,omitempty"`
	LocationBias *locationBias `json:"locationBias,omitempty"`
}

type localizedText struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type place struct {
	ID                  string          `json:"id"`
	DisplayName         *localizedText  `json:"displayName"`
	FormattedAddress    string          `json:"formattedAddress"`
	NationalPhoneNumber string          `json:"nationalPhoneNumber"`
	WebsiteURI          string          `json:"websiteUri"`
	GoogleMapsURI       string          `json:"googleMapsUri"`
	EditorialSummary    *localizedText  `json:"editorialSummary"`
	RegularOpeningHours json.RawMessage `json:"regularOpeningHours"`
}

type searchTextResponse struct {
	Places []place `json:"places"`
}

// Search runs one places:searchText request and maps the first match.
func (c *Client) Search(ctx context.Context, req places.SearchRequest) (places.Place, bool, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return places.Place{}, false, nil
	}

	body := searchTextRequest{
		TextQuery:    query,
		PageSize:     1,
		LanguageCode: c.languageCode,
	}
	if req.Bias != nil {
		radius := req.Bias.RadiusMeters
		if radius <= 0 {
			radius = places.DefaultBiasRadiusMeters
		}
		body.LocationBias = &locationBias{Circle: circle{
			Center: latLng{Latitude: req.Bias.Center.Lat, Longitude: req.Bias.Center.Lon},
			Radius: radius,
		}}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return places.Place{}, false, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.placesBase+"/v1/places:searchText", bytes.NewReader(b))
	if err != nil {
		return places.Place{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)
	httpReq.Header.Set("X-Goog-FieldMask", FieldMask(req.Fields))

	var resp searchTextResponse
	if err := places.DoJSON(c.http, providerName, "searchText", httpReq, &resp); err != nil {
		return places.Place{}, false, err
	}
	if len(resp.Places) == 0 {
		return places.Place{}, false, nil
	}
	return mapPlace(resp.Places[0]).Restrict(req.Fields), true, nil
}

func mapPlace(p place) places.Place {
	out := places.Place{
		Address: strings.TrimSpace(p.FormattedAddress),
		Phone:   strings.TrimSpace(p.NationalPhoneNumber),
		URL:     strings.TrimSpace(p.WebsiteURI),
		MapsURI: strings.TrimSpace(p.GoogleMapsURI),
	}
	if p.DisplayName != nil {
		out.Name = strings.TrimSpace(p.DisplayName.Text)
	}
	if p.EditorialSummary != nil {
		out.Summary = strings.TrimSpace(p.EditorialSummary.Text)
	}
	if len(p.RegularOpeningHours) > 0 && string(p.RegularOpeningHours) != "null" {
		out.Hours = p.RegularOpeningHours
	}
	return out
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address through the Geocoding API.
func (c *Client) Geocode(ctx context.Context, address string) (places.Coordinates, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return places.Coordinates{}, false, nil
	}

	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.geocodeBase+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return places.Coordinates{}, false, err
	}
	httpReq.Header.Set("Accept", "application/json")

	var resp geocodeResponse
	if err := places.DoJSON(c.http, providerName, "geocode", httpReq, &resp); err != nil {
		return places.Coordinates{}, false, err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return places.Coordinates{}, false, nil
	default:
		return places.Coordinates{}, false, &places.RequestError{
			Provider:  providerName,
			Op:        "geocode",
			Status:    resp.Status,
			Transient: resp.Status == "OVER_QUERY_LIMIT" || resp.Status == "UNKNOWN_ERROR",
			Snippet:   resp.ErrorMessage,
		}
	}
	if len(resp.Results) == 0 {
		return places.Coordinates{}, false, nil
	}
	loc := resp.Results[0].Geometry.Location
	return places.Coordinates{Lat: loc.Lat, Lon: loc.Lng}, true, nil
}
