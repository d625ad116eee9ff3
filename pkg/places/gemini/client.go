// Package gemini answers place lookups with a Gemini model grounded by Google
// Search. It is the fallback provider when no maps API key is available.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/shpitdev/places-enricher/pkg/places"
)

const providerName = "gemini"

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string
}

// Client is safe for concurrent use.
type Client struct {
	client *genai.Client
	model  string
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("GEMINI_MODEL is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  strings.TrimSpace(cfg.APIKey),
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

type placeSchema struct {
	Found   bool   `json:"found"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	URL     string `json:"url"`
	MapsURI string `json:"maps_uri"`
	Summary string `json:"summary"`
	Hours   string `json:"hours"`
}

var placeOutputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"found":    {Type: genai.TypeBoolean},
		"name":     {Type: genai.TypeString},
		"address":  {Type: genai.TypeString},
		"phone":    {Type: genai.TypeString},
		"url":      {Type: genai.TypeString},
		"maps_uri": {Type: genai.TypeString},
		"summary":  {Type: genai.TypeString},
		"hours":    {Type: genai.TypeString},
	},
	Required: []string{"found", "name", "address", "phone", "url", "maps_uri", "summary", "hours"},
}

type coordSchema struct {
	Found bool    `json:"found"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

var coordOutputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"found": {Type: genai.TypeBoolean},
		"lat":   {Type: genai.TypeNumber},
		"lon":   {Type: genai.TypeNumber},
	},
	Required: []string{"found", "lat", "lon"},
}

func (c *Client) Search(ctx context.Context, req places.SearchRequest) (places.Place, bool, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return places.Place{}, false, nil
	}

	var parsed placeSchema
	if err := c.generate(ctx, "search", BuildSearchPrompt(query, req.Bias), placeOutputSchema, &parsed); err != nil {
		return places.Place{}, false, err
	}
	return decodePlace(parsed, req.Fields)
}

func decodePlace(parsed placeSchema, fields places.FieldSet) (places.Place, bool, error) {
	if !parsed.Found || strings.TrimSpace(parsed.Name) == "" {
		return places.Place{}, false, nil
	}
	p := places.Place{
		Name:    strings.TrimSpace(parsed.Name),
		Address: strings.TrimSpace(parsed.Address),
		Phone:   strings.TrimSpace(parsed.Phone),
		URL:     strings.TrimSpace(parsed.URL),
		MapsURI: strings.TrimSpace(parsed.MapsURI),
		Summary: strings.TrimSpace(parsed.Summary),
	}
	if h := strings.TrimSpace(parsed.Hours); h != "" {
		p.Hours = places.MarshalHours(map[string]string{"text": h})
	}
	return p.Restrict(fields), true, nil
}

func (c *Client) Geocode(ctx context.Context, address string) (places.Coordinates, bool, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return places.Coordinates{}, false, nil
	}
	var parsed coordSchema
	if err := c.generate(ctx, "geocode", BuildGeocodePrompt(address), coordOutputSchema, &parsed); err != nil {
		return places.Coordinates{}, false, err
	}
	if !parsed.Found {
		return places.Coordinates{}, false, nil
	}
	return places.Coordinates{Lat: parsed.Lat, Lon: parsed.Lon}, true, nil
}

func (c *Client) generate(ctx context.Context, op, prompt string, schema *genai.Schema, out any) error {
	resp, err := c.client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		return classifyErr(op, err)
	}
	if err := json.Unmarshal([]byte(resp.Text()), out); err != nil {
		return &places.RequestError{
			Provider: providerName,
			Op:       op,
			Err:      fmt.Errorf("parse structured json: %w", err),
		}
	}
	return nil
}

// BuildSearchPrompt renders the place lookup instruction for query.
func BuildSearchPrompt(query string, bias *places.Bias) string {
	near := ""
	if bias != nil {
		near = "\nPrefer places near latitude " + formatFloat(bias.Center.Lat) +
			", longitude " + formatFloat(bias.Center.Lon) + "."
	}
	return strings.TrimSpace(`
You are a place lookup tool. Given a search query (a business website domain or a business name), use web search
to find the single physical place (business location) it most likely refers to.

Return ONLY a single JSON object with these keys:
- found (boolean; false when no specific place can be identified)
- name (string)
- address (string; full postal address)
- phone (string)
- url (string; the business website)
- maps_uri (string; a Google Maps link for the place)
- summary (string; one sentence describing the place)
- hours (string; opening hours as published)

Rules:
- If you cannot find a field, set it to an empty string.
- Do not include extra keys.` + near + `

Query: ` + query + `
`)
}

// BuildGeocodePrompt renders the geocoding instruction for address.
func BuildGeocodePrompt(address string) string {
	return strings.TrimSpace(`
You are a geocoder. Return ONLY a JSON object {"found": boolean, "lat": number, "lon": number} with the WGS84
coordinates of the following address or place. Set found to false if it cannot be located.

Address: ` + address + `
`)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func classifyErr(op string, err error) error {
	if err == nil {
		return nil
	}
	re := &places.RequestError{Provider: providerName, Op: op, Err: err}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		re.StatusCode = apiErr.Code
		re.Status = strconv.Itoa(apiErr.Code)
		re.Transient = apiErr.Code == 429 || apiErr.Code/100 == 5
		return re
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		re.Transient = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		re.Transient = true
	}
	return re
}
