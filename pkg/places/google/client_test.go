package google_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/places-enricher/pkg/places"
	"github.com/shpitdev/places-enricher/pkg/places/google"
)

func TestFieldMask(t *testing.T) {
	assert.Equal(t,
		"places.id,places.displayName,places.regularOpeningHours",
		google.FieldMask(places.NewFieldSet(places.FieldHours, places.FieldName)),
	)
}

func TestSearch(t *testing.T) {
	var gotBody map[string]any
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/places:searchText", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		gotHeaders = r.Header.Clone()
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotBody = body

		switch gotBody["textQuery"] {
		case "vans.com":
			_, _ = w.Write([]byte(`{"places":[{
				"id":"abc",
				"displayName":{"text":"Vans","languageCode":"en"},
				"formattedAddress":"1 Main St, Seattle, WA",
				"nationalPhoneNumber":"(206) 555-0100",
				"websiteUri":"https://vans.com/",
				"googleMapsUri":"https://maps.google.com/?cid=1",
				"editorialSummary":{"text":"Shoe store."},
				"regularOpeningHours":{"openNow":true,"weekdayDescriptions":["Monday: 9AM-5PM"]}
			}]}`))
		case "partial":
			_, _ = w.Write([]byte(`{"places":[{"id":"p","displayName":{"text":"Partial"}}]}`))
		case "boom":
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500}}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	c, err := google.New(google.Config{APIKey: "test-key", PlacesBaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("match maps every field", func(t *testing.T) {
		p, found, err := c.Search(ctx, places.SearchRequest{
			Query:  "vans.com",
			Bias:   &places.Bias{Center: places.Coordinates{Lat: 47.6, Lon: -122.3}},
			Fields: places.NewFieldSet(),
		})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Vans", p.Name)
		assert.Equal(t, "1 Main St, Seattle, WA", p.Address)
		assert.Equal(t, "(206) 555-0100", p.Phone)
		assert.Equal(t, "https://vans.com/", p.URL)
		assert.Equal(t, "https://maps.google.com/?cid=1", p.MapsURI)
		assert.Equal(t, "Shoe store.", p.Summary)
		assert.JSONEq(t, `{"openNow":true,"weekdayDescriptions":["Monday: 9AM-5PM"]}`, string(p.Hours))

		assert.Equal(t, "test-key", gotHeaders.Get("X-Goog-Api-Key"))
		assert.Contains(t, gotHeaders.Get("X-Goog-FieldMask"), "places.googleMapsUri")
		bias := gotBody["locationBias"].(map[string]any)["circle"].(map[string]any)
		assert.InDelta(t, float64(places.DefaultBiasRadiusMeters), bias["radius"], 0.001)
	})

	t.Run("absent fields stay absent", func(t *testing.T) {
		p, found, err := c.Search(ctx, places.SearchRequest{Query: "partial", Fields: places.NewFieldSet()})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "Partial", p.Name)
		assert.Empty(t, p.Address)
		assert.Nil(t, p.Hours)
	})

	t.Run("zero matches is not an error", func(t *testing.T) {
		_, found, err := c.Search(ctx, places.SearchRequest{Query: "nowhere"})
		require.NoError(t, err)
		assert.False(t, found)
		_, hasBias := gotBody["locationBias"]
		assert.False(t, hasBias)
	})

	t.Run("server error is a request error", func(t *testing.T) {
		_, found, err := c.Search(ctx, places.SearchRequest{Query: "boom"})
		assert.False(t, found)
		var re *places.RequestError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, http.StatusInternalServerError, re.StatusCode)
		assert.True(t, re.Transient)
	})
}

func TestGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/maps/api/geocode/json", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		switch r.URL.Query().Get("address") {
		case "Seattle, WA":
			_, _ = w.Write([]byte(`{"status":"OK","results":[{"geometry":{"location":{"lat":47.6062,"lng":-122.3321}}}]}`))
		case "denied":
			_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
		default:
			_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
		}
	}))
	defer srv.Close()

	c, err := google.New(google.Config{APIKey: "test-key", GeocodeBaseURL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()

	coords, found, err := c.Geocode(ctx, "Seattle, WA")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 47.6062, coords.Lat, 1e-9)
	assert.InDelta(t, -122.3321, coords.Lon, 1e-9)

	_, found, err = c.Geocode(ctx, "nowhere")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = c.Geocode(ctx, "denied")
	assert.True(t, places.IsRequestError(err))
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := google.New(google.Config{})
	assert.Error(t, err)
}
