// Package mockplaces serves a fake subset of the Google Places, Google
// Geocoding and Azure Maps APIs from fixtures, recording every call.
package mockplaces

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Call records a request made to the mock service.
type Call struct {
	Provider string
	Op       string
	Query    string
}

// Server is safe for concurrent use.
type Server struct {
	places  map[string]PlaceFixture
	geocode map[string]GeocodeFixture

	mu    sync.Mutex
	calls []Call

	expectedKey string
}

// New constructs a server answering from f.
func New(f Fixtures) *Server {
	s := &Server{
		places:  make(map[string]PlaceFixture, len(f.Places)),
		geocode: make(map[string]GeocodeFixture, len(f.Geocode)),
	}
	for _, p := range f.Places {
		s.places[key(p.Query)] = p
	}
	for _, g := range f.Geocode {
		s.geocode[key(g.Address)] = g
	}
	return s
}

// RequireKey enforces that requests carry key in the provider's credential
// header (or the "key" query parameter for geocoding). Empty disables the check.
func (s *Server) RequireKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expectedKey = strings.TrimSpace(key)
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns the gin engine serving the mock API.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	// "places:searchText" is not a valid gin route segment, so the v1 tree is
	// matched by hand.
	r.POST("/v1/*action", s.googleSearchText)
	r.GET("/maps/api/geocode/json", s.googleGeocode)
	r.GET("/search/poi/json", s.azureSearch)
	r.GET("/geocode", s.azureGeocode)
	return r
}

func (s *Server) record(provider, op, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Provider: provider, Op: op, Query: query})
}

func (s *Server) authorize(c *gin.Context, got string) bool {
	s.mu.Lock()
	expected := s.expectedKey
	s.mu.Unlock()

	if expected == "" || got == expected {
		return true
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "invalid key"}})
	return false
}

// lookup finds the fixture for query. A fixture with a Status is answered
// here as an error and reported with handled=true.
func (s *Server) lookup(c *gin.Context, query string) (p PlaceFixture, found, handled bool) {
	p, found = s.places[key(query)]
	if found && p.Status != 0 {
		c.JSON(p.Status, gin.H{"error": gin.H{"code": p.Status, "message": "mock failure for " + p.Query}})
		return PlaceFixture{}, false, true
	}
	return p, found, false
}

type textQuery struct {
	TextQuery string `json:"textQuery"`
}

func (s *Server) googleSearchText(c *gin.Context) {
	if c.Param("action") != "/places:searchText" {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "not found"}})
		return
	}
	var req textQuery
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": err.Error()}})
		return
	}
	s.record("google", "searchText", req.TextQuery)
	if !s.authorize(c, c.GetHeader("X-Goog-Api-Key")) {
		return
	}

	p, found, handled := s.lookup(c, req.TextQuery)
	if handled {
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	mask := fieldMask(c.GetHeader("X-Goog-FieldMask"))
	out := gin.H{"id": "mock-" + strings.ReplaceAll(key(p.Query), " ", "-")}
	set := func(field string, v any, present bool) {
		if present && mask(field) {
			out[field] = v
		}
	}
	set("displayName", gin.H{"text": p.Place.Name, "languageCode": "en"}, p.Place.Name != "")
	set("formattedAddress", p.Place.Address, p.Place.Address != "")
	set("nationalPhoneNumber", p.Place.Phone, p.Place.Phone != "")
	set("websiteUri", p.Place.URL, p.Place.URL != "")
	set("googleMapsUri", p.Place.MapsURI, p.Place.MapsURI != "")
	set("editorialSummary", gin.H{"text": p.Place.Summary, "languageCode": "en"}, p.Place.Summary != "")
	set("regularOpeningHours", p.Place.Hours, len(p.Place.Hours) > 0)
	c.JSON(http.StatusOK, gin.H{"places": []gin.H{out}})
}

// fieldMask reports whether a response field was requested. An empty or "*"
// mask requests everything.
func fieldMask(header string) func(string) bool {
	want := make(map[string]bool)
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "*" || part == "places.*" {
			return func(string) bool { return true }
		}
		want[strings.TrimPrefix(part, "places.")] = true
	}
	if len(want) == 0 {
		return func(string) bool { return true }
	}
	return func(f string) bool { return want[f] }
}

func (s *Server) googleGeocode(c *gin.Context) {
	address := c.Query("address")
	s.record("google", "geocode", address)
	if !s.authorize(c, c.Query("key")) {
		return
	}
	g, ok := s.geocode[key(address)]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "ZERO_RESULTS", "results": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"results": []gin.H{{
			"formatted_address": g.Address,
			"geometry":          gin.H{"location": gin.H{"lat": g.Lat, "lng": g.Lon}},
		}},
	})
}

func (s *Server) azureSearch(c *gin.Context) {
	query := c.Query("query")
	s.record("azure", "poiSearch", query)
	if !s.authorize(c, c.GetHeader("subscription-key")) {
		return
	}
	p, found, handled := s.lookup(c, query)
	if handled {
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"results": []any{}})
		return
	}

	poi := gin.H{"name": p.Place.Name}
	if p.Place.Phone != "" {
		poi["phone"] = p.Place.Phone
	}
	if p.Place.URL != "" {
		poi["url"] = p.Place.URL
	}
	if len(p.Place.Hours) > 0 && c.Query("openingHours") != "" {
		poi["openingHours"] = p.Place.Hours
	}
	c.JSON(http.StatusOK, gin.H{"results": []gin.H{{
		"type":    "POI",
		"poi":     poi,
		"address": gin.H{"freeformAddress": p.Place.Address},
	}}})
}

func (s *Server) azureGeocode(c *gin.Context) {
	address := c.Query("query")
	s.record("azure", "geocode", address)
	if !s.authorize(c, c.GetHeader("subscription-key")) {
		return
	}
	g, ok := s.geocode[key(address)]
	if !ok {
		c.JSON(http.StatusOK, gin.H{"type": "FeatureCollection", "features": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type": "FeatureCollection",
		"features": []gin.H{{
			"type":     "Feature",
			"geometry": gin.H{"type": "Point", "coordinates": []float64{g.Lon, g.Lat}},
		}},
	})
}
