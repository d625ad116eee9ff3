// Package places defines the provider-neutral place lookup contract used by the
// enrichment pipeline.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bias narrows search relevance around a center. It is a hint, not a filter.
type Bias struct {
	Center Coordinates
	// RadiusMeters is ignored by providers that only accept a point. <=0 uses
	// DefaultBiasRadiusMeters.
	RadiusMeters float64
}

const DefaultBiasRadiusMeters = 5000

// Field names one place attribute that can be requested from a provider.
type Field string

const (
	FieldName    Field = "name"
	FieldAddress Field = "address"
	FieldPhone   Field = "phone"
	FieldURL     Field = "url"
	FieldMapsURI Field = "mapsUri"
	FieldSummary Field = "summary"
	FieldHours   Field = "hours"
)

// AllFields lists every field in output column order.
func AllFields() []Field {
	return []Field{FieldName, FieldAddress, FieldPhone, FieldURL, FieldMapsURI, FieldSummary, FieldHours}
}

// FieldSet is the set of fields a search should return.
type FieldSet map[Field]struct{}

// NewFieldSet builds a set from fields; no fields means all of them.
func NewFieldSet(fields ...Field) FieldSet {
	if len(fields) == 0 {
		fields = AllFields()
	}
	fs := make(FieldSet, len(fields))
	for _, f := range fields {
		fs[f] = struct{}{}
	}
	return fs
}

// ParseFields parses names like "name,phone" (case-insensitive).
func ParseFields(names []string) (FieldSet, error) {
	known := make(map[string]Field)
	for _, f := range AllFields() {
		known[strings.ToLower(string(f))] = f
	}
	var out []Field
	for _, raw := range names {
		for _, part := range strings.Split(raw, ",") {
			n := strings.ToLower(strings.TrimSpace(part))
			if n == "" {
				continue
			}
			f, ok := known[n]
			if !ok {
				return nil, fmt.Errorf("unknown place field %q", part)
			}
			out = append(out, f)
		}
	}
	return NewFieldSet(out...), nil
}

// Has reports whether f is requested. A nil set requests everything.
func (fs FieldSet) Has(f Field) bool {
	if fs == nil {
		return true
	}
	_, ok := fs[f]
	return ok
}

// Sorted returns the fields in output column order.
func (fs FieldSet) Sorted() []Field {
	var out []Field
	for _, f := range AllFields() {
		if fs.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Place is the first match of a search. Empty strings and nil Hours mean the
// provider did not return that attribute.
type Place struct {
	Name    string
	Address string
	Phone   string
	URL     string
	MapsURI string
	Summary string
	// Hours is the provider's structured opening hours, kept as JSON.
	Hours json.RawMessage
}

// Value returns the attribute for f as a string and whether it is present.
func (p Place) Value(f Field) (string, bool) {
	var v string
	switch f {
	case FieldName:
		v = p.Name
	case FieldAddress:
		v = p.Address
	case FieldPhone:
		v = p.Phone
	case FieldURL:
		v = p.URL
	case FieldMapsURI:
		v = p.MapsURI
	case FieldSummary:
		v = p.Summary
	case FieldHours:
		if len(p.Hours) == 0 || string(p.Hours) == "null" {
			return "", false
		}
		v = string(p.Hours)
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Restrict drops attributes that were not requested.
func (p Place) Restrict(fs FieldSet) Place {
	if !fs.Has(FieldName) {
		p.Name = ""
	}
	if !fs.Has(FieldAddress) {
		p.Address = ""
	}
	if !fs.Has(FieldPhone) {
		p.Phone = ""
	}
	if !fs.Has(FieldURL) {
		p.URL = ""
	}
	if !fs.Has(FieldMapsURI) {
		p.MapsURI = ""
	}
	if !fs.Has(FieldSummary) {
		p.Summary = ""
	}
	if !fs.Has(FieldHours) {
		p.Hours = nil
	}
	return p
}

// SearchRequest is one outbound text search.
type SearchRequest struct {
	Query  string
	Bias   *Bias
	Fields FieldSet
}

// Searcher performs text searches. found=false with a nil error is a normal
// no-match outcome; transport or API failures return a *RequestError.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (place Place, found bool, err error)
}

// Geocoder converts a free-text address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, bool, error)
}

// Client is a provider implementing both lookups.
type Client interface {
	Searcher
	Geocoder
}

// SearchFunc adapts a function to the Searcher interface.
type SearchFunc func(ctx context.Context, req SearchRequest) (Place, bool, error)

func (f SearchFunc) Search(ctx context.Context, req SearchRequest) (Place, bool, error) {
	return f(ctx, req)
}

// MarshalHours serializes structured hours, returning nil for empty input.
func MarshalHours(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" || string(b) == "{}" {
		return nil
	}
	return b
}
