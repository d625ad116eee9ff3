package gemini

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/shpitdev/places-enricher/pkg/places"
)

type timeoutNetErr struct{}

func (timeoutNetErr) Error() string   { return "i/o timeout" }
func (timeoutNetErr) Timeout() bool   { return true }
func (timeoutNetErr) Temporary() bool { return true }

func TestClassifyErr(t *testing.T) {
	tests := []struct {
		name          string
		in            error
		wantTransient bool
	}{
		{name: "api_429", in: genai.APIError{Code: 429}, wantTransient: true},
		{name: "api_500", in: genai.APIError{Code: 500}, wantTransient: true},
		{name: "api_401", in: genai.APIError{Code: 401}, wantTransient: false},
		{name: "net_timeout", in: timeoutNetErr{}, wantTransient: true},
		{name: "other", in: errors.New("boom"), wantTransient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyErr("search", tt.in)
			var re *places.RequestError
			if !errors.As(got, &re) {
				t.Fatalf("expected *places.RequestError, got %T", got)
			}
			if re.Transient != tt.wantTransient {
				t.Fatalf("transient=%v want=%v (err=%v)", re.Transient, tt.wantTransient, got)
			}
		})
	}

	if classifyErr("search", nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}

func TestDecodePlace(t *testing.T) {
	if _, found, _ := decodePlace(placeSchema{Found: false, Name: "x"}, nil); found {
		t.Fatalf("found=false must be a no-match")
	}
	if _, found, _ := decodePlace(placeSchema{Found: true, Name: "  "}, nil); found {
		t.Fatalf("empty name must be a no-match")
	}

	p, found, err := decodePlace(placeSchema{Found: true, Name: " Vans ", Hours: "Mon 9-5"}, places.NewFieldSet())
	if err != nil || !found {
		t.Fatalf("unexpected: found=%v err=%v", found, err)
	}
	if p.Name != "Vans" || string(p.Hours) != `{"text":"Mon 9-5"}` {
		t.Fatalf("unexpected place: %#v", p)
	}
	if p.Address != "" {
		t.Fatalf("absent address must stay empty")
	}
}

func TestBuildSearchPrompt(t *testing.T) {
	p := BuildSearchPrompt("vans.com", &places.Bias{Center: places.Coordinates{Lat: 47.6, Lon: -122.3}})
	if !strings.HasSuffix(p, "Query: vans.com") {
		t.Fatalf("prompt must end with the query: %q", p)
	}
	if !strings.Contains(p, "latitude 47.600000") {
		t.Fatalf("prompt must carry the bias: %q", p)
	}
	if strings.Contains(BuildSearchPrompt("x", nil), "latitude") {
		t.Fatalf("no bias expected")
	}
}
