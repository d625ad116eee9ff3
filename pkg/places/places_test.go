package places_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/places-enricher/pkg/places"
)

func TestParseFields(t *testing.T) {
	fs, err := places.ParseFields([]string{"Name, phone", "hours"})
	require.NoError(t, err)
	assert.Equal(t, []places.Field{places.FieldName, places.FieldPhone, places.FieldHours}, fs.Sorted())

	all, err := places.ParseFields(nil)
	require.NoError(t, err)
	assert.Equal(t, places.AllFields(), all.Sorted())

	_, err = places.ParseFields([]string{"rating"})
	assert.Error(t, err)
}

func TestPlaceValueAndRestrict(t *testing.T) {
	p := places.Place{
		Name:  "Vans",
		Phone: "  ",
		Hours: json.RawMessage(`{"openNow":true}`),
	}

	v, ok := p.Value(places.FieldName)
	assert.True(t, ok)
	assert.Equal(t, "Vans", v)

	_, ok = p.Value(places.FieldPhone)
	assert.False(t, ok, "whitespace-only values are absent")

	_, ok = p.Value(places.FieldAddress)
	assert.False(t, ok)

	r := p.Restrict(places.NewFieldSet(places.FieldName))
	_, ok = r.Value(places.FieldHours)
	assert.False(t, ok)
	assert.Equal(t, "Vans", r.Name)
}

func TestMarshalHours(t *testing.T) {
	assert.Nil(t, places.MarshalHours(nil))
	assert.Nil(t, places.MarshalHours(map[string]any{}))
	assert.JSONEq(t, `{"a":1}`, string(places.MarshalHours(map[string]int{"a": 1})))
}

func TestDoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"value":"x"}`))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`quota exceeded for key=AIzaSECRET`))
		case "/garbage":
			_, _ = w.Write([]byte(`not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	get := func(path string, out any) error {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		return places.DoJSON(srv.Client(), "test", "get", req, out)
	}

	var ok struct {
		Value string `json:"value"`
	}
	require.NoError(t, get("/ok", &ok))
	assert.Equal(t, "x", ok.Value)

	err := get("/limited", &ok)
	var re *places.RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, http.StatusTooManyRequests, re.StatusCode)
	assert.True(t, re.Transient)
	assert.False(t, strings.Contains(err.Error(), "AIzaSECRET"))

	err = get("/missing", &ok)
	require.True(t, errors.As(err, &re))
	assert.False(t, re.Transient)

	err = get("/garbage", &ok)
	assert.True(t, places.IsRequestError(err))
}

func TestTransportError(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/unreachable", nil)
	require.NoError(t, err)
	err = places.DoJSON(http.DefaultClient, "test", "get", req, &struct{}{})
	var re *places.RequestError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 0, re.StatusCode)
	assert.NotNil(t, re.Unwrap())
}
