package app

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/places-enricher/pkg/places"
)

type stubClient struct {
	search func(ctx context.Context, req places.SearchRequest) (places.Place, bool, error)
}

func (s stubClient) Search(ctx context.Context, req places.SearchRequest) (places.Place, bool, error) {
	return s.search(ctx, req)
}

func (stubClient) Geocode(context.Context, string) (places.Coordinates, bool, error) {
	return places.Coordinates{}, false, nil
}

func TestTracedClient_CountsSendsPerQuery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	c := newTracedClient(stubClient{search: func(context.Context, places.SearchRequest) (places.Place, bool, error) {
		return places.Place{Name: "Vans"}, true, nil
	}}, log, time.Second)

	for range 2 {
		_, found, err := c.Search(context.Background(), places.SearchRequest{Query: "vans.com"})
		require.NoError(t, err)
		assert.True(t, found)
	}
	_, _, err := c.Search(context.Background(), places.SearchRequest{Query: "other.com"})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"query":"vans.com","send":2`)
	assert.Contains(t, out, `"query":"other.com","send":1`)
	assert.Contains(t, out, `"name":"Vans"`)
}

func TestTracedClient_ErrorIsRedactedAndMarkedTransient(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	reqErr := &places.RequestError{
		Provider:   "google",
		Op:         "searchText",
		StatusCode: 503,
		Status:     "503 Service Unavailable",
		Transient:  true,
		Err:        errors.New("GET https://example.com/?key=SECRET123"),
	}
	c := newTracedClient(stubClient{search: func(context.Context, places.SearchRequest) (places.Place, bool, error) {
		return places.Place{}, false, reqErr
	}}, log, time.Second)

	_, _, err := c.Search(context.Background(), places.SearchRequest{Query: "flaky.com"})
	require.ErrorIs(t, err, reqErr)

	out := buf.String()
	assert.Contains(t, out, `"transient":true`)
	assert.Contains(t, out, "places response: error")
	assert.NotContains(t, out, "SECRET123")
}

func TestIsTransient(t *testing.T) {
	t.Parallel()

	assert.False(t, isTransient(errors.New("boom")))
	assert.False(t, isTransient(&places.RequestError{Transient: false}))
	assert.True(t, isTransient(&places.RequestError{Transient: true}))
}
