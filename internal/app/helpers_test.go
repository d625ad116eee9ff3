package app_test

import (
	"net/http/httptest"
	"testing"

	"github.com/shpitdev/places-enricher/internal/mockplaces"
)

func newHTTPServer(t *testing.T, srv *mockplaces.Server) string {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}
