// Package queries derives the ordered fallback search queries for one record.
package queries

import (
	"net/url"
	"strings"
)

// Build returns the queries to try for a record, most specific first: the
// website's host name, then the display name. Empty and repeated queries are
// skipped, so a record with neither yields nil.
func Build(rawURL, name string) []string {
	var out []string
	add := func(q string) {
		q = strings.TrimSpace(q)
		if q == "" {
			return
		}
		for _, have := range out {
			if strings.EqualFold(have, q) {
				return
			}
		}
		out = append(out, q)
	}
	add(Host(rawURL))
	add(name)
	return out
}

// Host extracts the host name from a facility URL. Values without a scheme
// ("www.vans.com/shoes") are accepted; anything that does not look like a host
// returns "".
func Host(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" || strings.ContainsAny(s, " \t") {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}
