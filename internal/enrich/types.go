// Package enrich holds the result and event types produced by the enrichment
// pipeline.
package enrich

import (
	"time"

	"github.com/shpitdev/places-enricher/pkg/places"
)

// Result is the place found for one record identifier.
type Result struct {
	ID    string
	Place places.Place
	// Query is the fallback query that matched; Attempt is its 1-based position
	// among the queries issued for the item.
	Query   string
	Attempt int
}

// Outcome classifies one query attempt.
type Outcome string

const (
	OutcomeMatched      Outcome = "matched"
	OutcomeNoMatch      Outcome = "no_match"
	OutcomeRequestError Outcome = "request_error"
)

// Attempt is the explicit result of issuing one query for an item.
type Attempt struct {
	ID       string
	Query    string
	Number   int
	Outcome  Outcome
	Err      error
	Duration time.Duration
	// Requeued is true when a no-match or request error sent the item back to
	// the queue with its next fallback query.
	Requeued bool
}

// Resolution is the final state of one work item.
type Resolution struct {
	ID       string
	Matched  bool
	Attempts int
	// Last is the outcome of the final attempt; empty when the item had no queries.
	Last Outcome
}

// Stats summarises one pipeline run.
type Stats struct {
	Items         int
	Attempts      int
	Matched       int
	Exhausted     int
	NoMatches     int
	RequestErrors int
	Fallbacks     int
	Duration      time.Duration
}
