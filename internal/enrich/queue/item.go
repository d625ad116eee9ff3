// Package queue holds the enrichment work units and the shared queue workers
// pull them from.
package queue

// WorkItem is one record's pending lookup: an identifier plus ordered fallback
// queries. Queries is never mutated; Cursor marks the next query to try.
type WorkItem struct {
	ID      string
	Queries []string
	Cursor  int
	// Attempted counts queries already issued for this item.
	Attempted int
}

// NewWorkItem copies queries so later edits by the caller cannot leak in.
func NewWorkItem(id string, queries []string) WorkItem {
	q := make([]string, len(queries))
	copy(q, queries)
	return WorkItem{ID: id, Queries: q}
}

// Current returns the query at the cursor.
func (w WorkItem) Current() (string, bool) {
	if w.Cursor < 0 || w.Cursor >= len(w.Queries) {
		return "", false
	}
	return w.Queries[w.Cursor], true
}

// Remaining is the number of queries not yet tried, including Current.
func (w WorkItem) Remaining() int {
	if w.Cursor >= len(w.Queries) {
		return 0
	}
	return len(w.Queries) - w.Cursor
}

// Advance records one attempt and moves to the next fallback query. The
// returned item shares the immutable query slice.
func (w WorkItem) Advance() WorkItem {
	w.Cursor++
	w.Attempted++
	return w
}

// HasNext reports whether a fallback query exists after Current.
func (w WorkItem) HasNext() bool {
	return w.Cursor+1 < len(w.Queries)
}
