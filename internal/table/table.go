// Package table holds the spreadsheet-shaped record sets the enricher reads
// and writes, and the Source/Sink adapters for CSV, XLSX and Postgres.
package table

import (
	"context"
	"fmt"
	"strings"
)

// Source loads a complete table.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// Sink persists a complete table, replacing whatever the destination held.
type Sink interface {
	Store(ctx context.Context, t *Table) error
}

// Cell is one value. Valid=false is null: an empty CSV/XLSX cell or SQL NULL.
type Cell struct {
	Value string
	Valid bool
}

// Str returns a non-null cell.
func Str(s string) Cell { return Cell{Value: s, Valid: true} }

// Null is the null cell.
var Null = Cell{}

type Row []Cell

// Table is a header plus rows. Rows may be shorter than Columns; missing cells
// read as null.
type Table struct {
	Columns []Column
	Rows    []Row
}

// New builds a table with text columns named cols.
func New(cols ...string) *Table {
	t := &Table{Columns: make([]Column, len(cols))}
	for i, c := range cols {
		t.Columns[i] = Column{Name: c, Type: TypeText, Nullable: true}
	}
	return t
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Index finds a column by name, ignoring case and surrounding space. It
// returns -1 when the column is absent.
func (t *Table) Index(name string) int {
	want := strings.TrimSpace(name)
	for i, c := range t.Columns {
		if strings.EqualFold(strings.TrimSpace(c.Name), want) {
			return i
		}
	}
	return -1
}

// MustIndex is Index for required columns.
func (t *Table) MustIndex(name string) (int, error) {
	i := t.Index(name)
	if i < 0 {
		return -1, fmt.Errorf("missing required column %q", name)
	}
	return i, nil
}

// At returns the cell at row r, column c.
func (t *Table) At(r, c int) Cell {
	row := t.Rows[r]
	if c < 0 || c >= len(row) {
		return Null
	}
	return row[c]
}

// Append adds a row, padding or rejecting it against the header width.
func (t *Table) Append(row Row) error {
	if len(row) > len(t.Columns) {
		return fmt.Errorf("row has %d columns, header has %d", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Limit keeps the first n rows. n <= 0 keeps everything.
func (t *Table) Limit(n int) {
	if n > 0 && n < len(t.Rows) {
		t.Rows = t.Rows[:n]
	}
}

// cellsFromStrings turns parsed spreadsheet values into cells, treating ""
// as null.
func cellsFromStrings(vals []string) Row {
	row := make(Row, len(vals))
	for i, v := range vals {
		if v != "" {
			row[i] = Str(v)
		}
	}
	return row
}

// stringsFromRow renders a row at the header width, null as "".
func stringsFromRow(row Row, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		if row[i].Valid {
			out[i] = row[i].Value
		}
	}
	return out
}
