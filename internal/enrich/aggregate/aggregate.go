// Package aggregate joins enrichment results back onto the input table.
package aggregate

import (
	"strings"

	"github.com/shpitdev/places-enricher/internal/enrich"
	"github.com/shpitdev/places-enricher/internal/table"
	"github.com/shpitdev/places-enricher/pkg/places"
)

// CollisionPrefix is prepended to an enrichment column whose name is already
// taken by an input column.
const CollisionPrefix = "place_"

type Options struct {
	IDColumn string
	// Fields selects the enrichment columns. nil means all.
	Fields places.FieldSet
}

// Report counts how the join went.
type Report struct {
	Rows     int
	Enriched int
	// Orphans are results whose identifier is not in the input.
	Orphans int
}

// Join outer-joins results onto in by identifier. Every input row appears
// once, in input order, followed by the enrichment columns (null without a
// result). Rows sharing an identifier all get the first result for it.
// Orphan results are appended with only the identifier and enrichment set.
func Join(in *table.Table, results []enrich.Result, opts Options) (*table.Table, Report, error) {
	idx, err := in.MustIndex(opts.IDColumn)
	if err != nil {
		return nil, Report{}, err
	}

	fields := opts.Fields.Sorted()
	out := &table.Table{Columns: Columns(in.Columns, fields)}
	width := len(in.Columns)

	byID := make(map[string]places.Place, len(results))
	var order []string
	for _, r := range results {
		id := strings.TrimSpace(r.ID)
		if _, dup := byID[id]; dup {
			continue
		}
		byID[id] = r.Place
		order = append(order, id)
	}

	var rep Report
	joined := make(map[string]struct{}, len(byID))
	for i, src := range in.Rows {
		row := make(table.Row, len(out.Columns))
		copy(row, src)

		id := in.At(i, idx)
		if p, ok := byID[strings.TrimSpace(id.Value)]; ok && id.Valid {
			fill(row[width:], p, fields)
			joined[strings.TrimSpace(id.Value)] = struct{}{}
			rep.Enriched++
		}
		out.Rows = append(out.Rows, row)
	}
	rep.Rows = len(in.Rows)

	for _, id := range order {
		if _, ok := joined[id]; ok {
			continue
		}
		row := make(table.Row, len(out.Columns))
		row[idx] = table.Str(id)
		fill(row[width:], byID[id], fields)
		out.Rows = append(out.Rows, row)
		rep.Orphans++
	}
	return out, rep, nil
}

// Columns returns the output schema: the input columns, then one nullable
// column per field.
func Columns(input []table.Column, fields []places.Field) []table.Column {
	taken := make(map[string]struct{}, len(input))
	cols := make([]table.Column, 0, len(input)+len(fields))
	for _, c := range input {
		taken[strings.ToLower(strings.TrimSpace(c.Name))] = struct{}{}
		c.Nullable = true
		cols = append(cols, c)
	}
	for _, f := range fields {
		name := string(f)
		if _, clash := taken[strings.ToLower(name)]; clash {
			name = CollisionPrefix + name
		}
		typ := table.TypeText
		if f == places.FieldHours {
			typ = table.TypeJSON
		}
		cols = append(cols, table.Column{Name: name, Type: typ, Nullable: true})
	}
	return cols
}

func fill(dst table.Row, p places.Place, fields []places.Field) {
	for i, f := range fields {
		if v, ok := p.Value(f); ok {
			dst[i] = table.Str(v)
		}
	}
}
