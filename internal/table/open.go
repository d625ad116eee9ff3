package table

import "fmt"

// Open returns the Source for an input path.
func Open(path string) (Source, error) {
	switch DetectFormat(path) {
	case FormatXLSX:
		return XLSXFile{Path: path}, nil
	case FormatCSV:
		return CSVFile{Path: path}, nil
	default:
		return nil, fmt.Errorf("unsupported input %q: postgres is output-only", path)
	}
}

// Create returns the Sink for an output path or DSN. pgTable names the target
// table for Postgres destinations.
func Create(dest, pgTable string) Sink {
	switch DetectFormat(dest) {
	case FormatPostgres:
		return Postgres{DSN: dest, Table: pgTable}
	case FormatXLSX:
		return XLSXFile{Path: dest}
	default:
		return CSVFile{Path: dest}
	}
}
