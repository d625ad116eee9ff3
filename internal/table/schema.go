package table

import "strings"

// ColumnType captures the storage-relevant type of a column.
type ColumnType string

const (
	TypeText ColumnType = "text"
	// TypeJSON holds a serialized JSON document (opening hours).
	TypeJSON ColumnType = "json"
)

// Column is the minimal behavior-relevant schema of one column.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Format is where a table lives.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatXLSX     Format = "xlsx"
	FormatPostgres Format = "postgres"
)

// DetectFormat picks the format for a path or DSN. Unknown extensions are CSV.
func DetectFormat(dest string) Format {
	s := strings.ToLower(strings.TrimSpace(dest))
	switch {
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return FormatPostgres
	case strings.HasSuffix(s, ".xlsx"), strings.HasSuffix(s, ".xlsm"):
		return FormatXLSX
	default:
		return FormatCSV
	}
}

func sqlType(t ColumnType) string {
	switch t {
	case TypeJSON:
		return "jsonb"
	default:
		return "text"
	}
}
