package table

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

const DefaultPostgresTable = "enriched_places"

// Postgres is a Sink that replaces the contents of one table. The table is
// created on first use from the column schema.
type Postgres struct {
	DSN   string
	Table string
}

func (p Postgres) Store(ctx context.Context, t *Table) error {
	conn, err := pgx.Connect(ctx, p.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(context.Background())

	ident := tableIdentifier(p.Table)
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(context.Background()) //nolint:errcheck

	if _, err := tx.Exec(ctx, CreateTableSQL(ident, t.Columns)); err != nil {
		return fmt.Errorf("create table %s: %w", ident.Sanitize(), err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM "+ident.Sanitize()); err != nil {
		return fmt.Errorf("clear table %s: %w", ident.Sanitize(), err)
	}

	width := len(t.Columns)
	n, err := tx.CopyFrom(ctx, ident, t.Names(), pgx.CopyFromSlice(len(t.Rows), func(i int) ([]any, error) {
		vals := make([]any, width)
		row := t.Rows[i]
		for c := 0; c < width; c++ {
			if c < len(row) && row[c].Valid {
				vals[c] = row[c].Value
			}
		}
		return vals, nil
	}))
	if err != nil {
		return fmt.Errorf("copy rows: %w", err)
	}
	if int(n) != len(t.Rows) {
		return fmt.Errorf("copy rows: wrote %d of %d", n, len(t.Rows))
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateTableSQL renders CREATE TABLE IF NOT EXISTS for cols.
func CreateTableSQL(ident pgx.Identifier, cols []Column) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(ident.Sanitize())
	b.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgx.Identifier{c.Name}.Sanitize())
		b.WriteString(" ")
		b.WriteString(sqlType(c.Type))
		if !c.Nullable {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(")")
	return b.String()
}

// tableIdentifier splits "schema.table"; empty means DefaultPostgresTable.
func tableIdentifier(name string) pgx.Identifier {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultPostgresTable
	}
	return pgx.Identifier(strings.Split(name, "."))
}
