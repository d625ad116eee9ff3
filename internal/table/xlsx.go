package table

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// ReadXLSX reads the first worksheet: row 1 is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read header: sheet %q is empty", sheets[0])
	}

	t := New(rows[0]...)
	for i, vals := range rows[1:] {
		if err := t.Append(cellsFromStrings(vals)); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i+1, err)
		}
	}
	return t, nil
}

// WriteXLSX writes t to a single-sheet workbook. Null cells are left unset.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for c, name := range t.Names() {
		if err := setCell(f, sheet, c, 0, name); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, cell := range row {
			if !cell.Valid {
				continue
			}
			if err := setCell(f, sheet, c, r+1, cell.Value); err != nil {
				return err
			}
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, v string) error {
	ref, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return err
	}
	if err := f.SetCellStr(sheet, ref, v); err != nil {
		return fmt.Errorf("set %s: %w", ref, err)
	}
	return nil
}

// XLSXFile is a Source and Sink backed by a workbook on disk.
type XLSXFile struct {
	Path string
}

func (f XLSXFile) Load(_ context.Context) (*Table, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer fh.Close()
	return ReadXLSX(fh)
}

func (f XLSXFile) Store(_ context.Context, t *Table) error {
	fh, err := os.Create(f.Path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := WriteXLSX(fh, t); err != nil {
		_ = fh.Close()
		return err
	}
	return fh.Close()
}
