// Package tabular holds the column-ordered string table the refresh pipeline
// persists as CSV. Values are untyped strings and the empty string stands for
// a missing value, which keeps schema reconciliation between files written by
// different versions of the pipeline a pure column-set operation.
package tabular

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
)

// Record is a single row keyed by column name. Absent keys and empty values
// both read back as "".
type Record map[string]string

// Table is an ordered set of columns plus rows. Rows may carry keys outside
// Columns; those are invisible until the column is registered.
type Table struct {
	Columns []string
	Rows    []Record
}

func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

func (t *Table) IsEmpty() bool { return t.Len() == 0 }

func (t *Table) Append(rows ...Record) {
	t.Rows = append(t.Rows, rows...)
}

// HasColumn reports whether name is a registered column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// EnsureColumns registers any missing names at the end of the column order.
// Existing rows implicitly gain an empty value for each added column.
func (t *Table) EnsureColumns(names ...string) {
	for _, name := range names {
		if !t.HasColumn(name) {
			t.Columns = append(t.Columns, name)
		}
	}
}

// SameColumns reports whether both tables carry identical columns in
// identical order.
func SameColumns(a, b *Table) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i] != b.Columns[i] {
			return false
		}
	}
	return true
}

// AlignSchemas widens both tables to the union of their columns. Column order
// is a's order first, then b's extras in b's order. Rows are untouched; the
// widened columns read as empty.
func AlignSchemas(a, b *Table) {
	a.EnsureColumns(b.Columns...)
	b.EnsureColumns(a.Columns...)
}

// Clone copies the table, including per-row maps.
func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		clone := make(Record, len(row))
		for k, v := range row {
			clone[k] = v
		}
		out.Rows = append(out.Rows, clone)
	}
	return out
}

// SortBy orders rows by the given columns ascending, comparing values as
// strings. The sort is stable so equal keys keep their input order.
func (t *Table) SortBy(columns ...string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		for _, col := range columns {
			a, b := t.Rows[i][col], t.Rows[j][col]
			if a != b {
				return a < b
			}
		}
		return false
	})
}

// WriteCSV emits the header plus every row, projecting each row onto the
// registered columns.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// EncodeCSV renders the table into buf.
func (t *Table) EncodeCSV(buf *bytes.Buffer) error {
	return t.WriteCSV(buf)
}

// ReadCSV parses a table from CSV. The first record is the header; an empty
// input yields an empty table with no columns.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	table := New(header...)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		row := make(Record, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
