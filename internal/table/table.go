// Package table defines the in-memory relation passed between pipeline
// stages. Cell values are opaque strings; typing is the query engine's
// problem.
package table

import "fmt"

// Table is an ordered-column, row-oriented relation.
type Table struct {
	// Name identifies the sheet this table came from (file stem or sheet
	// name). Used for logging and the work-type rule.
	Name string

	// Columns holds the ordered column names.
	Columns []string

	// Rows holds cell values, one slice per row, aligned with Columns.
	Rows [][]string
}

// New creates a table and validates row widths.
func New(name string, columns []string, rows [][]string) (*Table, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(columns))
		}
	}
	return &Table{Name: name, Columns: columns, Rows: rows}, nil
}

// NumRows returns the row count.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// RenameColumns replaces the column list in place. The new list must have
// the same width as the old one.
func (t *Table) RenameColumns(columns []string) error {
	if len(columns) != len(t.Columns) {
		return fmt.Errorf("got %d column names, want %d", len(columns), len(t.Columns))
	}
	t.Columns = columns
	return nil
}
