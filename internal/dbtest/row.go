package dbtest

import (
	"fmt"
	"strings"
)

// Row is one result row: ordered column names and their values.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs column names with values. Both slices must have the same length.
func NewRow(columns []string, values []any) Row {
	if len(columns) != len(values) {
		panic(fmt.Sprintf("dbtest: %d columns but %d values", len(columns), len(values)))
	}
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string { return r.columns }
func (r Row) Values() []any     { return r.values }
func (r Row) Len() int          { return len(r.values) }

// Index returns the i-th value.
func (r Row) Index(i int) any {
	return r.values[i]
}

// Lookup returns the value of the named column.
func (r Row) Lookup(name string) (any, bool) {
	for i, col := range r.columns {
		if col == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// Get returns the value of the named column, or nil if there is none.
func (r Row) Get(name string) any {
	v, _ := r.Lookup(name)
	return v
}

func (r Row) String() string {
	parts := make([]string, len(r.values))
	for i, v := range r.values {
		parts[i] = r.columns[i] + "=" + repr(v)
	}
	return "Row(" + strings.Join(parts, ", ") + ")"
}
