package warehouse

import (
	"projectdw/internal/common"
	"projectdw/internal/schema"
)

// Table is the in-memory content of one warehouse file.
type Table struct {
	Schema schema.Table
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Empty reports whether the table holds no data rows.
func (t *Table) Empty() bool {
	return len(t.Rows) == 0
}

// Cell returns the value of column col in row i, or "" when the column is
// not declared.
func (t *Table) Cell(i int, col string) string {
	c := t.Schema.Index(col)
	if c < 0 || c >= len(t.Rows[i]) {
		return ""
	}
	return t.Rows[i][c]
}

// KeySet returns the distinct values of col.
func (t *Table) KeySet(col string) map[string]bool {
	keys := make(map[string]bool, len(t.Rows))
	for i := range t.Rows {
		keys[t.Cell(i, col)] = true
	}
	return keys
}

// Lookup maps the values of keyCol to the values of valueCol. The first row
// wins when a key repeats.
func (t *Table) Lookup(keyCol, valueCol string) map[string]string {
	m := make(map[string]string, len(t.Rows))
	for i := range t.Rows {
		k := t.Cell(i, keyCol)
		if _, ok := m[k]; !ok {
			m[k] = t.Cell(i, valueCol)
		}
	}
	return m
}

// MaxInt returns the largest integer in col, or 0. Cells that do not parse
// are skipped.
func (t *Table) MaxInt(col string) int {
	max := 0
	for i := range t.Rows {
		n, err := common.ParseInt(t.Cell(i, col))
		if err == nil && n > max {
			max = n
		}
	}
	return max
}
