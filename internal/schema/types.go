package schema

import "fmt"

// Kind is the logical type of a column. It drives value formatting in the
// warehouse and DDL in the relational loader.
type Kind string

const (
	KindInt   Kind = "INTEGER"
	KindFloat Kind = "FLOAT"
	KindText  Kind = "TEXT"
	KindDate  Kind = "DATE"
)

// Layer says which directory a table lives in.
type Layer int

const (
	LayerSource Layer = iota
	LayerWarehouse
	LayerOLAP
)

func (l Layer) String() string {
	switch l {
	case LayerSource:
		return "source"
	case LayerWarehouse:
		return "warehouse"
	case LayerOLAP:
		return "olap"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// Column is one named, typed column of a table.
type Column struct {
	Name string
	Kind Kind
}

// Table declares a table once for every stage that reads or writes it.
type Table struct {
	Name    string
	Layer   Layer
	Key     string
	Columns []Column
}

// FileName is the CSV file name of the table inside its layer directory.
func (t Table) FileName() string {
	return t.Name + ".csv"
}

// ColumnNames returns the header in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Index returns the position of column name, or -1.
func (t Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// MustIndex is Index for columns the caller knows are declared.
func (t Table) MustIndex(name string) int {
	i := t.Index(name)
	if i < 0 {
		panic(fmt.Sprintf("schema: table %s has no column %s", t.Name, name))
	}
	return i
}
