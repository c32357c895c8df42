package loader

import (
	"fmt"
	"strings"

	"projectdw/internal/schema"
)

// dialect maps column kinds to the column types of one database.
type dialect struct {
	types map[schema.Kind]string
}

var (
	sqliteDialect = dialect{types: map[schema.Kind]string{
		schema.KindInt:   "INTEGER",
		schema.KindFloat: "REAL",
		schema.KindText:  "TEXT",
		schema.KindDate:  "TEXT",
	}}
	snowflakeDialect = dialect{types: map[schema.Kind]string{
		schema.KindInt:   "NUMBER(38,0)",
		schema.KindFloat: "FLOAT",
		schema.KindText:  "VARCHAR",
		schema.KindDate:  "DATE",
	}}
)

func dialectFor(driver string) dialect {
	if driver == DriverSnowflake {
		return snowflakeDialect
	}
	return sqliteDialect
}

func (d dialect) createTable(t schema.Table) string {
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", quote(c.Name), d.types[c.Kind]))
	}
	if t.Key != "" {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", quote(t.Key)))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(t.Name), strings.Join(defs, ", "))
}
