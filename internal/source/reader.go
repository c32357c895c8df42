package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"projectdw/internal/common"
	"projectdw/internal/schema"
	"projectdw/pkg/errors"
)

func tablePath(dir string, t schema.Table) string {
	return filepath.Join(dir, t.FileName())
}

// record gives named access to one CSV row.
type record struct {
	table  string
	path   string
	line   int
	index  map[string]int
	values []string
}

func (r record) str(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.values) {
		return ""
	}
	return strings.TrimSpace(r.values[i])
}

// id parses a required integer column. Values written by spreadsheet tools
// as "7.0" are accepted.
func (r record) id(col string) (int, error) {
	v := r.str(col)
	if v == "" {
		return 0, r.invalid(col, v, "value is required")
	}
	n, err := common.ParseInt(v)
	if err != nil {
		return 0, r.invalid(col, v, err.Error())
	}
	return n, nil
}

// optionalInt normalizes a nullable integer column.
func (r record) optionalInt(col string) (string, error) {
	v := r.str(col)
	if v == "" {
		return "", nil
	}
	n, err := common.ParseInt(v)
	if err != nil {
		return "", r.invalid(col, v, err.Error())
	}
	return strconv.Itoa(n), nil
}

// optionalFloat normalizes a nullable numeric column.
func (r record) optionalFloat(col string) (string, error) {
	v := r.str(col)
	if v == "" {
		return "", nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", r.invalid(col, v, "not a number")
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

func (r record) invalid(col, value, reason string) error {
	return errors.ValidationError(col, value, reason).
		WithContext("table", r.table).
		WithContext("path", r.path).
		WithContext("line", r.line)
}

// readTable streams the rows of a source table to fn after checking that
// every declared column is present in the header.
func readTable(path string, t schema.Table, fn func(record) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.SourceMissingError(path, err).WithContext("table", t.Name)
		}
		return errors.Wrap(err, errors.ErrCodeSourceUnreadable, "Failed to open source table").
			WithContext("table", t.Name).
			WithContext("path", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return errors.New(errors.ErrCodeSourceColumn, "Source table has no header").
			WithContext("table", t.Name).
			WithContext("path", path)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSourceUnreadable, "Failed to read source header").
			WithContext("table", t.Name).
			WithContext("path", path)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	for _, c := range t.Columns {
		if _, ok := index[c.Name]; !ok {
			return errors.New(errors.ErrCodeSourceColumn, fmt.Sprintf("Source table %s has no column %s", t.Name, c.Name)).
				WithContext("table", t.Name).
				WithContext("path", path).
				WithContext("column", c.Name)
		}
	}

	line := 1
	for {
		values, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeSourceUnreadable, "Malformed source row").
				WithContext("table", t.Name).
				WithContext("path", path).
				WithContext("line", line)
		}
		if blank(values) {
			continue
		}
		if err := fn(record{table: t.Name, path: path, line: line, index: index, values: values}); err != nil {
			return err
		}
	}
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readProjects(path string) ([]Project, error) {
	var out []Project
	err := readTable(path, schema.SourceProyectos, func(r record) error {
		p := Project{
			Name:         r.str(schema.ColNombreProyecto),
			PlannedStart: r.str(schema.ColFechaInicioEstimada),
			PlannedEnd:   r.str(schema.ColFechaFinEstimada),
			ActualStart:  r.str(schema.ColFechaInicioReal),
			ActualEnd:    r.str(schema.ColFechaFinReal),
			Status:       r.str(schema.ColEstado),
			Priority:     r.str(schema.ColPrioridad),
		}
		var err error
		if p.ID, err = r.id(schema.ColIDProyecto); err != nil {
			return err
		}
		if p.ClientID, err = r.id(schema.ColIDCliente); err != nil {
			return err
		}
		if p.ActualBudget, err = r.optionalFloat(schema.ColPresupuestoReal); err != nil {
			return err
		}
		if p.Profit, err = r.optionalFloat(schema.ColGanancias); err != nil {
			return err
		}
		if p.MethodologyID, err = r.optionalInt(schema.ColIDMetodologia); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func readClients(path string) ([]Client, error) {
	var out []Client
	err := readTable(path, schema.SourceClientes, func(r record) error {
		c := Client{
			Name:         r.str(schema.ColNombreCliente),
			Industry:     r.str(schema.ColIndustria),
			Country:      r.str(schema.ColPais),
			Satisfaction: r.str(schema.ColNivelSatisfaccion),
		}
		var err error
		if c.ID, err = r.id(schema.ColIDCliente); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, err
}

func readAssignments(path string) ([]Assignment, error) {
	var out []Assignment
	err := readTable(path, schema.SourceAsignaciones, func(r record) error {
		a := Assignment{
			EmployeeID: r.str(schema.ColIDEmpleado),
			Role:       r.str(schema.ColRol),
		}
		var err error
		if a.ID, err = r.id(schema.ColIDAsignacion); err != nil {
			return err
		}
		if a.ProjectID, err = r.id(schema.ColIDProyecto); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	return out, err
}

func readTests(path string) ([]TestExecution, error) {
	var out []TestExecution
	err := readTable(path, schema.SourcePruebas, func(r record) error {
		e := TestExecution{
			Type:       r.str(schema.ColTipo),
			ExecutedOn: r.str(schema.ColFechaEjecucion),
			Result:     r.str(schema.ColResultado),
			Severity:   r.str(schema.ColSeveridadDefecto),
		}
		var err error
		if e.ID, err = r.id(schema.ColIDPrueba); err != nil {
			return err
		}
		if e.AssignmentID, err = r.id(schema.ColIDAsignacion); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
