// Package source reads the four raw input tables of a run.
package source

import (
	"strings"

	"projectdw/internal/common"
	"projectdw/internal/schema"
	"projectdw/pkg/errors"
)

// Project statuses. Finalizado and cancelado are terminal.
const (
	StatusPlanned    = "planificado"
	StatusInProgress = "en curso"
	StatusFinished   = "finalizado"
	StatusCancelled  = "cancelado"
)

// ResultFailed marks a failing test execution.
const ResultFailed = "fallo"

// Project is one row of proyectos.csv. Dates and money stay as normalized
// text; they are parsed where a stage needs them.
type Project struct {
	ID            int
	Name          string
	ClientID      int
	PlannedStart  string
	PlannedEnd    string
	ActualStart   string
	ActualEnd     string
	Status        string
	ActualBudget  string
	Profit        string
	Priority      string
	MethodologyID string
}

// Terminal reports whether the project reached a status after which it no
// longer changes.
func (p Project) Terminal() bool {
	return IsTerminal(p.Status)
}

// IsTerminal reports whether status is finalizado or cancelado.
func IsTerminal(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	return s == StatusFinished || s == StatusCancelled
}

// Client is one row of clientes.csv.
type Client struct {
	ID           int
	Name         string
	Industry     string
	Country      string
	Satisfaction string
}

// Assignment is one row of asignaciones.csv.
type Assignment struct {
	ID         int
	EmployeeID string
	ProjectID  int
	Role       string
}

// TestExecution is one row of pruebas.csv.
type TestExecution struct {
	ID           int
	AssignmentID int
	Type         string
	ExecutedOn   string
	Result       string
	Severity     string
}

// Failed reports whether the execution found a defect.
func (e TestExecution) Failed() bool {
	return strings.ToLower(strings.TrimSpace(e.Result)) == ResultFailed
}

// Sources is the immutable input of one run.
type Sources struct {
	Projects    []Project
	Clients     []Client
	Assignments []Assignment
	Tests       []TestExecution
}

// Paths returns the expected location of every source table under dir.
func Paths(dir string) map[string]string {
	paths := make(map[string]string, 4)
	for _, t := range schema.SourceTables() {
		paths[t.Name] = tablePath(dir, t)
	}
	return paths
}

// Load reads all four tables from dir. Every file is checked for existence
// before any is parsed, so a missing input fails the run before it mutates
// anything.
func Load(dir string) (*Sources, error) {
	for _, t := range schema.SourceTables() {
		path := tablePath(dir, t)
		if !common.FileExists(path) {
			return nil, errors.SourceMissingError(path, nil).WithContext("table", t.Name)
		}
	}

	src := &Sources{}
	var err error
	if src.Projects, err = readProjects(tablePath(dir, schema.SourceProyectos)); err != nil {
		return nil, err
	}
	if src.Clients, err = readClients(tablePath(dir, schema.SourceClientes)); err != nil {
		return nil, err
	}
	if src.Assignments, err = readAssignments(tablePath(dir, schema.SourceAsignaciones)); err != nil {
		return nil, err
	}
	if src.Tests, err = readTests(tablePath(dir, schema.SourcePruebas)); err != nil {
		return nil, err
	}
	return src, nil
}

// ClientsByID indexes clients, keeping the first row of a duplicated id.
func (s *Sources) ClientsByID() map[int]Client {
	m := make(map[int]Client, len(s.Clients))
	for _, c := range s.Clients {
		if _, ok := m[c.ID]; !ok {
			m[c.ID] = c
		}
	}
	return m
}

// ProjectsByID indexes projects, keeping the first row of a duplicated id.
func (s *Sources) ProjectsByID() map[int]Project {
	m := make(map[int]Project, len(s.Projects))
	for _, p := range s.Projects {
		if _, ok := m[p.ID]; !ok {
			m[p.ID] = p
		}
	}
	return m
}
