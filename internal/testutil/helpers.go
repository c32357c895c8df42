package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"projectdw/internal/common"
)

// Source tables of the three-project scenario: project 1 finished, project 2
// still running, project 3 cancelled without an actual end date.
const (
	ScenarioProjects = `id_proyecto,nombre_proyecto,id_cliente,fecha_inicio_estimada,fecha_fin_estimada,fecha_inicio_real,fecha_fin_real,estado,presupuesto_estimado,presupuesto_real,valor_venta,ganancias,prioridad,id_metodologia
1,Portal,1,2023-01-01,2023-06-30,2023-01-10,2023-07-15,finalizado,100000,110000,150000,40000,Alta,1
2,App,2,2023-03-01,2023-12-31,2023-03-05,,en curso,80000,,120000,,Media,2
3,ERP,3,2023-02-01,2023-08-31,2023-02-15,,cancelado,200000,50000,0,-50000,Baja,1
`

	// ScenarioProjectsFinished is ScenarioProjects after project 2 closed.
	ScenarioProjectsFinished = `id_proyecto,nombre_proyecto,id_cliente,fecha_inicio_estimada,fecha_fin_estimada,fecha_inicio_real,fecha_fin_real,estado,presupuesto_estimado,presupuesto_real,valor_venta,ganancias,prioridad,id_metodologia
1,Portal,1,2023-01-01,2023-06-30,2023-01-10,2023-07-15,finalizado,100000,110000,150000,40000,Alta,1
2,App,2,2023-03-01,2023-12-31,2023-03-05,2024-01-20,finalizado,80000,90000,120000,30000,Media,2
3,ERP,3,2023-02-01,2023-08-31,2023-02-15,,cancelado,200000,50000,0,-50000,Baja,1
`

	ScenarioClients = `id_cliente,nombre_cliente,industria,pais,nivel_satisfaccion
1,Acme Corp,Retail,Chile,4
2,Globex,Banca,Perú,3
3,Initech,Retail,Argentina,5
`

	ScenarioAssignments = `id_asignacion,id_empleado,id_proyecto,rol
1,10,1,Tester
2,11,2,Tester
3,12,3,Desarrollador
`

	ScenarioTests = `id_prueba,id_asignacion,tipo,fecha_ejecucion,resultado,severidad_defecto
1,1,Unitaria,2023-05-01,fallo,alta
2,1,Unitaria,2023-05-01,fallo,alta
3,1,Unitaria,2023-05-01,éxito,nula
4,1,Integración,2023-05-02,fallo,media
5,2,Unitaria,2023-06-01,fallo,baja
6,3,Sistema,2023-04-01,éxito,nula
`
)

// Workspace is a throwaway directory laid out like a deployment.
type Workspace struct {
	t            *testing.T
	Root         string
	SourceDir    string
	WarehouseDir string
	OLAPDir      string
	StateFile    string
	JournalFile  string
}

// NewWorkspace creates an empty workspace under t.TempDir().
func NewWorkspace(t *testing.T) *Workspace {
	t.Helper()
	root := t.TempDir()
	return &Workspace{
		t:            t,
		Root:         root,
		SourceDir:    filepath.Join(root, "csv"),
		WarehouseDir: filepath.Join(root, "data_warehouse_csv"),
		OLAPDir:      filepath.Join(root, "cubo_olap_csv"),
		StateFile:    filepath.Join(root, "etl_state_tracking.json"),
		JournalFile:  filepath.Join(root, "etl_state_tracking.journal"),
	}
}

// WriteFile writes content to dir/name, creating dir.
func (w *Workspace) WriteFile(dir, name, content string) string {
	w.t.Helper()
	if err := common.EnsureDir(dir); err != nil {
		w.t.Fatalf("Failed to create directory %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), common.FilePermissionNormal); err != nil {
		w.t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}

// WriteSource writes one source table, e.g. WriteSource("proyectos", ...).
func (w *Workspace) WriteSource(table, content string) string {
	w.t.Helper()
	return w.WriteFile(w.SourceDir, table+".csv", content)
}

// WriteScenario writes the four source tables of the three-project scenario.
func (w *Workspace) WriteScenario() {
	w.t.Helper()
	w.WriteSource("proyectos", ScenarioProjects)
	w.WriteSource("clientes", ScenarioClients)
	w.WriteSource("asignaciones", ScenarioAssignments)
	w.WriteSource("pruebas", ScenarioTests)
}

// Warehouse returns the path of a warehouse table.
func (w *Workspace) Warehouse(table string) string {
	return filepath.Join(w.WarehouseDir, table+".csv")
}

// OLAP returns the path of a denormalized table.
func (w *Workspace) OLAP(table string) string {
	return filepath.Join(w.OLAPDir, table+".csv")
}

// ReadCSV returns every record of path, header included.
func ReadCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return rows
}

// ReadFile returns the content of path.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

// Rows splits CSV-ish literal lines into records, for compact expectations.
func Rows(lines ...string) [][]string {
	out := make([][]string, len(lines))
	for i, l := range lines {
		out[i] = strings.Split(l, ",")
	}
	return out
}

// Snapshot reads every regular file under dir into memory, keyed by path
// relative to dir.
func Snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := make(map[string]string)
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to snapshot %s: %v", dir, err)
	}
	return files
}
