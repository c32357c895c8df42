package warehouse

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdw/internal/schema"
	"projectdw/internal/testutil"
	"projectdw/pkg/errors"
)

func newStore(t *testing.T) (*Store, *testutil.Workspace) {
	t.Helper()
	ws := testutil.NewWorkspace(t)
	return NewStore(ws.WarehouseDir, ws.OLAPDir, nil), ws
}

func TestGetOrCreate(t *testing.T) {
	store, ws := newStore(t)

	table, err := store.GetOrCreate(schema.DimCliente)
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.Equal(t, "id_cliente,nombre_cliente,id_industria,id_pais,id_satisfaccion\n",
		testutil.ReadFile(t, ws.Warehouse("DimCliente")))

	require.NoError(t, store.Append(schema.DimCliente, [][]string{{"7", "Acme", "1", "2", "3"}}))

	table, err = store.GetOrCreate(schema.DimCliente)
	require.NoError(t, err)
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "Acme", table.Cell(0, schema.ColNombreCliente))
}

func TestAppend(t *testing.T) {
	store, ws := newStore(t)

	t.Run("no rows is a no-op", func(t *testing.T) {
		require.NoError(t, store.Append(schema.OLAPCalidad, nil))
		assert.False(t, store.Exists(schema.OLAPCalidad))
	})

	t.Run("creates file with header", func(t *testing.T) {
		require.NoError(t, store.Append(schema.OLAPCalidad, [][]string{{"1", "Portal", "20230501", "Unitaria", "alta", "2", "2023"}}))
		assert.Equal(t,
			"id_hecho_calidad,nombre_proyecto,id_tiempo,tipo_prueba,severidad,cantidad_defectos_encontrados,año\n"+
				"1,Portal,20230501,Unitaria,alta,2,2023\n",
			testutil.ReadFile(t, ws.OLAP("OLAP_Calidad")))
	})

	t.Run("keeps prior rows", func(t *testing.T) {
		require.NoError(t, store.Append(schema.OLAPCalidad, [][]string{{"2", "Nombre, con coma", "20230502", "Integración", "media", "1", "2023"}}))
		rows := testutil.ReadCSV(t, ws.OLAP("OLAP_Calidad"))
		require.Len(t, rows, 3)
		assert.Equal(t, "1", rows[1][0])
		assert.Equal(t, "Nombre, con coma", rows[2][1])
	})
}

func TestReadMissingAndHeaderMismatch(t *testing.T) {
	store, ws := newStore(t)

	table, err := store.Read(schema.HechosProyecto)
	require.NoError(t, err)
	assert.True(t, table.Empty())
	assert.False(t, store.Exists(schema.HechosProyecto))

	ws.WriteFile(ws.WarehouseDir, "HechosProyecto.csv", "id,proyecto\n1,2\n")
	_, err = store.Read(schema.HechosProyecto)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTableSchema, errors.GetErrorCode(err))
}

const legacyOLAPProyectos = "id_hecho,nombre_proyecto,nombre_cliente,nombre_pais,ganancia_neta,costo_total_real\n9,Old,Old,Old,1,1\n"

func TestAppendRejectsForeignHeader(t *testing.T) {
	store, ws := newStore(t)
	path := ws.WriteFile(ws.OLAPDir, "OLAP_Proyectos.csv", legacyOLAPProyectos)

	err := store.Append(schema.OLAPProyectos, [][]string{{"1", "Portal", "Acme", "Chile", "40000", "110000", "20230715", "2023"}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTableSchema, errors.GetErrorCode(err))
	assert.Equal(t, legacyOLAPProyectos, testutil.ReadFile(t, path))
}

func TestCheckHeaders(t *testing.T) {
	store, ws := newStore(t)
	require.NoError(t, store.CheckHeaders())

	require.NoError(t, store.Append(schema.SubdimPais, [][]string{{"1", "Chile"}}))
	ws.WriteFile(ws.WarehouseDir, "HechosCalidad.csv", "")
	require.NoError(t, store.CheckHeaders())

	ws.WriteFile(ws.OLAPDir, "OLAP_Proyectos.csv", legacyOLAPProyectos)
	err := store.CheckHeaders()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeTableSchema, errors.GetErrorCode(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "OLAP_Proyectos", appErr.Context["table"])
}

func TestEnsure(t *testing.T) {
	store, ws := newStore(t)

	require.NoError(t, store.Ensure(schema.HechosCalidad))
	assert.Equal(t, strings.Join(schema.HechosCalidad.ColumnNames(), ",")+"\n",
		testutil.ReadFile(t, ws.Warehouse("HechosCalidad")))

	require.NoError(t, store.Append(schema.SubdimPais, [][]string{{"1", "Chile"}}))
	require.NoError(t, store.Ensure(schema.SubdimPais))
	assert.Equal(t, "id_pais,nombre_pais\n1,Chile\n", testutil.ReadFile(t, ws.Warehouse("SubdimPais")))
}

func TestOverwrite(t *testing.T) {
	store, ws := newStore(t)
	require.NoError(t, store.Append(schema.SubdimPais, [][]string{{"1", "Chile"}}))
	require.NoError(t, store.Overwrite(schema.SubdimPais, [][]string{{"9", "Perú"}}))

	assert.Equal(t, "id_pais,nombre_pais\n9,Perú\n", testutil.ReadFile(t, ws.Warehouse("SubdimPais")))
}

func TestFilesAndPaths(t *testing.T) {
	store, ws := newStore(t)

	files := store.Files()
	assert.Len(t, files, len(schema.WarehouseTables())+len(schema.OLAPTables()))
	assert.Contains(t, files, filepath.Join(ws.WarehouseDir, "DimTiempo.csv"))
	assert.Contains(t, files, filepath.Join(ws.OLAPDir, "OLAP_Proyectos.csv"))
}

func TestSyncCatalog(t *testing.T) {
	store, ws := newStore(t)

	ids, added, err := store.SyncCatalog([]string{"Chile", "", "Argentina", "Chile", " Perú "},
		schema.SubdimPais, schema.ColIDPais, schema.ColNombrePais)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, Catalog{"Chile": 1, "Argentina": 2, "Perú": 3}, ids)

	ids, added, err = store.SyncCatalog([]string{"Perú", "Brasil"},
		schema.SubdimPais, schema.ColIDPais, schema.ColNombrePais)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 4, ids["Brasil"])
	assert.Equal(t, 3, ids["Perú"])

	assert.Equal(t, testutil.Rows(
		"id_pais,nombre_pais",
		"1,Chile",
		"2,Argentina",
		"3,Perú",
		"4,Brasil",
	), testutil.ReadCSV(t, ws.Warehouse("SubdimPais")))
}

func TestSyncCatalogContinuesFromMaxID(t *testing.T) {
	store, ws := newStore(t)
	ws.WriteFile(ws.WarehouseDir, "SubdimIndustria.csv", "id_industria,nombre_industria\n4,Banca\n2,Retail\n")

	ids, _, err := store.SyncCatalog([]string{"Salud"}, schema.SubdimIndustria, schema.ColIDIndustria, schema.ColNombreIndustria)
	require.NoError(t, err)
	assert.Equal(t, 5, ids["Salud"])
	assert.Equal(t, 4, ids["Banca"])
}

func TestSyncCatalogIsDeterministic(t *testing.T) {
	seed := "id_pais,nombre_pais\n1,Chile\n"
	labels := []string{"Uruguay", "Chile", "Bolivia", "Uruguay", "Ecuador"}

	var results []string
	for i := 0; i < 2; i++ {
		store, ws := newStore(t)
		ws.WriteFile(ws.WarehouseDir, "SubdimPais.csv", seed)
		ids, _, err := store.SyncCatalog(labels, schema.SubdimPais, schema.ColIDPais, schema.ColNombrePais)
		require.NoError(t, err)
		assert.Equal(t, Catalog{"Chile": 1, "Uruguay": 2, "Bolivia": 3, "Ecuador": 4}, ids)
		results = append(results, testutil.ReadFile(t, ws.Warehouse("SubdimPais")))
	}
	assert.Equal(t, results[0], results[1])
}

func TestCatalogResolve(t *testing.T) {
	c := Catalog{"Chile": 1}

	id, err := c.Resolve(schema.SubdimPais, schema.ColPais, " Chile")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	for _, label := range []string{"Perú", "", "  "} {
		_, err := c.Resolve(schema.SubdimPais, schema.ColPais, label)
		require.Error(t, err, label)
		assert.Equal(t, errors.ErrCodeCatalogMiss, errors.GetErrorCode(err))
	}
}

func TestEnsureSatisfaction(t *testing.T) {
	store, ws := newStore(t)

	wrote, err := store.EnsureSatisfaction()
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = store.EnsureSatisfaction()
	require.NoError(t, err)
	assert.False(t, wrote)

	rows := testutil.ReadCSV(t, ws.Warehouse("SubdimSatisfaccion"))
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"5", "Excelente"}, rows[5])

	c := SatisfactionCatalog()
	assert.Len(t, c, 5)
	assert.Equal(t, 3, c["3"])
}

func TestSyncDimension(t *testing.T) {
	store, ws := newStore(t)
	builds := 0
	build := func(i int) ([]string, error) {
		builds++
		id := []string{"1", "3", "1"}[i]
		return []string{id, "Proyecto " + id, "Alta", "2023-01-01", "2023-06-30"}, nil
	}

	added, err := store.SyncDimension(schema.DimProyecto, schema.ColIDProyecto, []string{"1", "3", "1"}, build)
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Equal(t, 2, builds)

	before, err := os.ReadFile(ws.Warehouse("DimProyecto"))
	require.NoError(t, err)

	added, err = store.SyncDimension(schema.DimProyecto, schema.ColIDProyecto, []string{"3", "1"}, build)
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.Equal(t, 2, builds)

	after, err := os.ReadFile(ws.Warehouse("DimProyecto"))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSyncDimensionStopsOnBuildError(t *testing.T) {
	store, ws := newStore(t)
	miss := errors.CatalogMissError("SubdimPais", "pais", "Atlantis")

	_, err := store.SyncDimension(schema.DimCliente, schema.ColIDCliente, []string{"1", "2"}, func(i int) ([]string, error) {
		if i == 1 {
			return nil, miss
		}
		return []string{strconv.Itoa(i + 1), "ok", "1", "1", "1"}, nil
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeCatalogMiss, errors.GetErrorCode(err))
	assert.Equal(t, "id_cliente,nombre_cliente,id_industria,id_pais,id_satisfaccion\n",
		testutil.ReadFile(t, ws.Warehouse("DimCliente")), fmt.Sprintf("nothing appended after %v", err))
}

func TestTableHelpers(t *testing.T) {
	table := &Table{
		Schema: schema.SubdimPais,
		Rows:   [][]string{{"3", "Chile"}, {"x", "Perú"}, {"5", "Chile"}},
	}
	assert.Equal(t, 5, table.MaxInt(schema.ColIDPais))
	assert.Equal(t, map[string]string{"Chile": "3", "Perú": "x"}, table.Lookup(schema.ColNombrePais, schema.ColIDPais))
	assert.True(t, table.KeySet(schema.ColIDPais)["x"])
	assert.Equal(t, "", table.Cell(0, "missing"))
}
