package schema

// Column names shared between producers and consumers. Source columns keep the
// names of the upstream export; warehouse columns are the published contract.
const (
	// Source: proyectos.csv
	ColIDProyecto          = "id_proyecto"
	ColNombreProyecto      = "nombre_proyecto"
	ColIDCliente           = "id_cliente"
	ColFechaInicioEstimada = "fecha_inicio_estimada"
	ColFechaFinEstimada    = "fecha_fin_estimada"
	ColFechaInicioReal     = "fecha_inicio_real"
	ColFechaFinReal        = "fecha_fin_real"
	ColEstado              = "estado"
	ColPresupuestoEstimado = "presupuesto_estimado"
	ColPresupuestoReal     = "presupuesto_real"
	ColValorVenta          = "valor_venta"
	ColGanancias           = "ganancias"
	ColPrioridad           = "prioridad"
	ColIDMetodologia       = "id_metodologia"

	// Source: clientes.csv
	ColNombreCliente     = "nombre_cliente"
	ColIndustria         = "industria"
	ColPais              = "pais"
	ColNivelSatisfaccion = "nivel_satisfaccion"

	// Source: asignaciones.csv
	ColIDAsignacion = "id_asignacion"
	ColIDEmpleado   = "id_empleado"
	ColRol          = "rol"

	// Source: pruebas.csv
	ColIDPrueba         = "id_prueba"
	ColTipo             = "tipo"
	ColFechaEjecucion   = "fecha_ejecucion"
	ColResultado        = "resultado"
	ColSeveridadDefecto = "severidad_defecto"

	// Catalogs
	ColIDPais          = "id_pais"
	ColNombrePais      = "nombre_pais"
	ColIDIndustria     = "id_industria"
	ColNombreIndustria = "nombre_industria"
	ColIDSatisfaccion  = "id_satisfaccion"
	ColDescripcion     = "descripcion"

	// Dimensions
	ColTipoPrioridad          = "tipo_prioridad"
	ColFechaInicioPlanificada = "fecha_inicio_planificada"
	ColFechaFinPlanificada    = "fecha_fin_planificada"
	ColIDTiempo               = "id_tiempo"
	ColFecha                  = "fecha"
	ColAnio                   = "año"
	ColMes                    = "mes"

	// Facts
	ColIDHecho                     = "id_hecho"
	ColIDTiempoCierre              = "id_tiempo_cierre"
	ColCostoTotalReal              = "costo_total_real"
	ColGananciaNeta                = "ganancia_neta"
	ColIDHechoCalidad              = "id_hecho_calidad"
	ColTipoPrueba                  = "tipo_prueba"
	ColSeveridad                   = "severidad"
	ColCantidadDefectosEncontrados = "cantidad_defectos_encontrados"
)

// Source tables. Only the listed columns are required; extra columns are ignored.
var (
	SourceProyectos = Table{
		Name:  "proyectos",
		Layer: LayerSource,
		Key:   ColIDProyecto,
		Columns: []Column{
			{ColIDProyecto, KindInt},
			{ColNombreProyecto, KindText},
			{ColIDCliente, KindInt},
			{ColFechaInicioEstimada, KindDate},
			{ColFechaFinEstimada, KindDate},
			{ColFechaInicioReal, KindDate},
			{ColFechaFinReal, KindDate},
			{ColEstado, KindText},
			{ColPresupuestoReal, KindFloat},
			{ColGanancias, KindFloat},
			{ColPrioridad, KindText},
			{ColIDMetodologia, KindInt},
		},
	}

	SourceClientes = Table{
		Name:  "clientes",
		Layer: LayerSource,
		Key:   ColIDCliente,
		Columns: []Column{
			{ColIDCliente, KindInt},
			{ColNombreCliente, KindText},
			{ColIndustria, KindText},
			{ColPais, KindText},
			{ColNivelSatisfaccion, KindInt},
		},
	}

	SourceAsignaciones = Table{
		Name:  "asignaciones",
		Layer: LayerSource,
		Key:   ColIDAsignacion,
		Columns: []Column{
			{ColIDAsignacion, KindInt},
			{ColIDEmpleado, KindInt},
			{ColIDProyecto, KindInt},
			{ColRol, KindText},
		},
	}

	SourcePruebas = Table{
		Name:  "pruebas",
		Layer: LayerSource,
		Key:   ColIDPrueba,
		Columns: []Column{
			{ColIDPrueba, KindInt},
			{ColIDAsignacion, KindInt},
			{ColTipo, KindText},
			{ColFechaEjecucion, KindDate},
			{ColResultado, KindText},
			{ColSeveridadDefecto, KindText},
		},
	}
)

// Warehouse tables.
var (
	SubdimPais = Table{
		Name:    "SubdimPais",
		Layer:   LayerWarehouse,
		Key:     ColIDPais,
		Columns: []Column{{ColIDPais, KindInt}, {ColNombrePais, KindText}},
	}

	SubdimIndustria = Table{
		Name:    "SubdimIndustria",
		Layer:   LayerWarehouse,
		Key:     ColIDIndustria,
		Columns: []Column{{ColIDIndustria, KindInt}, {ColNombreIndustria, KindText}},
	}

	SubdimSatisfaccion = Table{
		Name:    "SubdimSatisfaccion",
		Layer:   LayerWarehouse,
		Key:     ColIDSatisfaccion,
		Columns: []Column{{ColIDSatisfaccion, KindInt}, {ColDescripcion, KindText}},
	}

	DimCliente = Table{
		Name:  "DimCliente",
		Layer: LayerWarehouse,
		Key:   ColIDCliente,
		Columns: []Column{
			{ColIDCliente, KindInt},
			{ColNombreCliente, KindText},
			{ColIDIndustria, KindInt},
			{ColIDPais, KindInt},
			{ColIDSatisfaccion, KindInt},
		},
	}

	DimProyecto = Table{
		Name:  "DimProyecto",
		Layer: LayerWarehouse,
		Key:   ColIDProyecto,
		Columns: []Column{
			{ColIDProyecto, KindInt},
			{ColNombreProyecto, KindText},
			{ColTipoPrioridad, KindText},
			{ColFechaInicioPlanificada, KindDate},
			{ColFechaFinPlanificada, KindDate},
		},
	}

	DimTiempo = Table{
		Name:  "DimTiempo",
		Layer: LayerWarehouse,
		Key:   ColIDTiempo,
		Columns: []Column{
			{ColIDTiempo, KindInt},
			{ColFecha, KindDate},
			{ColAnio, KindInt},
			{ColMes, KindInt},
		},
	}

	HechosProyecto = Table{
		Name:  "HechosProyecto",
		Layer: LayerWarehouse,
		Key:   ColIDHecho,
		Columns: []Column{
			{ColIDHecho, KindInt},
			{ColIDProyecto, KindInt},
			{ColIDCliente, KindInt},
			{ColIDMetodologia, KindInt},
			{ColIDTiempoCierre, KindInt},
			{ColCostoTotalReal, KindFloat},
			{ColGananciaNeta, KindFloat},
		},
	}

	HechosCalidad = Table{
		Name:  "HechosCalidad",
		Layer: LayerWarehouse,
		Key:   ColIDHechoCalidad,
		Columns: []Column{
			{ColIDHechoCalidad, KindInt},
			{ColIDProyecto, KindInt},
			{ColIDTiempo, KindInt},
			{ColTipoPrueba, KindText},
			{ColSeveridad, KindText},
			{ColCantidadDefectosEncontrados, KindInt},
		},
	}
)

// Denormalized tables read by the reporting layer.
var (
	OLAPProyectos = Table{
		Name:  "OLAP_Proyectos",
		Layer: LayerOLAP,
		Key:   ColIDHecho,
		Columns: []Column{
			{ColIDHecho, KindInt},
			{ColNombreProyecto, KindText},
			{ColNombreCliente, KindText},
			{ColNombrePais, KindText},
			{ColGananciaNeta, KindFloat},
			{ColCostoTotalReal, KindFloat},
			{ColIDTiempoCierre, KindInt},
			{ColAnio, KindInt},
		},
	}

	OLAPCalidad = Table{
		Name:  "OLAP_Calidad",
		Layer: LayerOLAP,
		Key:   ColIDHechoCalidad,
		Columns: []Column{
			{ColIDHechoCalidad, KindInt},
			{ColNombreProyecto, KindText},
			{ColIDTiempo, KindInt},
			{ColTipoPrueba, KindText},
			{ColSeveridad, KindText},
			{ColCantidadDefectosEncontrados, KindInt},
			{ColAnio, KindInt},
		},
	}
)

// SourceTables lists the four inputs of a run.
func SourceTables() []Table {
	return []Table{SourceProyectos, SourceClientes, SourceAsignaciones, SourcePruebas}
}

// WarehouseTables lists the warehouse tables in dependency order: catalogs,
// then dimensions, then facts.
func WarehouseTables() []Table {
	return []Table{
		SubdimPais,
		SubdimIndustria,
		SubdimSatisfaccion,
		DimCliente,
		DimProyecto,
		DimTiempo,
		HechosProyecto,
		HechosCalidad,
	}
}

// OLAPTables lists the denormalized outputs.
func OLAPTables() []Table {
	return []Table{OLAPProyectos, OLAPCalidad}
}

// Lookup finds a registered warehouse or OLAP table by name.
func Lookup(name string) (Table, bool) {
	for _, t := range append(WarehouseTables(), OLAPTables()...) {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}
