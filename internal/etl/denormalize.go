package etl

import (
	"strconv"

	"projectdw/internal/calendar"
	"projectdw/internal/schema"
	"projectdw/internal/warehouse"
)

// FlatReport counts the rows appended to the denormalized tables.
type FlatReport struct {
	Projects int
	Quality  int
}

// Denormalize joins the facts of this run with the dimensions on disk and
// appends the flat rows to OLAP_Proyectos and OLAP_Calidad. A dimension that
// is missing, or has no row for a key, leaves the label cell empty.
func Denormalize(store *warehouse.Store, financial []FinancialFact, quality []QualityFact) (FlatReport, error) {
	var rep FlatReport

	projects, err := store.Read(schema.DimProyecto)
	if err != nil {
		return rep, err
	}
	clients, err := store.Read(schema.DimCliente)
	if err != nil {
		return rep, err
	}
	countries, err := store.Read(schema.SubdimPais)
	if err != nil {
		return rep, err
	}

	projectName := projects.Lookup(schema.ColIDProyecto, schema.ColNombreProyecto)
	clientName := clients.Lookup(schema.ColIDCliente, schema.ColNombreCliente)
	clientCountry := clients.Lookup(schema.ColIDCliente, schema.ColIDPais)
	countryName := countries.Lookup(schema.ColIDPais, schema.ColNombrePais)

	projectRows := make([][]string, 0, len(financial))
	for _, f := range financial {
		client := strconv.Itoa(f.ClientID)
		country := ""
		if id, ok := clientCountry[client]; ok {
			country = countryName[id]
		}
		projectRows = append(projectRows, []string{
			strconv.Itoa(f.ID),
			projectName[strconv.Itoa(f.ProjectID)],
			clientName[client],
			country,
			f.Profit,
			f.Cost,
			strconv.Itoa(f.ClosingTimeID),
			strconv.Itoa(calendar.Year(f.ClosingTimeID)),
		})
	}

	qualityRows := make([][]string, 0, len(quality))
	for _, q := range quality {
		qualityRows = append(qualityRows, []string{
			strconv.Itoa(q.ID),
			projectName[strconv.Itoa(q.ProjectID)],
			strconv.Itoa(q.TimeID),
			q.TestType,
			q.Severity,
			strconv.Itoa(q.Defects),
			strconv.Itoa(calendar.Year(q.TimeID)),
		})
	}

	for _, t := range []schema.Table{schema.OLAPProyectos, schema.OLAPCalidad} {
		if err := store.Ensure(t); err != nil {
			return rep, err
		}
	}
	if err := store.Append(schema.OLAPProyectos, projectRows); err != nil {
		return rep, err
	}
	rep.Projects = len(projectRows)

	if err := store.Append(schema.OLAPCalidad, qualityRows); err != nil {
		return rep, err
	}
	rep.Quality = len(qualityRows)
	return rep, nil
}
