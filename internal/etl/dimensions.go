package etl

import (
	"strconv"
	"time"

	"projectdw/internal/calendar"
	"projectdw/internal/common"
	"projectdw/internal/schema"
	"projectdw/internal/warehouse"
	"projectdw/pkg/errors"
)

// DimensionReport counts what the dimension stage appended.
type DimensionReport struct {
	Countries    int
	Industries   int
	Clients      int
	Projects     int
	Satisfaction bool
	Calendar     bool
}

// SyncDimensions brings catalogs and dimensions up to date for the batch.
// Catalog rows are appended for unseen labels; client and project rows are
// appended only for keys the dimensions do not hold yet. A client whose
// country, industry or satisfaction level has no catalog id fails the stage.
func SyncDimensions(store *warehouse.Store, b Batch, start, end time.Time) (DimensionReport, error) {
	var rep DimensionReport

	countries := make([]string, len(b.Clients))
	industries := make([]string, len(b.Clients))
	for i, c := range b.Clients {
		countries[i] = c.Country
		industries[i] = c.Industry
	}

	countryIDs, added, err := store.SyncCatalog(countries, schema.SubdimPais, schema.ColIDPais, schema.ColNombrePais)
	if err != nil {
		return rep, err
	}
	rep.Countries = added

	industryIDs, added, err := store.SyncCatalog(industries, schema.SubdimIndustria, schema.ColIDIndustria, schema.ColNombreIndustria)
	if err != nil {
		return rep, err
	}
	rep.Industries = added

	if rep.Satisfaction, err = store.EnsureSatisfaction(); err != nil {
		return rep, err
	}
	satisfactionIDs := warehouse.SatisfactionCatalog()

	clientKeys := make([]string, len(b.Clients))
	for i, c := range b.Clients {
		clientKeys[i] = strconv.Itoa(c.ID)
	}
	clients, err := store.SyncDimension(schema.DimCliente, schema.ColIDCliente, clientKeys, func(i int) ([]string, error) {
		c := b.Clients[i]
		industry, err := industryIDs.Resolve(schema.SubdimIndustria, schema.ColIndustria, c.Industry)
		if err != nil {
			return nil, errors.AddContext(err, schema.ColIDCliente, c.ID)
		}
		country, err := countryIDs.Resolve(schema.SubdimPais, schema.ColPais, c.Country)
		if err != nil {
			return nil, errors.AddContext(err, schema.ColIDCliente, c.ID)
		}
		satisfaction, err := satisfactionIDs.Resolve(schema.SubdimSatisfaccion, schema.ColNivelSatisfaccion, satisfactionLabel(c.Satisfaction))
		if err != nil {
			return nil, errors.AddContext(err, schema.ColIDCliente, c.ID)
		}
		return []string{
			strconv.Itoa(c.ID),
			c.Name,
			strconv.Itoa(industry),
			strconv.Itoa(country),
			strconv.Itoa(satisfaction),
		}, nil
	})
	if err != nil {
		return rep, err
	}
	rep.Clients = len(clients)

	projectKeys := make([]string, len(b.Projects))
	for i, p := range b.Projects {
		projectKeys[i] = strconv.Itoa(p.ID)
	}
	projects, err := store.SyncDimension(schema.DimProyecto, schema.ColIDProyecto, projectKeys, func(i int) ([]string, error) {
		p := b.Projects[i]
		return []string{
			strconv.Itoa(p.ID),
			p.Name,
			p.Priority,
			normalizeDate(p.PlannedStart),
			normalizeDate(p.PlannedEnd),
		}, nil
	})
	if err != nil {
		return rep, err
	}
	rep.Projects = len(projects)

	if rep.Calendar, err = ensureCalendar(store, start, end); err != nil {
		return rep, err
	}
	return rep, nil
}

// ensureCalendar materializes the time dimension once, when it is empty.
func ensureCalendar(store *warehouse.Store, start, end time.Time) (bool, error) {
	table, err := store.GetOrCreate(schema.DimTiempo)
	if err != nil {
		return false, err
	}
	if !table.Empty() {
		return false, nil
	}
	if err := store.Overwrite(schema.DimTiempo, calendar.Rows(start, end)); err != nil {
		return false, err
	}
	return true, nil
}

// satisfactionLabel normalizes "4" and "4.0" to the catalog label "4".
// Anything else is returned as is and will miss the catalog.
func satisfactionLabel(v string) string {
	n, err := common.ParseInt(v)
	if err != nil {
		return v
	}
	return strconv.Itoa(n)
}

// normalizeDate writes parseable dates as YYYY-MM-DD and leaves other values
// untouched.
func normalizeDate(v string) string {
	if v == "" {
		return ""
	}
	t, err := calendar.ParseDate(v)
	if err != nil {
		return v
	}
	return t.Format(calendar.DateLayout)
}
