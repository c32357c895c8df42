package warehouse

import (
	"strconv"
	"strings"

	"projectdw/internal/common"
	"projectdw/internal/schema"
	"projectdw/pkg/errors"
)

// Catalog maps labels to their surrogate ids.
type Catalog map[string]int

// Resolve returns the id of label. A missing or empty label is a data-quality
// fault reported with the catalog name.
func (c Catalog) Resolve(t schema.Table, column, label string) (int, error) {
	id, ok := c[strings.TrimSpace(label)]
	if !ok || strings.TrimSpace(label) == "" {
		return 0, errors.CatalogMissError(t.Name, column, label)
	}
	return id, nil
}

// SyncCatalog makes sure every non-empty label in values has an id in the
// catalog t. Unseen labels get max(id)+1, max(id)+2, ... in the order they
// first appear in values and are appended immediately. It returns the full
// label map and the number of rows added.
func (s *Store) SyncCatalog(values []string, t schema.Table, idCol, labelCol string) (Catalog, int, error) {
	table, err := s.GetOrCreate(t)
	if err != nil {
		return nil, 0, err
	}

	catalog := make(Catalog, table.Len()+len(values))
	for i := range table.Rows {
		label := table.Cell(i, labelCol)
		id, err := common.ParseInt(table.Cell(i, idCol))
		if err != nil {
			return nil, 0, errors.ValidationError(idCol, table.Cell(i, idCol), "catalog id is not an integer").
				WithContext("table", t.Name).
				WithContext("path", s.Path(t))
		}
		if _, seen := catalog[label]; !seen {
			catalog[label] = id
		}
	}

	next := table.MaxInt(idCol) + 1
	var added [][]string
	for _, v := range values {
		label := strings.TrimSpace(v)
		if label == "" {
			continue
		}
		if _, ok := catalog[label]; ok {
			continue
		}
		catalog[label] = next
		row := make([]string, len(t.Columns))
		row[t.MustIndex(idCol)] = strconv.Itoa(next)
		row[t.MustIndex(labelCol)] = label
		added = append(added, row)
		next++
	}

	if err := s.Append(t, added); err != nil {
		return nil, 0, err
	}
	if len(added) > 0 {
		s.logger.InfoWithFields("catalog synchronized", map[string]interface{}{
			"table": t.Name,
			"added": len(added),
		})
	}
	return catalog, len(added), nil
}

// SatisfactionLevels are the fixed rows of SubdimSatisfaccion.
var SatisfactionLevels = [][]string{
	{"1", "Muy Malo"},
	{"2", "Malo"},
	{"3", "Regular"},
	{"4", "Bueno"},
	{"5", "Excelente"},
}

// SatisfactionCatalog is the static level-to-id map used for clients. Levels
// are their own ids.
func SatisfactionCatalog() Catalog {
	c := make(Catalog, len(SatisfactionLevels))
	for _, row := range SatisfactionLevels {
		id, _ := strconv.Atoi(row[0])
		c[row[0]] = id
	}
	return c
}

// EnsureSatisfaction writes the default satisfaction levels when the catalog
// is empty. It reports whether it wrote them.
func (s *Store) EnsureSatisfaction() (bool, error) {
	table, err := s.GetOrCreate(schema.SubdimSatisfaccion)
	if err != nil {
		return false, err
	}
	if !table.Empty() {
		return false, nil
	}
	if err := s.Overwrite(schema.SubdimSatisfaccion, SatisfactionLevels); err != nil {
		return false, err
	}
	return true, nil
}
