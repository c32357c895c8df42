package warehouse

import (
	"projectdw/internal/schema"
)

// RowBuilder reshapes incoming entity i into a row of the dimension. It is
// only called for entities the dimension does not hold yet.
type RowBuilder func(i int) ([]string, error)

// SyncDimension appends the incoming entities whose key is not yet present in
// dimension t. keys[i] is the business key of entity i; repeated keys are
// built once. Existing rows are never touched. It returns the appended rows.
func (s *Store) SyncDimension(t schema.Table, keyCol string, keys []string, build RowBuilder) ([][]string, error) {
	table, err := s.GetOrCreate(t)
	if err != nil {
		return nil, err
	}

	existing := table.KeySet(keyCol)
	var added [][]string
	for i, key := range keys {
		if existing[key] {
			continue
		}
		row, err := build(i)
		if err != nil {
			return nil, err
		}
		existing[key] = true
		added = append(added, row)
	}

	if err := s.Append(t, added); err != nil {
		return nil, err
	}
	s.logger.InfoWithFields("dimension synchronized", map[string]interface{}{
		"table": t.Name,
		"added": len(added),
	})
	return added, nil
}
