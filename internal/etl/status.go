package etl

import (
	"projectdw/internal/common"
	"projectdw/internal/schema"
	"projectdw/internal/state"
	"projectdw/internal/warehouse"
)

// TableStatus is the row count of one output table.
type TableStatus struct {
	Name   string
	Layer  schema.Layer
	Exists bool
	Rows   int
}

// Status is a read-only view of the process state and the outputs.
type Status struct {
	State          state.State
	StateExists    bool
	JournalPending bool
	Tables         []TableStatus
}

// Inspect reports the persisted state and table sizes without changing
// anything. A leftover journal is reported, not recovered.
func Inspect(opts Options, store *warehouse.Store) (*Status, error) {
	st, err := state.Load(opts.StateFile)
	if err != nil {
		return nil, err
	}
	status := &Status{
		State:          st,
		StateExists:    common.FileExists(opts.StateFile),
		JournalPending: common.FileExists(opts.JournalFile),
	}

	for _, t := range append(schema.WarehouseTables(), schema.OLAPTables()...) {
		ts := TableStatus{Name: t.Name, Layer: t.Layer, Exists: store.Exists(t)}
		if ts.Exists {
			data, err := store.Read(t)
			if err != nil {
				return nil, err
			}
			ts.Rows = data.Len()
		}
		status.Tables = append(status.Tables, ts)
	}
	return status, nil
}
