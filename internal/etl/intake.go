// Package etl runs one incremental pass over the source tables: it selects
// the projects that reached a terminal status, makes sure their dimension
// rows exist, appends their facts and the flat reporting rows, and hands back
// the next process state.
package etl

import (
	"projectdw/internal/source"
	"projectdw/internal/state"
)

// Intake is the outcome of the intake gate for one run.
type Intake struct {
	// Promoted were pending and are terminal now.
	Promoted []int
	// NewReady were never seen and are already terminal.
	NewReady []int
	// NewPending were never seen and are still open.
	NewPending []int
	// Scanned counts the source ids above the previous cursor.
	Scanned int
}

// Ready is the unit of work of the run: promoted ids, then newly ready ids.
func (in Intake) Ready() []int {
	ready := make([]int, 0, len(in.Promoted)+len(in.NewReady))
	ready = append(ready, in.Promoted...)
	return append(ready, in.NewReady...)
}

// Empty reports whether nothing is ready.
func (in Intake) Empty() bool {
	return len(in.Promoted) == 0 && len(in.NewReady) == 0
}

// SelectBatch applies the intake transitions to the source projects and
// returns the batch with the state to persist. st is not modified.
//
// Pending ids whose project is now terminal become ready; the rest stay
// pending, including ids no longer present in the source. Ids above the
// scanned cursor become ready when terminal and pending otherwise, and the
// cursor moves to the largest id scanned.
func SelectBatch(st state.State, projects []source.Project) (Intake, state.State) {
	next := st.Clone()
	var in Intake

	status := make(map[int]string, len(projects))
	for _, p := range projects {
		if _, dup := status[p.ID]; !dup {
			status[p.ID] = p.Status
		}
	}

	remaining := make([]int, 0, len(st.PendingIDs))
	for _, id := range st.PendingIDs {
		s, ok := status[id]
		if ok && source.IsTerminal(s) {
			in.Promoted = append(in.Promoted, id)
			continue
		}
		remaining = append(remaining, id)
	}
	next.PendingIDs = remaining

	seen := make(map[int]bool, len(projects))
	for _, id := range st.PendingIDs {
		seen[id] = true
	}
	for _, p := range projects {
		if p.ID <= st.LastScanned || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		in.Scanned++

		if p.Terminal() {
			in.NewReady = append(in.NewReady, p.ID)
		} else {
			in.NewPending = append(in.NewPending, p.ID)
			next.PendingIDs = append(next.PendingIDs, p.ID)
		}
		if p.ID > next.LastScanned {
			next.LastScanned = p.ID
		}
	}

	return in, next
}
