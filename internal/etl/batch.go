package etl

import (
	"projectdw/internal/source"
)

// Batch is the slice of the source tables that belongs to the ready projects
// of a run. Every list keeps source order.
type Batch struct {
	Projects    []source.Project
	Clients     []source.Client
	Assignments []source.Assignment
	Tests       []source.TestExecution
	// MissingClients are client ids referenced by ready projects but absent
	// from the clients table.
	MissingClients []int
}

// NewBatch cuts the rows of the ready projects out of src.
func NewBatch(src *source.Sources, ready []int) Batch {
	readySet := make(map[int]bool, len(ready))
	for _, id := range ready {
		readySet[id] = true
	}

	var b Batch
	taken := make(map[int]bool, len(ready))
	clientIDs := make(map[int]bool)
	var clientOrder []int
	for _, p := range src.Projects {
		if !readySet[p.ID] || taken[p.ID] {
			continue
		}
		taken[p.ID] = true
		b.Projects = append(b.Projects, p)
		if !clientIDs[p.ClientID] {
			clientIDs[p.ClientID] = true
			clientOrder = append(clientOrder, p.ClientID)
		}
	}

	found := make(map[int]bool, len(clientIDs))
	for _, c := range src.Clients {
		if clientIDs[c.ID] && !found[c.ID] {
			found[c.ID] = true
			b.Clients = append(b.Clients, c)
		}
	}
	for _, id := range clientOrder {
		if !found[id] {
			b.MissingClients = append(b.MissingClients, id)
		}
	}

	assignments := make(map[int]bool)
	for _, a := range src.Assignments {
		if readySet[a.ProjectID] {
			b.Assignments = append(b.Assignments, a)
			assignments[a.ID] = true
		}
	}
	for _, e := range src.Tests {
		if assignments[e.AssignmentID] {
			b.Tests = append(b.Tests, e)
		}
	}
	return b
}
