// Package state persists the cross-run record of the ETL: the scanned
// cursor, the pending project ids and the two fact-id cursors.
package state

import (
	"encoding/json"
	"os"

	"projectdw/internal/common"
	"projectdw/pkg/errors"
)

// State is the only mutable record carried from one run to the next.
type State struct {
	LastScanned         int   `json:"last_id_scanned"`
	PendingIDs          []int `json:"pending_ids"`
	LastFinancialFactID int   `json:"last_id_h_proy"`
	LastQualityFactID   int   `json:"last_id_h_cal"`
}

// legacyKeys maps older field names to their current names.
var legacyKeys = []struct{ old, current string }{
	{"last_id_proyecto_scanned", "last_id_scanned"},
	{"pending_project_ids", "pending_ids"},
	{"last_id_hecho_proy", "last_id_h_proy"},
	{"last_id_hecho_calidad", "last_id_h_cal"},
}

// Default is the state of a warehouse that has never run.
func Default() State {
	return State{PendingIDs: []int{}}
}

// Load reads the state file, returning Default when it does not exist.
func Load(path string) (State, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return State{}, errors.Wrap(err, errors.ErrCodeStateRead, "Failed to read state file").
			WithContext("path", path)
	}
	return Decode(data, path)
}

// Decode parses a state document, renaming legacy keys first.
func Decode(data []byte, path string) (State, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, errors.Wrap(err, errors.ErrCodeStateRead, "State file is not valid JSON").
			WithContext("path", path).
			WithSuggestions("Restore the state file from a backup or delete it to start from scratch")
	}

	for _, k := range legacyKeys {
		v, ok := raw[k.old]
		if !ok {
			continue
		}
		delete(raw, k.old)
		raw[k.current] = v
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return State{}, errors.Wrap(err, errors.ErrCodeStateRead, "Failed to normalize state").
			WithContext("path", path)
	}

	s := Default()
	if err := json.Unmarshal(normalized, &s); err != nil {
		return State{}, errors.Wrap(err, errors.ErrCodeStateRead, "State file has unexpected field types").
			WithContext("path", path)
	}
	if s.PendingIDs == nil {
		s.PendingIDs = []int{}
	}
	return s, nil
}

// Encode renders the state the way Save writes it: four-space indented JSON.
func (s State) Encode() ([]byte, error) {
	if s.PendingIDs == nil {
		s.PendingIDs = []int{}
	}
	return json.MarshalIndent(s, "", "    ")
}

// Save writes the state atomically. A successful Save is the commit point of
// a batch.
func (s State) Save(path string) error {
	data, err := s.Encode()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStateWrite, "Failed to encode state")
	}
	if err := common.WriteFileAtomic(path, data, common.FilePermissionNormal); err != nil {
		return errors.Wrap(err, errors.ErrCodeStateWrite, "Failed to write state file").
			WithContext("path", path)
	}
	return nil
}

// Clone returns a copy that shares no memory with s.
func (s State) Clone() State {
	c := s
	c.PendingIDs = append([]int{}, s.PendingIDs...)
	return c
}

// Equal compares two states field by field. A nil and an empty pending list
// are equal.
func (s State) Equal(o State) bool {
	if s.LastScanned != o.LastScanned ||
		s.LastFinancialFactID != o.LastFinancialFactID ||
		s.LastQualityFactID != o.LastQualityFactID ||
		len(s.PendingIDs) != len(o.PendingIDs) {
		return false
	}
	for i := range s.PendingIDs {
		if s.PendingIDs[i] != o.PendingIDs[i] {
			return false
		}
	}
	return true
}

// IsPending reports whether id is deferred.
func (s State) IsPending(id int) bool {
	for _, p := range s.PendingIDs {
		if p == id {
			return true
		}
	}
	return false
}

// AllocateFinancial reserves n financial fact ids and returns the first.
func (s *State) AllocateFinancial(n int) int {
	first := s.LastFinancialFactID + 1
	s.LastFinancialFactID += n
	return first
}

// AllocateQuality reserves n quality fact ids and returns the first.
func (s *State) AllocateQuality(n int) int {
	first := s.LastQualityFactID + 1
	s.LastQualityFactID += n
	return first
}
