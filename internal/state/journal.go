package state

import (
	"encoding/json"
	"os"
	"sort"

	"projectdw/internal/common"
	"projectdw/pkg/errors"
)

// Journal records, for one uncommitted batch, the state the batch started
// from and the size every output file had before it was touched. A file that
// did not exist is recorded with size -1.
type Journal struct {
	Base  State            `json:"base"`
	Files map[string]int64 `json:"files"`
}

// Batch is an open journal on disk.
type Batch struct {
	path    string
	journal Journal
}

// Begin snapshots the sizes of files and writes the journal before any of
// them is modified.
func Begin(journalPath string, base State, files []string) (*Batch, error) {
	j := Journal{Base: base.Clone(), Files: make(map[string]int64, len(files))}
	for _, f := range files {
		size, err := common.FileSize(f)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeJournal, "Failed to stat output file").
				WithContext("path", f)
		}
		j.Files[f] = size
	}

	data, err := json.MarshalIndent(j, "", "    ")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeJournal, "Failed to encode journal")
	}
	if err := common.WriteFileAtomic(journalPath, data, common.FilePermissionNormal); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeJournal, "Failed to write journal").
			WithContext("path", journalPath)
	}
	return &Batch{path: journalPath, journal: j}, nil
}

// Files lists the journaled paths in sorted order.
func (b *Batch) Files() []string {
	return sortedPaths(b.journal.Files)
}

// Commit saves next as the new state and closes the journal. Once the state
// is on disk the batch is durable; a leftover journal is discarded by the
// next Recover.
func (b *Batch) Commit(statePath string, next State) error {
	if err := next.Save(statePath); err != nil {
		return err
	}
	return b.close()
}

// Rollback restores every journaled file and closes the journal.
func (b *Batch) Rollback() error {
	if err := restore(b.journal.Files); err != nil {
		return err
	}
	return b.close()
}

func (b *Batch) close() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrCodeJournal, "Failed to remove journal").
			WithContext("path", b.path)
	}
	return nil
}

// Recover finishes whatever a previous process left behind. When the
// persisted state still equals the journal's base, the batch never committed
// and its files are restored. It reports whether a rollback happened.
func Recover(journalPath, statePath string) (bool, error) {
	data, err := os.ReadFile(journalPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeRecoveryFailed, "Failed to read journal").
			WithContext("path", journalPath)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeRecoveryFailed, "Journal is corrupt").
			WithContext("path", journalPath).
			WithSuggestions("Inspect the warehouse tables manually, then delete the journal file")
	}

	current, err := Load(statePath)
	if err != nil {
		return false, err
	}

	b := &Batch{path: journalPath, journal: j}
	if !current.Equal(j.Base) {
		return false, b.close()
	}
	if err := b.Rollback(); err != nil {
		return false, errors.Wrap(err, errors.ErrCodeRecoveryFailed, "Failed to roll back interrupted batch").
			WithContext("path", journalPath)
	}
	return true, nil
}

func restore(files map[string]int64) error {
	for _, path := range sortedPaths(files) {
		size := files[path]
		if size < 0 {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return errors.Wrap(err, errors.ErrCodeJournal, "Failed to remove file created by batch").
					WithContext("path", path)
			}
			continue
		}
		if err := os.Truncate(path, size); err != nil {
			return errors.Wrap(err, errors.ErrCodeJournal, "Failed to truncate file to its pre-batch size").
				WithContext("path", path).
				WithContext("size", size)
		}
	}
	return nil
}

func sortedPaths(files map[string]int64) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
