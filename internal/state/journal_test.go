package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type journalFixture struct {
	dir      string
	state    string
	journal  string
	existing string
	created  string
}

func newJournalFixture(t *testing.T) journalFixture {
	t.Helper()
	dir := t.TempDir()
	f := journalFixture{
		dir:      dir,
		state:    filepath.Join(dir, "etl_state_tracking.json"),
		journal:  filepath.Join(dir, "etl_state_tracking.journal"),
		existing: filepath.Join(dir, "HechosProyecto.csv"),
		created:  filepath.Join(dir, "OLAP_Calidad.csv"),
	}
	require.NoError(t, os.WriteFile(f.existing, []byte("id_hecho\n1\n"), 0644))
	return f
}

func (f journalFixture) mutate(t *testing.T) {
	t.Helper()
	fh, err := os.OpenFile(f.existing, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = fh.WriteString("2\n3\n")
	require.NoError(t, err)
	require.NoError(t, fh.Close())
	require.NoError(t, os.WriteFile(f.created, []byte("id_hecho_calidad\n1\n"), 0644))
}

func TestBatchRollback(t *testing.T) {
	f := newJournalFixture(t)
	base := State{LastScanned: 1, PendingIDs: []int{}, LastFinancialFactID: 1}

	b, err := Begin(f.journal, base, []string{f.existing, f.created})
	require.NoError(t, err)
	assert.FileExists(t, f.journal)
	assert.Equal(t, []string{f.existing, f.created}, b.Files())

	f.mutate(t)
	require.NoError(t, b.Rollback())

	data, err := os.ReadFile(f.existing)
	require.NoError(t, err)
	assert.Equal(t, "id_hecho\n1\n", string(data))
	assert.NoFileExists(t, f.created)
	assert.NoFileExists(t, f.journal)
}

func TestBatchCommit(t *testing.T) {
	f := newJournalFixture(t)
	base := Default()

	b, err := Begin(f.journal, base, []string{f.existing})
	require.NoError(t, err)
	f.mutate(t)

	next := State{LastScanned: 3, PendingIDs: []int{}, LastFinancialFactID: 3}
	require.NoError(t, b.Commit(f.state, next))

	assert.NoFileExists(t, f.journal)
	loaded, err := Load(f.state)
	require.NoError(t, err)
	assert.True(t, next.Equal(loaded))

	data, err := os.ReadFile(f.existing)
	require.NoError(t, err)
	assert.Equal(t, "id_hecho\n1\n2\n3\n", string(data))
}

func TestRecoverAfterCrashBeforeCommit(t *testing.T) {
	f := newJournalFixture(t)
	base := State{LastScanned: 1, PendingIDs: []int{}, LastFinancialFactID: 1}
	require.NoError(t, base.Save(f.state))

	_, err := Begin(f.journal, base, []string{f.existing, f.created})
	require.NoError(t, err)
	f.mutate(t)
	// process dies here: state never saved

	rolledBack, err := Recover(f.journal, f.state)
	require.NoError(t, err)
	assert.True(t, rolledBack)

	data, err := os.ReadFile(f.existing)
	require.NoError(t, err)
	assert.Equal(t, "id_hecho\n1\n", string(data))
	assert.NoFileExists(t, f.created)
	assert.NoFileExists(t, f.journal)
}

func TestRecoverAfterCrashAfterCommit(t *testing.T) {
	f := newJournalFixture(t)
	base := State{LastScanned: 1, PendingIDs: []int{}, LastFinancialFactID: 1}
	require.NoError(t, base.Save(f.state))

	_, err := Begin(f.journal, base, []string{f.existing, f.created})
	require.NoError(t, err)
	f.mutate(t)
	require.NoError(t, State{LastScanned: 3, PendingIDs: []int{}, LastFinancialFactID: 3}.Save(f.state))
	// process dies here: journal not removed

	rolledBack, err := Recover(f.journal, f.state)
	require.NoError(t, err)
	assert.False(t, rolledBack)

	data, err := os.ReadFile(f.existing)
	require.NoError(t, err)
	assert.Equal(t, "id_hecho\n1\n2\n3\n", string(data))
	assert.FileExists(t, f.created)
	assert.NoFileExists(t, f.journal)
}

func TestRecoverWithoutJournal(t *testing.T) {
	f := newJournalFixture(t)
	rolledBack, err := Recover(f.journal, f.state)
	require.NoError(t, err)
	assert.False(t, rolledBack)
}
