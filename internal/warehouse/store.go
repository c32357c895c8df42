// Package warehouse owns every file the ETL writes: catalogs, dimensions,
// facts and the denormalized tables. Files are CSV with a header row and
// only ever grow, except for tables regenerated wholesale.
package warehouse

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"projectdw/internal/common"
	"projectdw/internal/observability"
	"projectdw/internal/schema"
	"projectdw/pkg/errors"
)

// Store reads and writes warehouse and OLAP tables.
type Store struct {
	warehouseDir string
	olapDir      string
	logger       *observability.Logger
}

// NewStore creates a store rooted at the two output directories.
func NewStore(warehouseDir, olapDir string, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Store{
		warehouseDir: warehouseDir,
		olapDir:      olapDir,
		logger:       logger.WithField("component", "warehouse"),
	}
}

// Path returns the file of t.
func (s *Store) Path(t schema.Table) string {
	dir := s.warehouseDir
	if t.Layer == schema.LayerOLAP {
		dir = s.olapDir
	}
	return filepath.Join(dir, t.FileName())
}

// Exists reports whether t has a file on disk.
func (s *Store) Exists(t schema.Table) bool {
	return common.FileExists(s.Path(t))
}

// Files lists every file the store may write, in registry order.
func (s *Store) Files() []string {
	var files []string
	for _, t := range append(schema.WarehouseTables(), schema.OLAPTables()...) {
		files = append(files, s.Path(t))
	}
	return files
}

// Read loads t. A missing file yields an empty table and is not created.
func (s *Store) Read(t schema.Table) (*Table, error) {
	path := s.Path(t)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Table{Schema: t}, nil
	}
	if err != nil {
		return nil, errors.TableError(errors.ErrCodeTableRead, t.Name, path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &Table{Schema: t}, nil
	}
	if err != nil {
		return nil, errors.TableError(errors.ErrCodeTableRead, t.Name, path, err)
	}
	if err := checkHeader(t, path, header); err != nil {
		return nil, err
	}

	table := &Table{Schema: t}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.TableError(errors.ErrCodeTableRead, t.Name, path, err)
		}
		if len(row) < len(t.Columns) {
			row = append(row, make([]string, len(t.Columns)-len(row))...)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// CheckHeaders verifies that every table file on disk starts with the header
// its schema declares. Missing and empty files pass.
func (s *Store) CheckHeaders() error {
	for _, t := range append(schema.WarehouseTables(), schema.OLAPTables()...) {
		if err := s.verifyHeader(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) verifyHeader(t schema.Table) error {
	path := s.Path(t)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.TableError(errors.ErrCodeTableRead, t.Name, path, err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.TableError(errors.ErrCodeTableRead, t.Name, path, err)
	}
	return checkHeader(t, path, header)
}

func checkHeader(t schema.Table, path string, header []string) error {
	want := t.ColumnNames()
	got := make([]string, len(header))
	for i, h := range header {
		got[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	if strings.Join(got, ",") == strings.Join(want, ",") {
		return nil
	}
	return errors.New(errors.ErrCodeTableSchema, fmt.Sprintf("Table %s has an unexpected header", t.Name)).
		WithContext("table", t.Name).
		WithContext("path", path).
		WithContext("expected", strings.Join(want, ",")).
		WithContext("found", strings.Join(got, ",")).
		WithSuggestions("Move the file aside and rebuild the warehouse from the source tables")
}

// GetOrCreate returns the rows of t, creating the file with only its header
// when it does not exist yet.
func (s *Store) GetOrCreate(t schema.Table) (*Table, error) {
	if s.Exists(t) {
		return s.Read(t)
	}
	if err := s.Ensure(t); err != nil {
		return nil, err
	}
	return &Table{Schema: t}, nil
}

// Ensure creates t with only its header when the file is missing or empty.
// Existing content is left untouched.
func (s *Store) Ensure(t schema.Table) error {
	path := s.Path(t)
	size, err := common.FileSize(path)
	if err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if size > 0 {
		return nil
	}
	s.logger.WithField("table", t.Name).Debug("creating table")
	return s.Overwrite(t, nil)
}

// Overwrite replaces the whole content of t with its header and rows.
func (s *Store) Overwrite(t schema.Table, rows [][]string) error {
	path := s.Path(t)
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write(t.ColumnNames()); err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if err := common.WriteFileAtomic(path, []byte(b.String()), common.FilePermissionNormal); err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	return nil
}

// Append adds rows to the end of t without rewriting existing content. The
// file is created with its header first when absent; an existing file must
// carry the header of t. Appending no rows is a no-op.
func (s *Store) Append(t schema.Table, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	path := s.Path(t)
	if err := common.EnsureDir(filepath.Dir(path)); err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}

	size, err := common.FileSize(path)
	if err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if size > 0 {
		if err := s.verifyHeader(t); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, common.FilePermissionNormal)
	if err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}

	w := csv.NewWriter(f)
	if size <= 0 {
		if err := w.Write(t.ColumnNames()); err != nil {
			f.Close()
			return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	if err := f.Close(); err != nil {
		return errors.TableError(errors.ErrCodeTableWrite, t.Name, path, err)
	}
	return nil
}
