// Package loader copies the warehouse CSV tables into a relational database.
package loader

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/snowflakedb/gosnowflake"

	"projectdw/internal/observability"
	"projectdw/internal/schema"
	"projectdw/internal/warehouse"
	"projectdw/pkg/errors"
	"projectdw/pkg/models"
)

// Supported database drivers, as registered with database/sql.
const (
	// DriverSQLite loads into a local SQLite file named by the DSN.
	DriverSQLite = "sqlite3"
	// DriverSnowflake loads into Snowflake, from a DSN or the snowflake fields.
	DriverSnowflake = "snowflake"
)

// Config holds the connection and load settings.
type Config struct {
	Driver      string
	DSN         string
	BatchSize   int
	Truncate    bool
	IncludeOLAP bool
	Timeout     time.Duration

	Account   string
	Username  string
	Password  string
	Database  string
	Schema    string
	Warehouse string
	Role      string
}

// ConfigFromModel builds a Config from the loader section. password replaces
// the configured Snowflake password when not empty.
func ConfigFromModel(m models.Loader, password string) (Config, error) {
	cfg := Config{
		Driver:      m.Driver,
		DSN:         m.DSN,
		BatchSize:   m.BatchSize,
		Truncate:    m.Truncate,
		IncludeOLAP: m.IncludeOLAP,
		Timeout:     30 * time.Second,
		Account:     m.Snowflake.Account,
		Username:    m.Snowflake.Username,
		Password:    m.Snowflake.Password,
		Database:    m.Snowflake.Database,
		Schema:      m.Snowflake.Schema,
		Warehouse:   m.Snowflake.Warehouse,
		Role:        m.Snowflake.Role,
	}
	if password != "" {
		cfg.Password = password
	}
	if m.Snowflake.Timeout != "" {
		d, err := time.ParseDuration(m.Snowflake.Timeout)
		if err != nil {
			return Config{}, errors.ConfigError("loader.snowflake.timeout is not a duration", "loader.snowflake.timeout")
		}
		cfg.Timeout = d
	}
	return cfg, nil
}

// Validate checks that the driver is known and has what it needs to connect.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.DSN == "" {
			return errors.ConfigError("loader.dsn is required for sqlite3", "loader.dsn")
		}
	case DriverSnowflake:
		if c.DSN != "" {
			return nil
		}
		for field, value := range map[string]string{
			"loader.snowflake.account":  c.Account,
			"loader.snowflake.username": c.Username,
			"loader.snowflake.database": c.Database,
			"loader.snowflake.schema":   c.Schema,
		} {
			if value == "" {
				return errors.ConfigError(fmt.Sprintf("%s is required for snowflake", field), field)
			}
		}
	default:
		return errors.New(errors.ErrCodeUnsupportedDriver, fmt.Sprintf("Unsupported loader driver %q", c.Driver)).
			WithContext("driver", c.Driver).
			WithSuggestions("Use sqlite3 or snowflake")
	}
	return nil
}

// DataSourceName returns the DSN handed to sql.Open.
func (c Config) DataSourceName() string {
	if c.DSN != "" || c.Driver != DriverSnowflake {
		return c.DSN
	}
	dsn := fmt.Sprintf("%s:%s@%s/%s/%s",
		url.QueryEscape(c.Username),
		url.QueryEscape(c.Password),
		c.Account,
		c.Database,
		c.Schema,
	)
	q := url.Values{}
	if c.Warehouse != "" {
		q.Set("warehouse", c.Warehouse)
	}
	if c.Role != "" {
		q.Set("role", c.Role)
	}
	if len(q) > 0 {
		dsn += "?" + q.Encode()
	}
	return dsn
}

// Tables returns the tables a load copies, in dependency order.
func (c Config) Tables() []schema.Table {
	tables := schema.WarehouseTables()
	if c.IncludeOLAP {
		tables = append(tables, schema.OLAPTables()...)
	}
	return tables
}

// TableResult is the outcome of loading one table.
type TableResult struct {
	Table    string
	Rows     int
	Inserted int
	Skipped  int
}

// Report summarizes a load.
type Report struct {
	Driver   string
	Tables   []TableResult
	Duration time.Duration
}

// Inserted totals the rows written across tables.
func (r *Report) Inserted() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Inserted
	}
	return n
}

// Service loads warehouse tables over one database connection.
type Service struct {
	db      *sql.DB
	config  Config
	dialect dialect
	retry   *errors.RetryConfig
	logger  *observability.Logger
}

// New creates a service; Connect opens the connection.
func New(config Config, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	return &Service{
		config:  config,
		dialect: dialectFor(config.Driver),
		retry:   errors.DefaultRetryConfig(),
		logger:  logger.WithField("component", "loader").WithField("driver", config.Driver),
	}
}

// NewWithDB wraps an open connection, e.g. a sqlmock in tests.
func NewWithDB(db *sql.DB, config Config, logger *observability.Logger) *Service {
	s := New(config, logger)
	s.db = db
	return s
}

// Connect opens and pings the database, retrying transient failures.
func (s *Service) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return err
	}

	retry := *s.retry
	retry.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.logger.WarnWithFields("connection failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
	}

	return errors.Retry(ctx, &retry, func(ctx context.Context) error {
		db, err := sql.Open(s.config.Driver, s.config.DataSourceName())
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to open database connection").
				WithContext("driver", s.config.Driver)
		}

		pingCtx, cancel := s.withTimeout(ctx)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			appErr := errors.Wrap(err, errors.ErrCodeConnectionFailed, "Failed to connect to database").
				WithContext("driver", s.config.Driver)
			if s.config.Account != "" {
				appErr.WithContext("account", s.config.Account)
			}
			if strings.Contains(strings.ToLower(err.Error()), "authentication") {
				return appErr.WithSuggestions(
					"Verify the loader username and password",
					"Run 'projectdw credentials set' to store the password",
				)
			}
			return appErr.AsRecoverable()
		}

		s.db = db
		return nil
	})
}

// Close releases the connection.
func (s *Service) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Load copies every configured table from store.
func (s *Service) Load(ctx context.Context, store *warehouse.Store) (*Report, error) {
	return s.LoadTables(ctx, store, s.config.Tables())
}

// LoadTables copies tables from store, one transaction per table. Unless
// Truncate is set, rows whose key already exists in the target are skipped,
// so repeated loads only add what the ETL appended since.
func (s *Service) LoadTables(ctx context.Context, store *warehouse.Store, tables []schema.Table) (*Report, error) {
	if s.db == nil {
		return nil, errors.New(errors.ErrCodeConnectionFailed, "Not connected to database").
			WithSuggestions("Call Connect() before loading")
	}

	start := time.Now()
	rep := &Report{Driver: s.config.Driver}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return rep, errors.Wrap(err, errors.ErrCodeCancelled, "Load cancelled").WithContext("table", t.Name)
		}
		data, err := store.Read(t)
		if err != nil {
			return rep, err
		}
		res, err := s.loadTable(ctx, t, data.Rows)
		if err != nil {
			return rep, err
		}
		rep.Tables = append(rep.Tables, res)
		s.logger.InfoWithFields("table loaded", map[string]interface{}{
			"table":    t.Name,
			"rows":     res.Rows,
			"inserted": res.Inserted,
			"skipped":  res.Skipped,
		})
	}
	rep.Duration = time.Since(start)
	return rep, nil
}

func (s *Service) loadTable(ctx context.Context, t schema.Table, rows [][]string) (TableResult, error) {
	res := TableResult{Table: t.Name, Rows: len(rows)}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to begin transaction").
			WithContext("table", t.Name)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ddl := s.dialect.createTable(t)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return res, errors.SQLError(fmt.Sprintf("Failed to create table %s", t.Name), ddl, err).
			WithContext("table", t.Name)
	}

	existing := map[string]bool{}
	if s.config.Truncate {
		stmt := "DELETE FROM " + quote(t.Name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return res, errors.SQLError(fmt.Sprintf("Failed to truncate table %s", t.Name), stmt, err).
				WithContext("table", t.Name)
		}
	} else if t.Key != "" {
		existing, err = existingKeys(ctx, tx, t)
		if err != nil {
			return res, err
		}
	}

	keyIdx := t.Index(t.Key)
	pending := make([][]interface{}, 0, s.config.BatchSize)
	for i, row := range rows {
		if keyIdx >= 0 && keyIdx < len(row) && existing[normalizeKey(row[keyIdx])] {
			res.Skipped++
			continue
		}
		values, err := convertRow(t, row)
		if err != nil {
			return res, errors.AddContext(errors.AddContext(err, "table", t.Name), "row", i+1)
		}
		pending = append(pending, values)
		if len(pending) == s.config.BatchSize {
			if err := s.insert(ctx, tx, t, pending); err != nil {
				return res, err
			}
			res.Inserted += len(pending)
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		if err := s.insert(ctx, tx, t, pending); err != nil {
			return res, err
		}
		res.Inserted += len(pending)
	}

	if err := tx.Commit(); err != nil {
		return res, errors.Wrap(err, errors.ErrCodeSQLTransaction, "Failed to commit transaction").
			WithContext("table", t.Name)
	}
	committed = true
	return res, nil
}

func (s *Service) insert(ctx context.Context, tx *sql.Tx, t schema.Table, rows [][]interface{}) error {
	stmt := insertStatement(t, len(rows))
	args := make([]interface{}, 0, len(rows)*len(t.Columns))
	for _, r := range rows {
		args = append(args, r...)
	}
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return errors.SQLError(fmt.Sprintf("Failed to insert into %s", t.Name), stmt, err).
			WithContext("table", t.Name).
			WithContext("rows", len(rows))
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

func existingKeys(ctx context.Context, tx *sql.Tx, t schema.Table) (map[string]bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s", quote(t.Key), quote(t.Name))
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.SQLError(fmt.Sprintf("Failed to read keys of %s", t.Name), query, err).
			WithContext("table", t.Name)
	}
	defer rows.Close()

	keys := map[string]bool{}
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, errors.SQLError(fmt.Sprintf("Failed to read keys of %s", t.Name), query, err)
		}
		if v.Valid {
			keys[normalizeKey(v.String)] = true
		}
	}
	return keys, rows.Err()
}

// normalizeKey maps "3" and "3.0" to the same key.
func normalizeKey(v string) string {
	if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return v
}

func insertStatement(t schema.Table, n int) string {
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quote(c.Name)
		marks[i] = "?"
	}
	tuple := "(" + strings.Join(marks, ", ") + ")"
	tuples := make([]string, n)
	for i := range tuples {
		tuples[i] = tuple
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		quote(t.Name), strings.Join(cols, ", "), strings.Join(tuples, ", "))
}

// convertRow turns CSV cells into driver values. Empty cells become NULL.
func convertRow(t schema.Table, row []string) ([]interface{}, error) {
	values := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		if i >= len(row) || strings.TrimSpace(row[i]) == "" {
			values[i] = nil
			continue
		}
		cell := strings.TrimSpace(row[i])
		switch c.Kind {
		case schema.KindInt:
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil || f != float64(int64(f)) {
				return nil, errors.ValidationError(c.Name, cell, "not an integer")
			}
			values[i] = int64(f)
		case schema.KindFloat:
			f, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.ValidationError(c.Name, cell, "not a number")
			}
			values[i] = f
		default:
			values[i] = cell
		}
	}
	return values, nil
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
