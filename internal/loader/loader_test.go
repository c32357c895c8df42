package loader

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"projectdw/internal/observability"
	"projectdw/internal/schema"
	"projectdw/internal/testutil"
	"projectdw/internal/warehouse"
	"projectdw/pkg/errors"
	"projectdw/pkg/models"
)

func newStore(t *testing.T) *warehouse.Store {
	ws := testutil.NewWorkspace(t)
	ws.WriteFile(ws.WarehouseDir, "SubdimPais.csv", "id_pais,nombre_pais\n1,Chile\n2,Argentina\n3,Perú\n")
	return warehouse.NewStore(ws.WarehouseDir, ws.OLAPDir, nil)
}

func newMock(t *testing.T, cfg Config) (*Service, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, cfg, nil), mock
}

const createPais = `CREATE TABLE IF NOT EXISTS "SubdimPais" ("id_pais" INTEGER, "nombre_pais" TEXT, PRIMARY KEY ("id_pais"))`

func TestLoadSkipsExistingKeys(t *testing.T) {
	store := newStore(t)
	svc, mock := newMock(t, Config{Driver: DriverSQLite, DSN: "test.db", BatchSize: 500})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(createPais)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id_pais" FROM "SubdimPais"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id_pais"}).AddRow("1"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "SubdimPais" ("id_pais", "nombre_pais") VALUES (?, ?), (?, ?)`)).
		WithArgs(int64(2), "Argentina", int64(3), "Perú").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	rep, err := svc.LoadTables(context.Background(), store, []schema.Table{schema.SubdimPais})
	require.NoError(t, err)

	require.Len(t, rep.Tables, 1)
	assert.Equal(t, TableResult{Table: "SubdimPais", Rows: 3, Inserted: 2, Skipped: 1}, rep.Tables[0])
	assert.Equal(t, 2, rep.Inserted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadTruncateAndBatches(t *testing.T) {
	store := newStore(t)
	svc, mock := newMock(t, Config{Driver: DriverSQLite, DSN: "test.db", BatchSize: 2, Truncate: true})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(createPais)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "SubdimPais"`)).WillReturnResult(sqlmock.NewResult(0, 5))
	mock.ExpectExec(regexp.QuoteMeta(`VALUES (?, ?), (?, ?)`)).
		WithArgs(int64(1), "Chile", int64(2), "Argentina").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "SubdimPais" ("id_pais", "nombre_pais") VALUES (?, ?)`)).
		WithArgs(int64(3), "Perú").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rep, err := svc.LoadTables(context.Background(), store, []schema.Table{schema.SubdimPais})
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Inserted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRollsBackOnInsertError(t *testing.T) {
	store := newStore(t)
	svc, mock := newMock(t, Config{Driver: DriverSQLite, DSN: "test.db", Truncate: true})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(createPais)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "SubdimPais"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "SubdimPais"`)).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	_, err := svc.LoadTables(context.Background(), store, []schema.Table{schema.SubdimPais})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSQLExecution, errors.GetErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMissingTableCreatesEmptyTarget(t *testing.T) {
	store := newStore(t)
	svc, mock := newMock(t, Config{Driver: DriverSnowflake, DSN: "x", Truncate: true})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "DimTiempo" ("id_tiempo" NUMBER(38,0), "fecha" DATE, "año" NUMBER(38,0), "mes" NUMBER(38,0), PRIMARY KEY ("id_tiempo"))`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "DimTiempo"`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rep, err := svc.LoadTables(context.Background(), store, []schema.Table{schema.DimTiempo})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Inserted())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRequiresConnection(t *testing.T) {
	svc := New(Config{Driver: DriverSQLite, DSN: "test.db"}, nil)
	_, err := svc.Load(context.Background(), newStore(t))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConnectionFailed, errors.GetErrorCode(err))
}

func TestConvertRow(t *testing.T) {
	values, err := convertRow(schema.HechosProyecto, []string{"1", "1", "1", "", "20230715", "110000.0", "-40000.5"})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{int64(1), int64(1), int64(1), nil, int64(20230715), 110000.0, -40000.5}, values)

	_, err = convertRow(schema.HechosProyecto, []string{"x"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidValue, errors.GetErrorCode(err))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr errors.ErrorCode
	}{
		{"sqlite", Config{Driver: DriverSQLite, DSN: "dw.db"}, ""},
		{"sqlite without dsn", Config{Driver: DriverSQLite}, errors.ErrCodeConfigInvalid},
		{"snowflake fields", Config{Driver: DriverSnowflake, Account: "acme", Username: "etl", Database: "DW", Schema: "PUBLIC"}, ""},
		{"snowflake raw dsn", Config{Driver: DriverSnowflake, DSN: "u:p@acme/DW/PUBLIC"}, ""},
		{"snowflake missing account", Config{Driver: DriverSnowflake, Username: "etl", Database: "DW", Schema: "PUBLIC"}, errors.ErrCodeConfigInvalid},
		{"unknown driver", Config{Driver: "postgres"}, errors.ErrCodeUnsupportedDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, errors.GetErrorCode(err))
		})
	}
}

func TestDataSourceName(t *testing.T) {
	cfg := Config{
		Driver:    DriverSnowflake,
		Account:   "acme.us-east-1",
		Username:  "etl",
		Password:  "p@ss",
		Database:  "DW",
		Schema:    "PUBLIC",
		Warehouse: "ETL_WH",
		Role:      "LOADER",
	}
	assert.Equal(t, "etl:p%40ss@acme.us-east-1/DW/PUBLIC?role=LOADER&warehouse=ETL_WH", cfg.DataSourceName())

	cfg.DSN = "custom"
	assert.Equal(t, "custom", cfg.DataSourceName())

	assert.Equal(t, "dw.db", Config{Driver: DriverSQLite, DSN: "dw.db"}.DataSourceName())
}

func TestConfigFromModel(t *testing.T) {
	m := models.Loader{
		Driver:      DriverSnowflake,
		BatchSize:   100,
		IncludeOLAP: true,
		Snowflake:   models.Snowflake{Account: "acme", Username: "etl", Password: "stored", Timeout: "5s"},
	}

	cfg, err := ConfigFromModel(m, "resolved")
	require.NoError(t, err)
	assert.Equal(t, "resolved", cfg.Password)
	assert.Equal(t, "5s", cfg.Timeout.String())
	assert.Len(t, cfg.Tables(), len(schema.WarehouseTables())+len(schema.OLAPTables()))

	m.Snowflake.Timeout = "soon"
	_, err = ConfigFromModel(m, "")
	assert.Error(t, err)
}

func TestConnectLogsRetries(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:   observability.DebugLevel,
		Output:  &buf,
		Encoder: observability.TextEncoder{},
	})

	dsn := filepath.Join(t.TempDir(), "missing", "dw.db")
	svc := New(Config{Driver: DriverSQLite, DSN: dsn}, logger)
	svc.retry.MaxRetries = 2
	svc.retry.InitialDelay = time.Millisecond
	svc.retry.MaxDelay = 5 * time.Millisecond

	err := svc.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeMaxRetriesExceeded, errors.GetErrorCode(err))
	assert.Equal(t, 2, strings.Count(buf.String(), "connection failed, retrying"))
	assert.Contains(t, buf.String(), "attempt")
}
