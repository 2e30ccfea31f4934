// Package postgreswrapper opens a pgbackend.Client on a live PostgreSQL for integration tests.
//
// Tests are skipped unless OVERSPEND_TEST_DSN is set. ADAPTER_TYPE selects the handle
// (pgxpool, sqldb or sqlx; empty means pgxpool).
package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend"
)

// Env variables read by the wrapper.
const (
	EnvTestDSN     = "OVERSPEND_TEST_DSN"
	EnvAdapterType = "ADAPTER_TYPE"
)

const (
	typePGXPool = "pgxpool"
	typeSQLDB   = "sqldb"
	typeSQLX    = "sqlx"

	driverNamePostgres = "postgres"
)

// Wrapper abstracts over the handle types a Client can be built from.
type Wrapper interface {
	Client() *pgbackend.Client
	Close()
}

// PGXPoolWrapper wraps a pgxpool-based Client.
type PGXPoolWrapper struct {
	pool   *pgxpool.Pool
	client *pgbackend.Client
}

// Client returns the wrapped client.
func (w *PGXPoolWrapper) Client() *pgbackend.Client {
	return w.client
}

// Close closes the client and with it the pool.
func (w *PGXPoolWrapper) Close() {
	_ = w.client.Close()
}

// SQLDBWrapper wraps a database/sql-based Client.
type SQLDBWrapper struct {
	db     *sql.DB
	client *pgbackend.Client
}

// Client returns the wrapped client.
func (w *SQLDBWrapper) Client() *pgbackend.Client {
	return w.client
}

// Close closes the client and with it the handle.
func (w *SQLDBWrapper) Close() {
	_ = w.client.Close()
}

// SQLXWrapper wraps a sqlx-based Client.
type SQLXWrapper struct {
	db     *sqlx.DB
	client *pgbackend.Client
}

// Client returns the wrapped client.
func (w *SQLXWrapper) Client() *pgbackend.Client {
	return w.client
}

// Close closes the client and with it the handle.
func (w *SQLXWrapper) Close() {
	_ = w.client.Close()
}

// CreateWrapperWithTestConfig creates the wrapper selected by ADAPTER_TYPE on OVERSPEND_TEST_DSN.
// The wrapper is closed on test cleanup.
func CreateWrapperWithTestConfig(t testing.TB, options ...pgbackend.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping PostgreSQL integration test", EnvTestDSN)
	}

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv(EnvAdapterType)); adapterType {
	case typePGXPool, "":
		pool, err := pgxpool.New(context.Background(), dsn)
		require.NoError(t, err, "error connecting to DB pool in test setup")
		client, err := pgbackend.NewClientFromPGXPool(pool, options...)
		require.NoError(t, err, "error creating client in test setup")
		wrapper = &PGXPoolWrapper{pool: pool, client: client}

	case typeSQLDB:
		db, err := sql.Open(driverNamePostgres, dsn)
		require.NoError(t, err, "error opening DB in test setup")
		client, err := pgbackend.NewClientFromSQLDB(db, options...)
		require.NoError(t, err, "error creating client in test setup")
		wrapper = &SQLDBWrapper{db: db, client: client}

	case typeSQLX:
		db, err := sqlx.Open(driverNamePostgres, dsn)
		require.NoError(t, err, "error opening DB in test setup")
		client, err := pgbackend.NewClientFromSQLX(db, options...)
		require.NoError(t, err, "error creating client in test setup")
		wrapper = &SQLXWrapper{db: db, client: client}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	t.Cleanup(wrapper.Close)

	return wrapper
}

// CleanUp empties the given tables.
func CleanUp(t testing.TB, wrapper Wrapper, tables ...string) {
	t.Helper()

	for _, table := range tables {
		query := fmt.Sprintf("TRUNCATE TABLE %s", table)

		var err error
		switch w := wrapper.(type) {
		case *PGXPoolWrapper:
			_, err = w.pool.Exec(context.Background(), query)
		case *SQLDBWrapper:
			_, err = w.db.Exec(query)
		case *SQLXWrapper:
			_, err = w.db.Exec(query)
		default:
			panic(fmt.Sprintf("unsupported wrapper type: %T", w))
		}

		require.NoError(t, err, "error cleaning up table %s", table)
	}
}

// CountRows returns the number of rows in table.
func CountRows(t testing.TB, wrapper Wrapper, table string) int64 {
	t.Helper()

	query := fmt.Sprintf("SELECT count(*) FROM %s", table)

	var count int64
	var err error

	switch w := wrapper.(type) {
	case *PGXPoolWrapper:
		err = w.pool.QueryRow(context.Background(), query).Scan(&count)
	case *SQLDBWrapper:
		err = w.db.QueryRow(query).Scan(&count)
	case *SQLXWrapper:
		err = w.db.Get(&count, query)
	default:
		panic(fmt.Sprintf("unsupported wrapper type: %T", w))
	}

	require.NoError(t, err, "error counting rows of %s", table)

	return count
}
