package adapters

import "context"

// DBAdapter defines the interface for database operations needed by the backend client.
type DBAdapter interface {
	Query(ctx context.Context, query string) (DBRows, error)
	Exec(ctx context.Context, query string) (DBResult, error)
	ExecInTx(ctx context.Context, statements []string) (DBResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// DBRows defines the interface for query result rows.
type DBRows interface {
	Columns() ([]string, error)
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// DBResult defines the interface for execution results.
type DBResult interface {
	RowsAffected() (int64, error)
}

// affected is a DBResult holding a precomputed row count, used for transactions.
type affected int64

// RowsAffected returns the summed row count of all statements of a transaction.
func (a affected) RowsAffected() (int64, error) {
	return int64(a), nil
}
