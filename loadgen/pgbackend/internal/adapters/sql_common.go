package adapters

import (
	"context"
	"database/sql"
	"errors"
)

// stdRows wraps standard library sql.Rows to implement DBRows interface.
type stdRows struct {
	rows    *sql.Rows
	columns []string
}

// Columns returns the column names of the result set.
func (s *stdRows) Columns() ([]string, error) {
	if s.columns != nil {
		return s.columns, nil
	}

	columns, err := s.rows.Columns()
	if err != nil {
		return nil, err
	}
	s.columns = columns

	return columns, nil
}

// Next advances to the next row.
func (s *stdRows) Next() bool {
	return s.rows.Next()
}

// Values scans the current row into freshly allocated values.
func (s *stdRows) Values() ([]any, error) {
	columns, err := s.Columns()
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	pointers := make([]any, len(columns))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := s.rows.Scan(pointers...); err != nil {
		return nil, err
	}

	return values, nil
}

// Err returns the error, if any, that was encountered during iteration.
func (s *stdRows) Err() error {
	return s.rows.Err()
}

// Close closes the rows iterator.
func (s *stdRows) Close() error {
	return s.rows.Close()
}

// stdResult wraps standard library sql.Result to implement DBResult interface.
type stdResult struct {
	result sql.Result
}

// RowsAffected returns the number of rows affected by the command.
func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// execer is the part of sql.Tx and sqlx.Tx used to run transaction statements.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	Commit() error
	Rollback() error
}

// execStatementsInTx runs statements in tx and commits, rolling back on the first failure.
func execStatementsInTx(ctx context.Context, tx execer, statements []string) (DBResult, error) {
	var total int64

	for _, statement := range statements {
		result, err := tx.ExecContext(ctx, statement)
		if err != nil {
			return nil, errors.Join(err, tx.Rollback())
		}

		if rows, err := result.RowsAffected(); err == nil {
			total += rows
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return affected(total), nil
}
