package pgbackend_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend/internal/adapters"
)

type fakeResult int64

func (r fakeResult) RowsAffected() (int64, error) {
	return int64(r), nil
}

type fakeRows struct {
	columns []string
	rows    [][]any
	pos     int
}

func (r *fakeRows) Columns() ([]string, error) { return r.columns, nil }
func (r *fakeRows) Next() bool                 { r.pos++; return r.pos <= len(r.rows) }
func (r *fakeRows) Values() ([]any, error)     { return r.rows[r.pos-1], nil }
func (r *fakeRows) Err() error                 { return nil }
func (r *fakeRows) Close() error               { return nil }

// fakeDB records every statement it executes.
type fakeDB struct {
	mu           sync.Mutex
	latency      time.Duration
	execErr      error
	queryErr     error
	queryColumns []string
	queryRows    [][]any
	execs        []string
	txs          [][]string
	queries      []string
	closed       bool
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, query)
	if f.queryErr != nil {
		return nil, f.queryErr
	}

	return &fakeRows{columns: f.queryColumns, rows: f.queryRows}, nil
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	if f.latency > 0 {
		time.Sleep(f.latency)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, query)
	if f.execErr != nil {
		return nil, f.execErr
	}

	return fakeResult(1), nil
}

func (f *fakeDB) ExecInTx(_ context.Context, statements []string) (adapters.DBResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.txs = append(f.txs, slices.Clone(statements))
	if f.execErr != nil {
		return nil, f.execErr
	}

	return fakeResult(len(statements)), nil
}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.New("already closed")
	}
	f.closed = true

	return nil
}

func (f *fakeDB) execCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.execs)
}

func (f *fakeDB) txBatches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.txs)
}
