// Package fakebackend provides an in-memory loadgen.Backend for tests.
//
// Every submission completes on its own goroutine after a configurable latency.
// Failures, submission errors and ad-hoc query results are configurable, and every
// submission and query is recorded for inspection.
package fakebackend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// Submission is one recorded Submit call.
type Submission struct {
	Procedure string
	Args      []any
}

// FailureFunc decides whether a submitted call fails; a nil return means success.
type FailureFunc func(procedure string, args []any) error

// Backend is an in-memory loadgen.Backend.
type Backend struct {
	mu           sync.Mutex
	inFlight     sync.WaitGroup
	latency      time.Duration
	failure      FailureFunc
	procedures   map[string]struct{}
	submitErr    error
	submitErrAt  int
	queryResults map[string]loadgen.QueryResult
	queryErrors  map[string]error
	submissions  []Submission
	queries      []string
	completed    int
}

// Option defines a functional option for configuring a Backend.
type Option func(*Backend)

// WithLatency delays every completion by d.
func WithLatency(d time.Duration) Option {
	return func(b *Backend) {
		b.latency = d
	}
}

// WithFailures makes calls fail whenever fn returns an error.
func WithFailures(fn FailureFunc) Option {
	return func(b *Backend) {
		b.failure = fn
	}
}

// WithProcedures restricts Submit to the named procedures; others fail with loadgen.ErrUnknownProcedure.
func WithProcedures(names ...string) Option {
	return func(b *Backend) {
		b.procedures = make(map[string]struct{}, len(names))
		for _, name := range names {
			b.procedures[name] = struct{}{}
		}
	}
}

// WithSubmitErrorAt makes the n-th Submit call (1-based) and every later one return err.
func WithSubmitErrorAt(n int, err error) Option {
	return func(b *Backend) {
		b.submitErrAt = n
		b.submitErr = err
	}
}

// WithQueryResult makes QuerySync return result for query.
func WithQueryResult(query string, result loadgen.QueryResult) Option {
	return func(b *Backend) {
		b.queryResults[query] = result
	}
}

// WithQueryError makes QuerySync fail with err for query.
func WithQueryError(query string, err error) Option {
	return func(b *Backend) {
		b.queryErrors[query] = err
	}
}

// New creates a Backend.
func New(options ...Option) *Backend {
	b := &Backend{
		queryResults: make(map[string]loadgen.QueryResult),
		queryErrors:  make(map[string]error),
	}

	for _, option := range options {
		option(b)
	}

	return b
}

// Submit records the call and completes it asynchronously.
func (b *Backend) Submit(ctx context.Context, handler loadgen.CompletionHandler, procedure string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.procedures != nil {
		if _, ok := b.procedures[procedure]; !ok {
			b.mu.Unlock()
			return errors.Join(loadgen.ErrUnknownProcedure, fmt.Errorf("%q", procedure))
		}
	}

	if b.submitErr != nil && len(b.submissions)+1 >= b.submitErrAt {
		b.mu.Unlock()
		return b.submitErr
	}

	b.submissions = append(b.submissions, Submission{Procedure: procedure, Args: slices.Clone(args)})
	b.inFlight.Add(1)
	b.mu.Unlock()

	go b.complete(handler, procedure, args)

	return nil
}

func (b *Backend) complete(handler loadgen.CompletionHandler, procedure string, args []any) {
	defer b.inFlight.Done()

	if b.latency > 0 {
		time.Sleep(b.latency)
	}

	response := loadgen.SuccessResponse(1)
	if b.failure != nil {
		if err := b.failure(procedure, args); err != nil {
			response = loadgen.FailureResponse(err)
		}
	}

	handler.OnComplete(response)

	b.mu.Lock()
	b.completed++
	b.mu.Unlock()
}

// Drain waits until every submitted call completed or ctx is done.
func (b *Backend) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QuerySync returns the configured result or error for query; unknown queries return an empty result.
func (b *Backend) QuerySync(ctx context.Context, query string) (loadgen.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return loadgen.QueryResult{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queries = append(b.queries, query)

	if err, ok := b.queryErrors[query]; ok {
		return loadgen.QueryResult{}, errors.Join(loadgen.ErrQueryFailed, err)
	}

	return b.queryResults[query], nil
}

// Submissions returns a copy of all recorded submissions.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.submissions)
}

// CountFor returns how many submissions targeted procedure.
func (b *Backend) CountFor(procedure string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, s := range b.submissions {
		if s.Procedure == procedure {
			count++
		}
	}

	return count
}

// Completed returns how many submissions already invoked their handler.
func (b *Backend) Completed() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.completed
}

// Queries returns a copy of all ad-hoc queries in execution order.
func (b *Backend) Queries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return slices.Clone(b.queries)
}
