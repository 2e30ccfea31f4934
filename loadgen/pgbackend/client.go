package pgbackend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend/internal/adapters"
)

// Pool sizing used when WithWorkers or WithQueueSize is not given.
const (
	DefaultWorkers   = 32
	DefaultQueueSize = 10_000
)

const (
	logMsgEndpointConnected   = "connected to endpoint"
	logMsgEndpointFailed      = "connecting to endpoint failed, skipping"
	logMsgNoViableEndpoints   = "no endpoint is reachable"
	logMsgOperationFailed     = "procedure execution failed"
	logMsgHandlerPanic        = "recovered from panic in completion handler"
	logMsgQueryExecuted       = "executed ad-hoc query"
	logMsgQueryFailed         = "ad-hoc query failed"
	logMsgCloseEndpointFailed = "closing endpoint failed"
	logAttrEndpoint           = "endpoint"
	logAttrProcedure          = "procedure"
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrDurationMS         = "duration_ms"
	logAttrRows               = "rows"
	logAttrPanic              = "panic"
	spanNameQuery             = "pgbackend.query"
)

// Procedure expands call arguments into the SQL statements of one transaction.
type Procedure func(args ...any) ([]string, error)

type endpoint struct {
	name string
	db   adapters.DBAdapter
}

type job struct {
	handler    loadgen.CompletionHandler
	procedure  string
	statements []string
}

// Client is a PostgreSQL backed loadgen.Backend.
type Client struct {
	endpoints        []endpoint
	procedures       map[string]Procedure
	driver           Driver
	baseDSN          string
	workers          int
	queueSize        int
	queue            chan job
	quit             chan struct{}
	workersDone      sync.WaitGroup
	inFlight         inFlightCounter
	nextEndpoint     atomic.Uint64
	mu               sync.RWMutex
	closed           bool
	logger           loadgen.Logger
	contextualLogger loadgen.ContextualLogger
	metricsCollector loadgen.MetricsCollector
	tracingCollector loadgen.TracingCollector
}

// Connect opens one pool per endpoint using the configured driver and base DSN.
// Unreachable endpoints are logged and skipped; if none is reachable the client is still
// returned and every Submit and QuerySync fails with loadgen.ErrNoConnections.
func Connect(ctx context.Context, endpoints []string, options ...Option) (*Client, error) {
	c, err := newClient(options)
	if err != nil {
		return nil, err
	}

	for _, name := range endpoints {
		db, err := c.open(ctx, name)
		if err != nil {
			c.logWarn(logMsgEndpointFailed, logAttrEndpoint, name, logAttrError, err.Error())
			continue
		}

		c.endpoints = append(c.endpoints, endpoint{name: name, db: db})
		c.logInfo(logMsgEndpointConnected, logAttrEndpoint, name)
	}

	if len(c.endpoints) == 0 {
		c.logError(logMsgNoViableEndpoints, loadgen.ErrNoConnections)
	}

	c.start()

	return c, nil
}

// NewClientFromPGXPool creates a Client on one pre-built pgx pool.
func NewClientFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Client, error) {
	if pool == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("pgx pool"))
	}

	return newClientWithAdapter("pgxpool", adapters.NewPGXAdapter(pool), options)
}

// NewClientFromSQLDB creates a Client on one pre-built database/sql handle.
func NewClientFromSQLDB(db *sql.DB, options ...Option) (*Client, error) {
	if db == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("sql db"))
	}

	return newClientWithAdapter("sqldb", adapters.NewSQLAdapter(db), options)
}

// NewClientFromSQLX creates a Client on one pre-built sqlx handle.
func NewClientFromSQLX(db *sqlx.DB, options ...Option) (*Client, error) {
	if db == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("sqlx db"))
	}

	return newClientWithAdapter("sqlx", adapters.NewSQLXAdapter(db), options)
}

func newClientWithAdapter(name string, db adapters.DBAdapter, options []Option) (*Client, error) {
	c, err := newClient(options)
	if err != nil {
		return nil, err
	}

	c.endpoints = []endpoint{{name: name, db: db}}
	c.start()

	return c, nil
}

func newClient(options []Option) (*Client, error) {
	c := &Client{
		procedures: make(map[string]Procedure),
		driver:     DriverPGX,
		baseDSN:    DefaultBaseDSN,
		workers:    DefaultWorkers,
		queueSize:  DefaultQueueSize,
		quit:       make(chan struct{}),
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Client) start() {
	c.queue = make(chan job, c.queueSize)

	for range c.workers {
		c.workersDone.Add(1)
		go c.work()
	}
}

// Endpoints returns the names of the connected endpoints.
func (c *Client) Endpoints() []string {
	names := make([]string, len(c.endpoints))
	for i, e := range c.endpoints {
		names[i] = e.name
	}

	return names
}

// InFlight returns how many submitted calls have not completed yet.
func (c *Client) InFlight() int64 {
	return c.inFlight.count()
}

// Submit expands procedure with args and enqueues it for asynchronous execution.
// It blocks while the queue is full until ctx is done.
func (c *Client) Submit(ctx context.Context, handler loadgen.CompletionHandler, procedure string, args ...any) error {
	if handler == nil {
		return errors.Join(loadgen.ErrNilDependency, errors.New("completion handler"))
	}

	build, ok := c.procedures[procedure]
	if !ok {
		return errors.Join(loadgen.ErrUnknownProcedure, fmt.Errorf("%q", procedure))
	}

	if len(c.endpoints) == 0 {
		return loadgen.ErrNoConnections
	}

	statements, err := build(args...)
	if err != nil {
		return errors.Join(loadgen.ErrSubmissionFailed, fmt.Errorf("building %s", procedure), err)
	}

	if len(statements) == 0 {
		return errors.Join(loadgen.ErrSubmissionFailed, loadgen.ErrInvalidArgument, fmt.Errorf("%s produced no statements", procedure))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return loadgen.ErrClientClosed
	}

	c.inFlight.add()

	select {
	case c.queue <- job{handler: handler, procedure: procedure, statements: statements}:
		return nil
	case <-ctx.Done():
		c.inFlight.done()
		return errors.Join(loadgen.ErrSubmissionFailed, ctx.Err())
	}
}

// Drain blocks until every submitted call completed or ctx is done.
func (c *Client) Drain(ctx context.Context) error {
	if err := c.inFlight.wait(ctx); err != nil {
		return errors.Join(loadgen.ErrDrainFailed, err)
	}

	return nil
}

// QuerySync executes an ad-hoc query on the next endpoint and returns all rows.
func (c *Client) QuerySync(ctx context.Context, query string) (loadgen.QueryResult, error) {
	if len(c.endpoints) == 0 {
		return loadgen.QueryResult{}, loadgen.ErrNoConnections
	}

	ctx, span := c.startTraceSpan(ctx, spanNameQuery, map[string]string{logAttrQuery: query})
	start := time.Now()

	result, err := c.query(ctx, c.pick(), query)
	duration := time.Since(start)

	if err != nil {
		c.logErrorContext(ctx, logMsgQueryFailed, err, logAttrQuery, query)
		c.finishTraceSpan(span, loadgen.StatusLabelError, map[string]string{logAttrError: err.Error()})
		return loadgen.QueryResult{}, errors.Join(loadgen.ErrQueryFailed, err)
	}

	c.logDebugContext(ctx, logMsgQueryExecuted,
		logAttrQuery, query, logAttrRows, result.RowCount(), logAttrDurationMS, toMilliseconds(duration))
	c.finishTraceSpan(span, loadgen.StatusLabelSuccess, map[string]string{logAttrDurationMS: fmt.Sprintf("%.3f", toMilliseconds(duration))})

	return result, nil
}

func (c *Client) query(ctx context.Context, e endpoint, query string) (loadgen.QueryResult, error) {
	rows, err := e.db.Query(ctx, query)
	if err != nil {
		return loadgen.QueryResult{}, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return loadgen.QueryResult{}, err
	}

	result := loadgen.QueryResult{Columns: columns, Rows: make([][]any, 0)}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return loadgen.QueryResult{}, err
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return loadgen.QueryResult{}, err
	}

	return result, nil
}

// Exec runs statements synchronously in one transaction on every endpoint, e.g. for schema setup.
func (c *Client) Exec(ctx context.Context, statements ...string) error {
	if len(c.endpoints) == 0 {
		return loadgen.ErrNoConnections
	}

	for _, e := range c.endpoints {
		if _, err := e.db.ExecInTx(ctx, statements); err != nil {
			return errors.Join(loadgen.ErrQueryFailed, fmt.Errorf("endpoint %s", e.name), err)
		}
	}

	return nil
}

// Close waits for in-flight calls, stops the workers and closes every endpoint.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	_ = c.inFlight.wait(context.Background())
	close(c.quit)
	c.workersDone.Wait()

	var errs error
	for _, e := range c.endpoints {
		if err := e.db.Close(); err != nil {
			c.logError(logMsgCloseEndpointFailed, err, logAttrEndpoint, e.name)
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

func (c *Client) pick() endpoint {
	n := c.nextEndpoint.Add(1) - 1
	return c.endpoints[n%uint64(len(c.endpoints))]
}

func (c *Client) work() {
	defer c.workersDone.Done()

	for {
		select {
		case j := <-c.queue:
			c.execute(j)
		case <-c.quit:
			return
		}
	}
}

func (c *Client) execute(j job) {
	defer c.inFlight.done()

	e := c.pick()
	start := time.Now()

	var (
		result adapters.DBResult
		err    error
	)

	ctx := context.Background()
	if len(j.statements) == 1 {
		result, err = e.db.Exec(ctx, j.statements[0])
	} else {
		result, err = e.db.ExecInTx(ctx, j.statements)
	}

	duration := time.Since(start)

	response := loadgen.SuccessResponse(0)
	if err != nil {
		response = loadgen.FailureResponse(err)
		c.logDebug(logMsgOperationFailed, logAttrProcedure, j.procedure, logAttrEndpoint, e.name, logAttrError, err.Error())
		c.recordExecution(j.procedure, duration, loadgen.StatusLabelError)
		c.recordError(j.procedure)
	} else {
		if rows, rowsErr := result.RowsAffected(); rowsErr == nil {
			response.RowsAffected = rows
		}
		c.recordExecution(j.procedure, duration, loadgen.StatusLabelSuccess)
	}

	c.complete(j, response)
}

func (c *Client) complete(j job, response loadgen.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.logError(logMsgHandlerPanic, fmt.Errorf("%v", r), logAttrProcedure, j.procedure)
		}
	}()

	j.handler.OnComplete(response)
}
