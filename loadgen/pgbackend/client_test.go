package pgbackend_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pgbackend/internal/adapters"
	"github.com/AntonStoeckl/overspend-loadgen-go/testutil/helper"
)

func singleStatement(args ...any) ([]string, error) {
	if len(args) != 1 {
		return nil, loadgen.ErrInvalidArgument
	}
	return []string{fmt.Sprintf("SELECT %v", args[0])}, nil
}

func twoStatements(args ...any) ([]string, error) {
	return []string{"INSERT 1", "INSERT 2"}, nil
}

type responseCollector struct {
	successes atomic.Int64
	failures  atomic.Int64
	rows      atomic.Int64
}

func (c *responseCollector) OnComplete(response loadgen.Response) {
	if response.Status == loadgen.StatusSuccess {
		c.successes.Add(1)
		c.rows.Add(response.RowsAffected)
		return
	}
	c.failures.Add(1)
}

func givenClient(t *testing.T, dbs map[string]*fakeDB, names []string, options ...pgbackend.Option) *pgbackend.Client {
	t.Helper()

	adapted := make(map[string]adapters.DBAdapter, len(dbs))
	for name, db := range dbs {
		adapted[name] = db
	}

	options = append([]pgbackend.Option{
		pgbackend.WithProcedure("single", singleStatement),
		pgbackend.WithProcedure("double", twoStatements),
	}, options...)

	client, err := pgbackend.NewClientForAdapters(adapted, names, options...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func Test_Submit_When_ProcedureIsUnknown_ThenItFailsSynchronously(t *testing.T) {
	// setup
	client := givenClient(t, map[string]*fakeDB{"a": {}}, []string{"a"})

	// act
	err := client.Submit(context.Background(), &responseCollector{}, "nope", 1)

	// assert
	assert.ErrorIs(t, err, loadgen.ErrUnknownProcedure)
	assert.Equal(t, int64(0), client.InFlight())
}

func Test_Submit_When_NoEndpointIsConnected_ThenItFailsWithNoConnections(t *testing.T) {
	// setup
	client := givenClient(t, nil, nil)

	// act
	errSubmit := client.Submit(context.Background(), &responseCollector{}, "single", 1)
	_, errQuery := client.QuerySync(context.Background(), "SELECT 1")

	// assert
	assert.ErrorIs(t, errSubmit, loadgen.ErrNoConnections)
	assert.ErrorIs(t, errQuery, loadgen.ErrNoConnections)
}

func Test_Submit_When_ArgumentsAreInvalid_ThenItFailsSynchronously(t *testing.T) {
	// setup
	client := givenClient(t, map[string]*fakeDB{"a": {}}, []string{"a"})

	// act
	err := client.Submit(context.Background(), &responseCollector{}, "single")

	// assert
	assert.ErrorIs(t, err, loadgen.ErrSubmissionFailed)
	assert.ErrorIs(t, err, loadgen.ErrInvalidArgument)
}

func Test_Submit_When_CallsSucceed_ThenEveryHandlerIsInvokedOnceBeforeDrainReturns(t *testing.T) {
	// setup
	db := &fakeDB{latency: 100 * time.Microsecond}
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"}, pgbackend.WithWorkers(4), pgbackend.WithQueueSize(8))
	collector := &responseCollector{}

	// act
	for i := 0; i < 200; i++ {
		require.NoError(t, client.Submit(context.Background(), collector, "single", i))
	}
	err := client.Drain(context.Background())

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(200), collector.successes.Load())
	assert.Equal(t, int64(200), collector.rows.Load())
	assert.Equal(t, 200, db.execCount())
	assert.Equal(t, int64(0), client.InFlight())
}

func Test_Submit_When_ProcedureHasSeveralStatements_ThenTheyRunInOneTransaction(t *testing.T) {
	// setup
	db := &fakeDB{}
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"})
	collector := &responseCollector{}

	// act
	require.NoError(t, client.Submit(context.Background(), collector, "double"))
	require.NoError(t, client.Drain(context.Background()))

	// assert
	assert.Equal(t, [][]string{{"INSERT 1", "INSERT 2"}}, db.txBatches())
	assert.Equal(t, 0, db.execCount())
	assert.Equal(t, int64(2), collector.rows.Load())
}

func Test_Submit_When_ExecutionFails_ThenHandlerReceivesFailureAndErrorIsCounted(t *testing.T) {
	// setup
	db := &fakeDB{execErr: errors.New("deadlock detected")}
	metricsSpy := helper.NewMetricsCollectorSpy()
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"}, pgbackend.WithMetrics(metricsSpy))
	var received loadgen.Response
	done := make(chan struct{})

	// act
	err := client.Submit(context.Background(), loadgen.CompletionFunc(func(response loadgen.Response) {
		received = response
		close(done)
	}), "single", 7)
	require.NoError(t, err)
	<-done
	require.NoError(t, client.Drain(context.Background()))

	// assert
	assert.Equal(t, loadgen.StatusFailure, received.Status)
	assert.Equal(t, "deadlock detected", received.StatusString)
	errs := metricsSpy.CounterRecords(loadgen.MetricBackendErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, "single", errs[0].Labels[loadgen.LabelProcedure])
	assert.Len(t, metricsSpy.DurationRecords(loadgen.MetricBackendExecution), 1)
}

func Test_Submit_When_SeveralEndpoints_ThenCallsAreSpreadRoundRobin(t *testing.T) {
	// setup
	dbA, dbB := &fakeDB{}, &fakeDB{}
	client := givenClient(t, map[string]*fakeDB{"a": dbA, "b": dbB}, []string{"a", "b"}, pgbackend.WithWorkers(1))

	// act
	for i := 0; i < 10; i++ {
		require.NoError(t, client.Submit(context.Background(), &responseCollector{}, "single", i))
	}
	require.NoError(t, client.Drain(context.Background()))

	// assert
	assert.Equal(t, 5, dbA.execCount())
	assert.Equal(t, 5, dbB.execCount())
	assert.Equal(t, []string{"a", "b"}, client.Endpoints())
}

func Test_Submit_When_HandlerPanics_ThenWorkerSurvivesAndLogsIt(t *testing.T) {
	// setup
	logger, logSpy := helper.NewSpyLogger()
	client := givenClient(t, map[string]*fakeDB{"a": {}}, []string{"a"}, pgbackend.WithWorkers(1), pgbackend.WithLogger(logger))
	collector := &responseCollector{}

	// act
	require.NoError(t, client.Submit(context.Background(), loadgen.CompletionFunc(func(loadgen.Response) {
		panic("handler bug")
	}), "single", 1))
	require.NoError(t, client.Submit(context.Background(), collector, "single", 2))
	require.NoError(t, client.Drain(context.Background()))

	// assert
	assert.Equal(t, int64(1), collector.successes.Load())
	assert.True(t, logSpy.HasRecord(slog.LevelError, "recovered from panic in completion handler"))
}

func Test_Submit_When_QueueIsFullAndContextEnds_ThenSubmitReturnsWithoutEnqueueing(t *testing.T) {
	// setup
	block := make(chan struct{})
	client := givenClient(t, map[string]*fakeDB{"a": {}}, []string{"a"}, pgbackend.WithWorkers(1), pgbackend.WithQueueSize(1))
	blocking := loadgen.CompletionFunc(func(loadgen.Response) { <-block })
	require.NoError(t, client.Submit(context.Background(), blocking, "single", 1))
	require.Eventually(t, func() bool { return client.InFlight() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, client.Submit(context.Background(), &responseCollector{}, "single", 2))

	// act
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.Submit(ctx, &responseCollector{}, "single", 3)

	// assert
	assert.ErrorIs(t, err, loadgen.ErrSubmissionFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(block)
	require.NoError(t, client.Drain(context.Background()))
	assert.Equal(t, int64(0), client.InFlight())
}

func Test_Drain_When_ContextEndsFirst_ThenItFailsWithDrainFailed(t *testing.T) {
	// setup
	block := make(chan struct{})
	client := givenClient(t, map[string]*fakeDB{"a": {}}, []string{"a"})
	require.NoError(t, client.Submit(context.Background(), loadgen.CompletionFunc(func(loadgen.Response) { <-block }), "single", 1))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// act
	err := client.Drain(ctx)

	// assert
	assert.ErrorIs(t, err, loadgen.ErrDrainFailed)
	close(block)
	assert.NoError(t, client.Drain(context.Background()))
}

func Test_QuerySync_When_QuerySucceeds_ThenColumnsAndRowsAreReturned(t *testing.T) {
	// setup
	db := &fakeDB{queryColumns: []string{"how_many"}, queryRows: [][]any{{int64(42)}}}
	tracingSpy := helper.NewTracingCollectorSpy()
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"}, pgbackend.WithTracing(tracingSpy))

	// act
	result, err := client.QuerySync(context.Background(), "SELECT count(*) how_many FROM t")

	// assert
	require.NoError(t, err)
	value, isNull, err := result.Int64(0, "how_many")
	require.NoError(t, err)
	assert.False(t, isNull)
	assert.Equal(t, int64(42), value)
	span, found := tracingSpy.FindSpan("pgbackend.query")
	require.True(t, found)
	assert.Equal(t, loadgen.StatusLabelSuccess, span.Status)
}

func Test_QuerySync_When_QueryFails_ThenItReturnsQueryFailed(t *testing.T) {
	// setup
	logger, logSpy := helper.NewSpyLogger()
	db := &fakeDB{queryErr: errors.New("syntax error")}
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"}, pgbackend.WithLogger(logger))

	// act
	_, err := client.QuerySync(context.Background(), "SELEC 1")

	// assert
	assert.ErrorIs(t, err, loadgen.ErrQueryFailed)
	assert.True(t, logSpy.HasRecord(slog.LevelError, "ad-hoc query failed"))
}

func Test_Exec_When_SeveralEndpoints_ThenStatementsRunOnEachInOneTransaction(t *testing.T) {
	// setup
	dbA, dbB := &fakeDB{}, &fakeDB{}
	client := givenClient(t, map[string]*fakeDB{"a": dbA, "b": dbB}, []string{"a", "b"})

	// act
	err := client.Exec(context.Background(), "CREATE TABLE x()", "CREATE TABLE y()")

	// assert
	require.NoError(t, err)
	assert.Len(t, dbA.txBatches(), 1)
	assert.Len(t, dbB.txBatches(), 1)
}

func Test_Close_When_Called_ThenEndpointsAreClosedAndSubmitIsRejected(t *testing.T) {
	// setup
	db := &fakeDB{}
	client := givenClient(t, map[string]*fakeDB{"a": db}, []string{"a"})

	// act
	require.NoError(t, client.Close())
	err := client.Submit(context.Background(), &responseCollector{}, "single", 1)

	// assert
	assert.ErrorIs(t, err, loadgen.ErrClientClosed)
	assert.True(t, db.closed)
	assert.NoError(t, client.Close(), "closing twice is a no-op")
}

func Test_Options_When_Invalid_ThenClientConstructionFails(t *testing.T) {
	// act
	_, errWorkers := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithWorkers(0))
	_, errQueue := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithQueueSize(-1))
	_, errDriver := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithDriver("oracle"))
	_, errName := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithProcedure("", singleStatement))
	_, errNilProc := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithProcedure("x", nil))
	_, errDSN := pgbackend.NewClientForAdapters(nil, nil, pgbackend.WithBaseDSN("mysql://x"))

	// assert
	assert.ErrorIs(t, errWorkers, pgbackend.ErrInvalidPoolSize)
	assert.ErrorIs(t, errQueue, pgbackend.ErrInvalidPoolSize)
	assert.ErrorIs(t, errDriver, pgbackend.ErrUnknownDriver)
	assert.ErrorIs(t, errName, pgbackend.ErrEmptyProcedureName)
	assert.ErrorIs(t, errNilProc, loadgen.ErrNilDependency)
	assert.ErrorIs(t, errDSN, pgbackend.ErrInvalidDSN)
}

func Test_NewClientFrom_When_HandleIsNil_ThenItFails(t *testing.T) {
	// act
	_, errPGX := pgbackend.NewClientFromPGXPool(nil)
	_, errSQL := pgbackend.NewClientFromSQLDB(nil)
	_, errSQLX := pgbackend.NewClientFromSQLX(nil)

	// assert
	assert.ErrorIs(t, errPGX, loadgen.ErrNilDependency)
	assert.ErrorIs(t, errSQL, loadgen.ErrNilDependency)
	assert.ErrorIs(t, errSQLX, loadgen.ErrNilDependency)
}
