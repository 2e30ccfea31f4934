package dispatch_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/dispatch"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pacer"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/reporter"
	"github.com/AntonStoeckl/overspend-loadgen-go/testutil/fakebackend"
	"github.com/AntonStoeckl/overspend-loadgen-go/testutil/helper"
)

func givenPacer(t *testing.T, opsPerMs int64) pacer.Pacer {
	t.Helper()

	p, err := pacer.New(pacer.KindSpin, opsPerMs)
	require.NoError(t, err)

	return p
}

func itemOf(class string) dispatch.ItemFunc {
	return func(i int64) dispatch.Call {
		return dispatch.Call{Class: class, Procedure: "proc_" + class, Args: []any{i}}
	}
}

func Test_NewLoop_When_DependencyIsNil_ThenItFails(t *testing.T) {
	// act
	_, err := dispatch.NewLoop(nil, histogram.NewStore(), givenPacer(t, 1))

	// assert
	assert.ErrorIs(t, err, loadgen.ErrNilDependency)
}

func Test_NewLoop_When_MaxBucketIsTooSmall_ThenItFails(t *testing.T) {
	// act
	_, err := dispatch.NewLoop(fakebackend.New(), histogram.NewStore(), givenPacer(t, 1), dispatch.WithMaxBucket(2))

	// assert
	assert.ErrorIs(t, err, dispatch.ErrInvalidMaxBucket)
}

func Test_Run_When_PhaseSubmitsNothing_ThenItFailsWithInvalidPhase(t *testing.T) {
	// setup
	loop, err := dispatch.NewLoop(fakebackend.New(), histogram.NewStore(), givenPacer(t, 1))
	require.NoError(t, err)

	// act
	_, errNoItem := loop.Run(context.Background(), dispatch.Phase{Name: "empty", Until: dispatch.ForCount(1)})
	_, errNoSubItemFunc := loop.Run(context.Background(), dispatch.Phase{
		Name: "broken", Until: dispatch.ForCount(1), Item: itemOf("X"), SubItems: 2,
	})

	// assert
	assert.ErrorIs(t, errNoItem, dispatch.ErrInvalidPhase)
	assert.ErrorIs(t, errNoSubItemFunc, dispatch.ErrInvalidPhase)
}

func Test_Run_When_CountPhaseCompletes_ThenHistogramCountsSumToSubmissions(t *testing.T) {
	// setup
	store := histogram.NewStore()
	backend := fakebackend.New(fakebackend.WithLatency(200 * time.Microsecond))
	loop, err := dispatch.NewLoop(backend, store, givenPacer(t, 100))
	require.NoError(t, err)

	// act
	result, err := loop.Run(context.Background(), dispatch.Phase{
		Name:  "create",
		Until: dispatch.ForCount(500),
		Item:  itemOf("CREATE"),
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(500), result.Iterations)
	assert.Equal(t, int64(500), result.Submitted)
	assert.Equal(t, 500, backend.Completed(), "every submission must be drained before Run returns")
	count, failures := store.Totals()
	assert.Equal(t, int64(500), count+failures)
	assert.Equal(t, "create", result.Phase)
	assert.Positive(t, result.AchievedPerMs)
	assert.GreaterOrEqual(t, result.TotalDuration, result.SubmitDuration)
}

func Test_Run_When_SomeOperationsFail_ThenTheyAreCountedAsFailuresWithoutLatency(t *testing.T) {
	// setup
	store := histogram.NewStore()
	backend := fakebackend.New(fakebackend.WithFailures(func(_ string, args []any) error {
		if args[0].(int64)%4 == 0 {
			return errors.New("rejected")
		}
		return nil
	}))
	loop, err := dispatch.NewLoop(backend, store, givenPacer(t, 50))
	require.NoError(t, err)

	// act
	_, err = loop.Run(context.Background(), dispatch.Phase{Name: "run", Until: dispatch.ForCount(100), Item: itemOf("RUN")})

	// assert
	require.NoError(t, err)
	snapshot := store.Get("RUN")
	assert.Equal(t, int64(25), snapshot.Failures)
	assert.Equal(t, int64(75), snapshot.Count)
}

func Test_Run_When_PhaseHasSubItems_ThenEachIterationSubmitsItemAndAllSubItems(t *testing.T) {
	// setup
	store := histogram.NewStore()
	backend := fakebackend.New()
	loop, err := dispatch.NewLoop(backend, store, givenPacer(t, 50))
	require.NoError(t, err)

	// act
	result, err := loop.Run(context.Background(), dispatch.Phase{
		Name:     "create",
		Until:    dispatch.ForCount(10),
		Item:     itemOf("PARENT"),
		SubItems: 3,
		SubItem: func(i int64, j int) dispatch.Call {
			return dispatch.Call{Class: "CHILD", Procedure: "child", Args: []any{i, j}}
		},
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, int64(40), result.Submitted)
	assert.Equal(t, int64(10), store.Get("PARENT").Count)
	assert.Equal(t, int64(30), store.Get("CHILD").Count)
	submissions := backend.Submissions()
	require.Len(t, submissions, 40)
	assert.Equal(t, "proc_PARENT", submissions[0].Procedure)
	assert.Equal(t, []any{int64(0), 2}, submissions[3].Args)
}

func Test_Run_When_SubmitFails_ThenPhaseAbortsAndOutstandingWorkIsDrained(t *testing.T) {
	// setup
	store := histogram.NewStore()
	backend := fakebackend.New(
		fakebackend.WithLatency(time.Millisecond),
		fakebackend.WithSubmitErrorAt(6, errors.New("connection lost")),
	)
	loop, err := dispatch.NewLoop(backend, store, givenPacer(t, 100))
	require.NoError(t, err)

	// act
	result, err := loop.Run(context.Background(), dispatch.Phase{Name: "run", Until: dispatch.ForCount(100), Item: itemOf("RUN")})

	// assert
	assert.ErrorIs(t, err, loadgen.ErrSubmissionFailed)
	assert.Equal(t, int64(5), result.Submitted)
	assert.Equal(t, 5, backend.Completed())
	assert.Equal(t, int64(5), store.Get("RUN").Count)
}

func Test_Run_When_DurationPhase_ThenItStopsAtTheDeadline(t *testing.T) {
	// setup
	store := histogram.NewStore()
	loop, err := dispatch.NewLoop(fakebackend.New(), store, givenPacer(t, 1))
	require.NoError(t, err)
	start := time.Now()

	// act
	result, err := loop.Run(context.Background(), dispatch.Phase{
		Name:  "bench",
		Until: dispatch.ForDuration(30 * time.Millisecond),
		Item:  itemOf("RUN"),
	})

	// assert
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.LessOrEqual(t, result.Submitted, int64(32), "at most one op per millisecond plus boundary slack")
	assert.Equal(t, result.Submitted, store.Get("RUN").Count)
}

func Test_Run_When_PeriodicReportIsConfigured_ThenItIsPolledDuringThePhase(t *testing.T) {
	// setup
	reports := 0
	periodic, err := reporter.NewPeriodic(10*time.Millisecond, func(context.Context) error {
		reports++
		return nil
	})
	require.NoError(t, err)
	loop, err := dispatch.NewLoop(fakebackend.New(), histogram.NewStore(), givenPacer(t, 1))
	require.NoError(t, err)

	// act
	result, err := loop.Run(context.Background(), dispatch.Phase{
		Name:     "bench",
		Until:    dispatch.ForDuration(55 * time.Millisecond),
		Item:     itemOf("RUN"),
		Periodic: periodic,
	})

	// assert
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reports, 2)
	assert.LessOrEqual(t, reports, 5)
	assert.Equal(t, reports, result.ReportsFired)
}

func Test_Run_When_ContextIsCancelled_ThenPhaseIsInterrupted(t *testing.T) {
	// setup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop, err := dispatch.NewLoop(fakebackend.New(), histogram.NewStore(), givenPacer(t, 1))
	require.NoError(t, err)

	// act
	result, err := loop.Run(ctx, dispatch.Phase{Name: "run", Until: dispatch.ForCount(10), Item: itemOf("RUN")})

	// assert
	assert.ErrorIs(t, err, dispatch.ErrPhaseInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), result.Submitted)
}

func Test_Run_When_ObservabilityIsConfigured_ThenPhaseIsLoggedTracedAndMeasured(t *testing.T) {
	// setup
	logger, logSpy := helper.NewSpyLogger()
	metricsSpy := helper.NewMetricsCollectorSpy()
	tracingSpy := helper.NewTracingCollectorSpy()
	loop, err := dispatch.NewLoop(
		fakebackend.New(),
		histogram.NewStore(),
		givenPacer(t, 100),
		dispatch.WithLogger(logger),
		dispatch.WithMetrics(metricsSpy),
		dispatch.WithTracing(tracingSpy),
	)
	require.NoError(t, err)

	// act
	_, err = loop.Run(context.Background(), dispatch.Phase{
		Name:          "create",
		Until:         dispatch.ForCount(20),
		Item:          itemOf("CREATE"),
		ProgressEvery: 10,
	})

	// assert
	require.NoError(t, err)
	assert.True(t, logSpy.HasRecord(slog.LevelInfo, "phase started"))
	assert.True(t, logSpy.HasRecord(slog.LevelInfo, "phase finished"))
	assert.Equal(t, 2, logSpy.CountRecords(slog.LevelInfo, "phase progress"))
	assert.Len(t, metricsSpy.CounterRecords(loadgen.MetricSubmitted), 20)
	assert.Len(t, metricsSpy.DurationRecords(loadgen.MetricOperationDuration), 20)
	phaseDurations := metricsSpy.DurationRecords(loadgen.MetricPhaseDuration)
	require.Len(t, phaseDurations, 1)
	assert.Equal(t, "create", phaseDurations[0].Labels[loadgen.LabelPhase])
	assert.Len(t, metricsSpy.ValueRecords(loadgen.MetricAchievedRate), 1)
	span, found := tracingSpy.FindSpan("loadgen.phase")
	require.True(t, found)
	assert.True(t, span.Finished)
	assert.Equal(t, loadgen.StatusLabelSuccess, span.Status)
	assert.Equal(t, "20", span.EndAttributes["submitted"])
}

func Test_Run_When_SubmitFailsWithLogger_ThenAbortIsLoggedAsError(t *testing.T) {
	// setup
	logger, logSpy := helper.NewSpyLogger()
	backend := fakebackend.New(fakebackend.WithSubmitErrorAt(1, errors.New("boom")))
	loop, err := dispatch.NewLoop(backend, histogram.NewStore(), givenPacer(t, 10), dispatch.WithLogger(logger))
	require.NoError(t, err)

	// act
	_, err = loop.Run(context.Background(), dispatch.Phase{Name: "run", Until: dispatch.ForCount(3), Item: itemOf("RUN")})

	// assert
	require.Error(t, err)
	assert.True(t, logSpy.HasRecord(slog.LevelError, "phase aborted"))
}
