package histogram_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
)

func Test_Report_When_TenLatenciesAreRecorded_ThenCountAndMedianMatch(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	for i := int64(1); i <= 10; i++ {
		store.Report("X", i*100, "12:00:00", histogram.DefaultMaxLatencyMicros)
	}

	// assert
	snapshot := store.Get("X")
	assert.Equal(t, int64(10), snapshot.Count)
	assert.GreaterOrEqual(t, snapshot.P50, int64(500))
	assert.LessOrEqual(t, snapshot.P50, int64(600))
	assert.Equal(t, int64(100), snapshot.Min)
	assert.Equal(t, int64(1000), snapshot.Max)
	assert.InDelta(t, 550.0, snapshot.Mean, 1.0)
	assert.Equal(t, "12:00:00", snapshot.LastTag)
}

func Test_Report_When_LatencyAtOrAboveRange_ThenItIsClampedAndCounted(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	store.Report("X", 1000, "", 1000)
	store.Report("X", 5_000_000, "", 1000)

	// assert
	snapshot := store.Get("X")
	assert.Equal(t, int64(2), snapshot.Count, "clamped values must still be counted")
	assert.Equal(t, int64(2), snapshot.Clamped)
	assert.Equal(t, int64(999), snapshot.Max)
	assert.Equal(t, int64(1000), snapshot.MaxBucket)
}

func Test_Report_When_LatencyIsNegative_ThenItLandsInTheBottomBucket(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	store.Report("X", -5, "", 1000)

	// assert
	snapshot := store.Get("X")
	assert.Equal(t, int64(1), snapshot.Count)
	assert.Equal(t, int64(0), snapshot.Min)
	assert.Equal(t, int64(0), snapshot.Clamped)
}

func Test_Report_When_BucketBoundIsUnusable_ThenTheDefaultRangeIsUsed(t *testing.T) {
	// setup
	store := histogram.NewStore(histogram.WithDefaultMaxBucket(5000))

	// act
	store.Report("X", 100, "", 0)

	// assert
	assert.Equal(t, int64(5000), store.Get("X").MaxBucket)
}

func Test_Report_When_EntryExists_ThenLaterBucketBoundsAreIgnored(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	store.Report("X", 100, "", 1000)
	store.Report("X", 1500, "", 1_000_000)

	// assert
	snapshot := store.Get("X")
	assert.Equal(t, int64(1000), snapshot.MaxBucket)
	assert.Equal(t, int64(1), snapshot.Clamped)
}

func Test_Get_When_LabelIsUnknown_ThenEmptySnapshotIsReturned(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	snapshot := store.Get("nope")

	// assert
	assert.Equal(t, histogram.Snapshot{Label: "nope"}, snapshot)
	assert.Empty(t, store.Labels(), "Get must not create entries")
}

func Test_Get_When_CalledTwiceWithoutReports_ThenSnapshotsAreIdentical(t *testing.T) {
	// setup
	store := histogram.NewStore()
	for i := int64(0); i < 100; i++ {
		store.Report("X", i*37, "tag", histogram.DefaultMaxLatencyMicros)
	}
	store.ReportFailure("X", "boom")

	// act
	first := store.Get("X")
	second := store.Get("X")

	// assert
	assert.Equal(t, first, second)
}

func Test_ReportFailure_When_OperationFails_ThenLatencyCountIsUnchanged(t *testing.T) {
	// setup
	store := histogram.NewStore()
	store.Report("X", 100, "", histogram.DefaultMaxLatencyMicros)

	// act
	store.ReportFailure("X", "constraint violation")

	// assert
	snapshot := store.Get("X")
	assert.Equal(t, int64(1), snapshot.Count)
	assert.Equal(t, int64(1), snapshot.Failures)
	assert.Equal(t, "constraint violation", snapshot.LastFailure)
}

func Test_Report_When_ManyGoroutinesReportConcurrently_ThenNoObservationIsLost(t *testing.T) {
	// setup
	store := histogram.NewStore()
	const goroutines = 16
	const perGoroutine = 2000
	labels := []string{"A", "B", "C"}

	var wg sync.WaitGroup
	stopReading := make(chan struct{})
	readerDone := make(chan struct{})

	// a concurrent reader must never block writers for long or see a broken entry
	go func() {
		defer close(readerDone)
		for {
			select {
			case <-stopReading:
				return
			default:
				for _, label := range labels {
					_ = store.Get(label)
				}
			}
		}
	}()

	// act
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				label := labels[(g+i)%len(labels)]
				if i%10 == 0 {
					store.ReportFailure(label, fmt.Sprintf("failure %d", i))
					continue
				}
				store.Report(label, int64(i), "", histogram.DefaultMaxLatencyMicros)
			}
		}(g)
	}
	wg.Wait()
	close(stopReading)
	<-readerDone

	// assert
	count, failures := store.Totals()
	assert.Equal(t, int64(goroutines*perGoroutine), count+failures)
	assert.Equal(t, int64(goroutines*perGoroutine/10), failures)
	assert.Equal(t, labels, store.Labels())
}

func Test_Snapshots_When_SeveralLabelsExist_ThenTheyAreSortedByLabel(t *testing.T) {
	// setup
	store := histogram.NewStore()
	store.Report("RUN", 1, "", 10)
	store.Report("CREATE", 1, "", 10)
	store.ReportFailure("DELETE", "x")

	// act
	snapshots := store.Snapshots()

	// assert
	require.Len(t, snapshots, 3)
	assert.Equal(t, "CREATE", snapshots[0].Label)
	assert.Equal(t, "DELETE", snapshots[1].Label)
	assert.Equal(t, "RUN", snapshots[2].Label)
}

func Test_ShortString_RendersGrepableKeyValuePairs(t *testing.T) {
	// setup
	snapshot := histogram.Snapshot{
		Label: "RUN_CAMPAIGN", Count: 3, Failures: 1, Clamped: 0,
		Min: 10, P50: 20, P95: 30, P99: 30, P999: 30, Max: 30, Mean: 20,
	}

	// act
	short := snapshot.ShortString()

	// assert
	assert.Equal(t,
		"RUN_CAMPAIGN:count:3:failures:1:clamped:0:min:10:p50:20:p95:30:p99:30:p999:30:max:30:mean:20.0",
		short)
}

func Test_FormattedString_When_EntryIsEmpty_ThenPercentilesAreOmitted(t *testing.T) {
	// act
	formatted := histogram.Snapshot{Label: "X", MaxBucket: 10}.FormattedString()

	// assert
	assert.Contains(t, formatted, "X (microseconds, range 0..10)")
	assert.Contains(t, formatted, "count    0")
	assert.NotContains(t, formatted, "p50")
}

func Test_Report_When_LatencyIsNearTheTopOfTheRange_ThenItResolvesToAWiderBucket(t *testing.T) {
	// setup
	store := histogram.NewStore()

	// act
	store.Report("low", 1500, "", histogram.DefaultMaxLatencyMicros)
	store.Report("high", 999_000, "", histogram.DefaultMaxLatencyMicros)

	// assert
	low := store.Get("low")
	assert.Equal(t, int64(1500), low.Min)
	assert.Equal(t, int64(1500), low.Max)

	high := store.Get("high")
	assert.InDelta(t, 999_000, high.Min, 512)
	assert.Equal(t, int64(511), high.Max-high.Min)
}
