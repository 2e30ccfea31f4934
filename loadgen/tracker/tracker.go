// Package tracker correlates the submission of one asynchronous operation with its completion.
//
// A Tracker is created at the moment an operation is handed to the backend and captures the
// monotonic start time. The backend's completion machinery calls OnComplete exactly once,
// from any goroutine; the Tracker then records the elapsed latency (success) or a failure
// (no latency) into a Recorder under its operation class.
package tracker

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
)

const (
	tagLayout = "15:04:05"

	logMsgOperationFailed   = "operation failed"
	logMsgDuplicateComplete = "operation completion reported more than once, ignored"
	logMsgCompletionPanic   = "recovered from panic in completion handler"
	logAttrClass            = "class"
	logAttrStatus           = "status"
	logAttrError            = "error"
	logAttrLatencyMicros    = "latency_us"
)

// Recorder is the part of the histogram store a Tracker writes to.
type Recorder interface {
	Report(label string, latencyMicros int64, tag string, maxBucket int64)
	ReportFailure(label string, detail string)
}

// Tracker tracks one dispatched operation; it implements loadgen.CompletionHandler.
type Tracker struct {
	recorder         Recorder
	class            loadgen.OperationClass
	start            time.Time
	maxBucket        int64
	now              func() time.Time
	logger           loadgen.Logger
	metricsCollector loadgen.MetricsCollector
	completed        atomic.Bool
}

// Option defines a functional option for configuring a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger that receives failure and misuse messages.
func WithLogger(logger loadgen.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector that receives operation durations and failure counts.
func WithMetrics(collector loadgen.MetricsCollector) Option {
	return func(t *Tracker) {
		t.metricsCollector = collector
	}
}

// WithMaxBucket sets the exclusive upper latency bound (microseconds) passed to the recorder.
func WithMaxBucket(maxBucket int64) Option {
	return func(t *Tracker) {
		t.maxBucket = maxBucket
	}
}

// WithNowFunc replaces the clock, mainly for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// New creates a Tracker for one operation of the given class and captures its start time.
func New(recorder Recorder, class loadgen.OperationClass, options ...Option) *Tracker {
	t := &Tracker{
		recorder:  recorder,
		class:     class,
		maxBucket: histogram.DefaultMaxLatencyMicros,
		now:       time.Now,
	}

	for _, option := range options {
		option(t)
	}

	t.start = t.now()

	return t
}

// Class returns the operation class this Tracker records under.
func (t *Tracker) Class() loadgen.OperationClass {
	return t.class
}

// OnComplete records the terminal event of the tracked operation.
// It never panics: any processing error is recovered and logged.
func (t *Tracker) OnComplete(response loadgen.Response) {
	defer t.recoverPanic()

	if !t.completed.CompareAndSwap(false, true) {
		t.logWarn(logMsgDuplicateComplete, logAttrClass, t.class, logAttrStatus, response.StatusString)
		return
	}

	if response.Status != loadgen.StatusSuccess {
		t.recordFailure(response)
		return
	}

	end := t.now()
	elapsed := end.Sub(t.start)
	latencyMicros := elapsed.Microseconds()

	t.recorder.Report(t.class, latencyMicros, end.Format(tagLayout), t.maxBucket)
	t.recordDurationMetrics(elapsed)
}

func (t *Tracker) recordFailure(response loadgen.Response) {
	detail := response.StatusString
	if detail == "" && response.Err != nil {
		detail = response.Err.Error()
	}

	t.recorder.ReportFailure(t.class, detail)
	t.logError(logMsgOperationFailed, logAttrClass, t.class, logAttrStatus, detail)
	t.recordFailureMetrics()
}

func (t *Tracker) recoverPanic() {
	if r := recover(); r != nil {
		t.logError(logMsgCompletionPanic, logAttrClass, t.class, logAttrError, fmt.Sprint(r))
	}
}
