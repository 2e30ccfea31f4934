package dispatch

import (
	"errors"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// ErrInvalidMaxBucket is returned when the configured latency range is too small.
var ErrInvalidMaxBucket = errors.New("max latency bucket must be at least 3 microseconds")

// Option defines a functional option for configuring a Loop.
type Option func(*Loop) error

// WithLogger sets the logger for phase lifecycle messages and operation failures.
func WithLogger(logger loadgen.Logger) Option {
	return func(l *Loop) error {
		l.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for trace-correlated phase messages.
func WithContextualLogger(logger loadgen.ContextualLogger) Option {
	return func(l *Loop) error {
		l.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for submission counts, phase durations and latencies.
func WithMetrics(collector loadgen.MetricsCollector) Option {
	return func(l *Loop) error {
		l.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector; each phase runs in its own span.
func WithTracing(collector loadgen.TracingCollector) Option {
	return func(l *Loop) error {
		l.tracingCollector = collector
		return nil
	}
}

// WithMaxBucket sets the exclusive upper latency bound (microseconds) of every tracked operation.
func WithMaxBucket(maxBucket int64) Option {
	return func(l *Loop) error {
		if maxBucket < 3 {
			return ErrInvalidMaxBucket
		}
		l.maxBucket = maxBucket

		return nil
	}
}

// WithNowFunc replaces the clock used for terminations and phase timing, mainly for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Loop) error {
		l.now = now
		return nil
	}
}
