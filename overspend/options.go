package overspend

import (
	"errors"
	"math/rand/v2"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
)

// ErrEmptyRunID is returned when an explicit run id is empty.
var ErrEmptyRunID = errors.New("run id must not be empty")

// Option defines a functional option for configuring a Simulation.
type Option func(*Simulation) error

// WithStore sets the histogram store to record into; a fresh store is used otherwise.
func WithStore(store *histogram.Store) Option {
	return func(s *Simulation) error {
		if store == nil {
			return errors.Join(loadgen.ErrNilDependency, errors.New("histogram store"))
		}
		s.store = store

		return nil
	}
}

// WithSeed makes the random workload reproducible.
func WithSeed(seed1, seed2 uint64) Option {
	return func(s *Simulation) error {
		s.rand = rand.New(rand.NewPCG(seed1, seed2))
		return nil
	}
}

// WithRunID sets the run id instead of generating a UUIDv7.
func WithRunID(runID string) Option {
	return func(s *Simulation) error {
		if runID == "" {
			return ErrEmptyRunID
		}
		s.runID = runID

		return nil
	}
}

// WithMaxBucket sets the exclusive upper latency bound (microseconds) of every class.
func WithMaxBucket(maxBucket int64) Option {
	return func(s *Simulation) error {
		s.maxBucket = maxBucket
		return nil
	}
}

// WithLogger sets the logger for phase lifecycle, overspend reports and the summary.
func WithLogger(logger loadgen.Logger) Option {
	return func(s *Simulation) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger for trace-correlated messages.
func WithContextualLogger(logger loadgen.ContextualLogger) Option {
	return func(s *Simulation) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector handed to every component.
func WithMetrics(collector loadgen.MetricsCollector) Option {
	return func(s *Simulation) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector handed to the dispatch loop.
func WithTracing(collector loadgen.TracingCollector) Option {
	return func(s *Simulation) error {
		s.tracingCollector = collector
		return nil
	}
}
