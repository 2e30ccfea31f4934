// Package helper provides test spies for the load generator's observability interfaces.
//
// LogHandlerSpy is a slog.Handler that captures records so tests can assert on
// the log lines a component emitted. MetricsCollectorSpy captures duration,
// counter and value calls of the MetricsCollector interface.
package helper
