// Package oteladapters provides OpenTelemetry adapters for the loadgen observability interfaces.
//
// MetricsCollector maps durations to histograms, counters to Int64 counters and values to
// gauges. TracingCollector wraps a trace.Tracer. SlogBridgeLogger implements
// loadgen.ContextualLogger on an OpenTelemetry LoggerProvider.
package oteladapters
