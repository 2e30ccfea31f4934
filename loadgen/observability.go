package loadgen

import (
	"context"
	"time"
)

// Logger interface for operational messages, warnings, and error reporting.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ContextualLogger interface for context-aware logging with automatic trace correlation.
// This interface follows the same dependency-free pattern as MetricsCollector and TracingCollector,
// allowing users to integrate with any logging backend that supports context-based correlation.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

// MetricsCollector interface for collecting load generator performance and operational metrics.
type MetricsCollector interface {
	RecordDuration(metric string, duration time.Duration, labels map[string]string)
	IncrementCounter(metric string, labels map[string]string)
	RecordValue(metric string, value float64, labels map[string]string)
}

// ContextualMetricsCollector extends MetricsCollector with context-aware methods for trace correlation.
// Components use the context-aware methods when available and fall back to MetricsCollector otherwise.
type ContextualMetricsCollector interface {
	MetricsCollector
	RecordDurationContext(ctx context.Context, metric string, duration time.Duration, labels map[string]string)
	IncrementCounterContext(ctx context.Context, metric string, labels map[string]string)
	RecordValueContext(ctx context.Context, metric string, value float64, labels map[string]string)
}

// SpanContext represents an active tracing span that can be finished and updated with attributes.
type SpanContext interface {
	SetStatus(status string)
	AddAttribute(key, value string)
}

// TracingCollector interface for collecting distributed tracing information from load generator phases
// and backend operations.
type TracingCollector interface {
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, SpanContext)
	FinishSpan(spanCtx SpanContext, status string, attrs map[string]string)
}

// Metric names and label values shared by the components.
const (
	MetricOperationDuration = "loadgen_operation_duration_seconds"
	MetricOperationFailures = "loadgen_operation_failures_total"
	MetricOperationsClamped = "loadgen_operation_latency_clamped_total"
	MetricSubmitted         = "loadgen_operations_submitted_total"
	MetricPhaseDuration     = "loadgen_phase_duration_seconds"
	MetricAchievedRate      = "loadgen_phase_achieved_ops_per_ms"
	MetricBackendExecution  = "loadgen_backend_execution_duration_seconds"
	MetricBackendErrors     = "loadgen_backend_errors_total"
	MetricReportDuration    = "loadgen_report_duration_seconds"

	LabelClass     = "class"
	LabelPhase     = "phase"
	LabelStatus    = "status"
	LabelProcedure = "procedure"

	StatusLabelSuccess = "success"
	StatusLabelError   = "error"
)
