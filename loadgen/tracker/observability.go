package tracker

import (
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// logWarn logs a warning if the logger is configured.
func (t *Tracker) logWarn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}

// logError logs an error if the logger is configured.
func (t *Tracker) logError(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Error(msg, args...)
	}
}

// recordDurationMetrics records the operation latency if the metrics collector is configured.
func (t *Tracker) recordDurationMetrics(elapsed time.Duration) {
	if t.metricsCollector != nil {
		labels := map[string]string{
			loadgen.LabelClass:  t.class,
			loadgen.LabelStatus: loadgen.StatusLabelSuccess,
		}
		t.metricsCollector.RecordDuration(loadgen.MetricOperationDuration, elapsed, labels)
	}
}

// recordFailureMetrics counts a failed operation if the metrics collector is configured.
func (t *Tracker) recordFailureMetrics() {
	if t.metricsCollector != nil {
		labels := map[string]string{
			loadgen.LabelClass:  t.class,
			loadgen.LabelStatus: loadgen.StatusLabelError,
		}
		t.metricsCollector.IncrementCounter(loadgen.MetricOperationFailures, labels)
	}
}
