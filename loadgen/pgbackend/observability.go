package pgbackend

import (
	"context"
	"math"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// logDebug logs at debug level if the logger is configured.
func (c *Client) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

// logInfo logs operational information at info level if the logger is configured.
func (c *Client) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

// logWarn logs non-critical issues at warn level if the logger is configured.
func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

// logError logs error information at the error level if the logger is configured.
func (c *Client) logError(message string, err error, args ...any) {
	if c.logger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		c.logger.Error(message, allArgs...)
	}
}

// logDebugContext logs with context correlation, falling back to the plain logger.
func (c *Client) logDebugContext(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	c.logDebug(msg, args...)
}

// logErrorContext logs error information with context correlation, falling back to the plain logger.
func (c *Client) logErrorContext(ctx context.Context, message string, err error, args ...any) {
	if c.contextualLogger != nil {
		allArgs := []any{logAttrError, err.Error()}
		allArgs = append(allArgs, args...)
		c.contextualLogger.ErrorContext(ctx, message, allArgs...)
		return
	}

	c.logError(message, err, args...)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordExecution records one procedure execution if the metrics collector is configured.
func (c *Client) recordExecution(procedure string, duration time.Duration, status string) {
	if c.metricsCollector != nil {
		labels := map[string]string{
			loadgen.LabelProcedure: procedure,
			loadgen.LabelStatus:    status,
		}
		c.metricsCollector.RecordDuration(loadgen.MetricBackendExecution, duration, labels)
	}
}

// recordError counts a failed procedure execution if the metrics collector is configured.
func (c *Client) recordError(procedure string) {
	if c.metricsCollector != nil {
		labels := map[string]string{
			loadgen.LabelProcedure: procedure,
			loadgen.LabelStatus:    loadgen.StatusLabelError,
		}
		c.metricsCollector.IncrementCounter(loadgen.MetricBackendErrors, labels)
	}
}

// startTraceSpan starts a tracing span if the tracing collector is configured.
func (c *Client) startTraceSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, loadgen.SpanContext) {
	if c.tracingCollector != nil {
		return c.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

// finishTraceSpan finishes a tracing span if the tracing collector is configured.
func (c *Client) finishTraceSpan(spanCtx loadgen.SpanContext, status string, attrs map[string]string) {
	if c.tracingCollector != nil && spanCtx != nil {
		c.tracingCollector.FinishSpan(spanCtx, status, attrs)
	}
}
