package dispatch

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// logInfo logs to the plain logger and, when configured, to the contextual logger.
func (l *Loop) logInfo(ctx context.Context, msg string, args ...any) {
	if l.logger != nil {
		l.logger.Info(msg, args...)
	}

	if l.contextualLogger != nil {
		l.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

// logError logs to the plain logger and, when configured, to the contextual logger.
func (l *Loop) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if l.logger != nil {
		l.logger.Error(msg, allArgs...)
	}

	if l.contextualLogger != nil {
		l.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

// recordSubmitted counts one submission if the metrics collector is configured.
func (l *Loop) recordSubmitted(ctx context.Context, class loadgen.OperationClass) {
	if l.metricsCollector == nil {
		return
	}

	labels := map[string]string{loadgen.LabelClass: class}

	if contextualCollector, ok := l.metricsCollector.(loadgen.ContextualMetricsCollector); ok {
		contextualCollector.IncrementCounterContext(ctx, loadgen.MetricSubmitted, labels)
		return
	}

	l.metricsCollector.IncrementCounter(loadgen.MetricSubmitted, labels)
}

// recordPhaseMetrics records the phase duration and achieved rate if the metrics collector is configured.
func (l *Loop) recordPhaseMetrics(ctx context.Context, result Result, status string) {
	if l.metricsCollector == nil {
		return
	}

	labels := map[string]string{
		loadgen.LabelPhase:  result.Phase,
		loadgen.LabelStatus: status,
	}

	if contextualCollector, ok := l.metricsCollector.(loadgen.ContextualMetricsCollector); ok {
		contextualCollector.RecordDurationContext(ctx, loadgen.MetricPhaseDuration, result.TotalDuration, labels)
		contextualCollector.RecordValueContext(ctx, loadgen.MetricAchievedRate, result.AchievedPerMs, labels)
		return
	}

	l.metricsCollector.RecordDuration(loadgen.MetricPhaseDuration, result.TotalDuration, labels)
	l.metricsCollector.RecordValue(loadgen.MetricAchievedRate, result.AchievedPerMs, labels)
}

// startPhaseSpan starts a tracing span if the tracing collector is configured.
func (l *Loop) startPhaseSpan(ctx context.Context, phase Phase) (context.Context, loadgen.SpanContext) {
	if l.tracingCollector == nil {
		return ctx, nil
	}

	return l.tracingCollector.StartSpan(ctx, spanNamePhase, map[string]string{
		loadgen.LabelPhase: phase.Name,
		logAttrUntil:       phase.Until.String(),
	})
}

// finishPhaseSpan finishes a tracing span if the tracing collector is configured.
func (l *Loop) finishPhaseSpan(span loadgen.SpanContext, result Result, status string) {
	if l.tracingCollector == nil || span == nil {
		return
	}

	l.tracingCollector.FinishSpan(span, status, map[string]string{
		logAttrIterations:    strconv.FormatInt(result.Iterations, 10),
		logAttrSubmitted:     strconv.FormatInt(result.Submitted, 10),
		logAttrDurationMS:    strconv.FormatFloat(toMilliseconds(result.TotalDuration), 'f', 3, 64),
		logAttrAchievedPerMs: strconv.FormatFloat(result.AchievedPerMs, 'f', 3, 64),
	})
}

func (l *Loop) observeFinished(ctx context.Context, span loadgen.SpanContext, result Result, err error) {
	status := loadgen.StatusLabelSuccess
	if err != nil {
		status = loadgen.StatusLabelError
		l.logError(ctx, logMsgPhaseAborted, err, logAttrPhase, result.Phase, logAttrSubmitted, result.Submitted)
	} else {
		l.logInfo(ctx, logMsgPhaseFinished,
			logAttrPhase, result.Phase,
			logAttrIterations, result.Iterations,
			logAttrSubmitted, result.Submitted,
			logAttrDurationMS, toMilliseconds(result.TotalDuration),
			logAttrAchievedPerMs, result.AchievedPerMs,
		)
	}

	l.recordPhaseMetrics(ctx, result, status)
	l.finishPhaseSpan(span, result, status)
}
