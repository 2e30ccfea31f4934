// Package reporter runs ad-hoc reports at a fixed cadence during a dispatch phase and
// renders the final run summary.
package reporter

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

const (
	logMsgReportFailed = "periodic report failed, skipping"
	logAttrError       = "error"
	logAttrFired       = "fired"
)

// ErrInvalidInterval is returned when a periodic report interval is not positive.
var ErrInvalidInterval = errors.New("report interval must be positive")

// ReportFunc performs one report. A returned error is logged and the report is skipped.
type ReportFunc func(ctx context.Context) error

// Periodic fires a ReportFunc whenever the polled clock is past the next deadline.
// The next deadline is the clock after the report finished plus the interval, so slow
// reports stretch the cadence instead of piling up.
//
// Periodic is polled by one dispatch loop and is not safe for concurrent use.
type Periodic struct {
	interval         time.Duration
	report           ReportFunc
	next             time.Time
	started          bool
	fired            int
	now              func() time.Time
	logger           loadgen.Logger
	metricsCollector loadgen.MetricsCollector
}

// PeriodicOption defines a functional option for configuring a Periodic.
type PeriodicOption func(*Periodic)

// WithLogger sets the logger receiving report failures.
func WithLogger(logger loadgen.Logger) PeriodicOption {
	return func(p *Periodic) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector receiving report durations.
func WithMetrics(collector loadgen.MetricsCollector) PeriodicOption {
	return func(p *Periodic) {
		p.metricsCollector = collector
	}
}

// WithClock replaces the clock read after each report, mainly for tests.
func WithClock(now func() time.Time) PeriodicOption {
	return func(p *Periodic) {
		p.now = now
	}
}

// NewPeriodic creates a Periodic firing report every interval.
func NewPeriodic(interval time.Duration, report ReportFunc, options ...PeriodicOption) (*Periodic, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}

	if report == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("report func"))
	}

	p := &Periodic{
		interval: interval,
		report:   report,
		now:      time.Now,
	}

	for _, option := range options {
		option(p)
	}

	return p, nil
}

// Start sets the first deadline to now plus the interval.
func (p *Periodic) Start(now time.Time) {
	p.next = now.Add(p.interval)
	p.started = true
}

// Poll runs the report if now is strictly after the deadline and reports whether it fired.
// An unstarted Periodic starts at now and does not fire.
func (p *Periodic) Poll(ctx context.Context, now time.Time) bool {
	if !p.started {
		p.Start(now)
		return false
	}

	if !now.After(p.next) {
		return false
	}

	reportStart := time.Now()
	if err := p.report(ctx); err != nil {
		p.logWarn(logMsgReportFailed, logAttrError, err.Error(), logAttrFired, p.fired)
	}
	p.recordDuration(time.Since(reportStart))

	p.fired++

	after := p.now()
	if after.Before(now) {
		after = now
	}
	p.next = after.Add(p.interval)

	return true
}

// Fired returns how many times the report ran.
func (p *Periodic) Fired() int {
	return p.fired
}

// Interval returns the configured interval.
func (p *Periodic) Interval() time.Duration {
	return p.interval
}

func (p *Periodic) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}

func (p *Periodic) recordDuration(elapsed time.Duration) {
	if p.metricsCollector != nil {
		p.metricsCollector.RecordDuration(loadgen.MetricReportDuration, elapsed, nil)
	}
}
