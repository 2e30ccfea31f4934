package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pacer"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/tracker"
)

const (
	spanNamePhase = "loadgen.phase"

	logMsgPhaseStarted  = "phase started"
	logMsgPhaseFinished = "phase finished"
	logMsgPhaseProgress = "phase progress"
	logMsgPhaseAborted  = "phase aborted"

	logAttrPhase         = "phase"
	logAttrUntil         = "until"
	logAttrIterations    = "iterations"
	logAttrSubmitted     = "submitted"
	logAttrDurationMS    = "duration_ms"
	logAttrAchievedPerMs = "achieved_tpms"
	logAttrError         = "error"
)

// ErrPhaseInterrupted is returned when the context ended a phase before its termination condition held.
var ErrPhaseInterrupted = errors.New("phase interrupted")

// Loop drives one Backend at the pace of one Pacer, recording outcomes into one Recorder.
type Loop struct {
	backend          loadgen.Backend
	recorder         tracker.Recorder
	pacer            pacer.Pacer
	maxBucket        int64
	now              func() time.Time
	logger           loadgen.Logger
	contextualLogger loadgen.ContextualLogger
	metricsCollector loadgen.MetricsCollector
	tracingCollector loadgen.TracingCollector
}

// NewLoop creates a Loop. Backend, recorder and pacer are required.
func NewLoop(backend loadgen.Backend, recorder tracker.Recorder, pace pacer.Pacer, options ...Option) (*Loop, error) {
	if backend == nil || recorder == nil || pace == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("backend, recorder and pacer must be set"))
	}

	l := &Loop{
		backend:   backend,
		recorder:  recorder,
		pacer:     pace,
		maxBucket: histogram.DefaultMaxLatencyMicros,
		now:       time.Now,
	}

	for _, option := range options {
		if err := option(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Run executes the phase and drains the backend before returning.
// A submission error aborts the phase; outstanding operations are still drained.
func (l *Loop) Run(ctx context.Context, phase Phase) (Result, error) {
	if err := phase.validate(); err != nil {
		return Result{Phase: phase.Name}, err
	}

	ctx, span := l.startPhaseSpan(ctx, phase)

	result := Result{Phase: phase.Name}
	progressEvery := phase.progressEvery()
	start := l.now()
	deadline := start.Add(phase.Until.duration)

	if phase.Periodic != nil {
		phase.Periodic.Start(start)
	}

	l.logInfo(ctx, logMsgPhaseStarted, logAttrPhase, phase.Name, logAttrUntil, phase.Until.String())

	submitErr := l.iterate(ctx, phase, &result, progressEvery, deadline)
	result.SubmitDuration = l.now().Sub(start)

	drainErr := l.backend.Drain(context.WithoutCancel(ctx))

	result.TotalDuration = l.now().Sub(start)
	result.AchievedPerMs = achievedPerMs(result.Submitted, result.TotalDuration)
	if phase.Periodic != nil {
		result.ReportsFired = phase.Periodic.Fired()
	}

	err := l.combineErrors(submitErr, drainErr)
	l.observeFinished(ctx, span, result, err)

	return result, err
}

func (l *Loop) iterate(ctx context.Context, phase Phase, result *Result, progressEvery int64, deadline time.Time) error {
	for i := int64(0); !phase.Until.done(i, l.now(), deadline); i++ {
		if phase.Item != nil {
			if err := l.submit(ctx, phase.Name, phase.Item(i)); err != nil {
				return err
			}
			result.Submitted++
		}

		for j := 0; j < phase.SubItems; j++ {
			if err := l.submit(ctx, phase.Name, phase.SubItem(i, j)); err != nil {
				return err
			}
			result.Submitted++
		}

		result.Iterations++

		if phase.Periodic != nil {
			phase.Periodic.Poll(ctx, l.now())
		}

		if result.Iterations%progressEvery == 0 {
			l.logInfo(ctx, logMsgPhaseProgress,
				logAttrPhase, phase.Name, logAttrIterations, result.Iterations, logAttrSubmitted, result.Submitted)
		}
	}

	return nil
}

func (l *Loop) submit(ctx context.Context, phaseName string, call Call) error {
	if err := l.pacer.Wait(ctx); err != nil {
		return errors.Join(ErrPhaseInterrupted, err)
	}

	trk := tracker.New(
		l.recorder,
		call.Class,
		tracker.WithLogger(l.logger),
		tracker.WithMetrics(l.metricsCollector),
		tracker.WithMaxBucket(l.maxBucket),
	)

	if err := l.backend.Submit(ctx, trk, call.Procedure, call.Args...); err != nil {
		return errors.Join(loadgen.ErrSubmissionFailed, fmt.Errorf("%s in phase %s", call.Procedure, phaseName), err)
	}

	l.recordSubmitted(ctx, call.Class)

	return nil
}

func (l *Loop) combineErrors(submitErr, drainErr error) error {
	if drainErr != nil {
		drainErr = errors.Join(loadgen.ErrDrainFailed, drainErr)
	}

	return errors.Join(submitErr, drainErr)
}
