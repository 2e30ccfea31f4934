package overspend

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/dispatch"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/histogram"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/pacer"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/reporter"
)

// Phase names.
const (
	PhaseDelete    = "delete_old_campaigns"
	PhaseCreate    = "create_campaigns"
	PhaseBenchmark = "overspend_benchmark"

	maxClicksPerReport = 1000

	logMsgCampaignsFound  = "found campaigns of an earlier run"
	logMsgOverspendReport = "campaigns that have spent too much"
	logMsgOverspendFailed = "overspend report failed"
	logMsgSummary         = "run summary"
	logAttrMaxID          = "max_id"
	logAttrHowMany        = "how_many"
	logAttrTable          = "table"
	logAttrSummary        = "summary"
	logAttrRunID          = "run_id"
	logAttrError          = "error"
)

// ErrSizingQueryFailed is returned when the size of the earlier run could not be determined.
var ErrSizingQueryFailed = errors.New("sizing the delete phase failed")

// Result is the outcome of a full simulation run.
type Result struct {
	RunID   string
	Phases  []dispatch.Result
	Summary reporter.Summary
}

// Simulation runs the delete, create and benchmark phases against one Backend.
type Simulation struct {
	backend          loadgen.Backend
	pacer            pacer.Pacer
	store            *histogram.Store
	config           Config
	rand             *rand.Rand
	runID            string
	maxBucket        int64
	logger           loadgen.Logger
	contextualLogger loadgen.ContextualLogger
	metricsCollector loadgen.MetricsCollector
	tracingCollector loadgen.TracingCollector
}

// NewSimulation creates a Simulation. Backend and pacer are required.
func NewSimulation(backend loadgen.Backend, pace pacer.Pacer, config Config, options ...Option) (*Simulation, error) {
	if backend == nil || pace == nil {
		return nil, errors.Join(loadgen.ErrNilDependency, errors.New("backend and pacer must be set"))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Simulation{
		backend:   backend,
		pacer:     pace,
		config:    config,
		maxBucket: histogram.DefaultMaxLatencyMicros,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	if s.store == nil {
		s.store = histogram.NewStore()
	}

	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	if s.runID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, err
		}
		s.runID = id.String()
	}

	return s, nil
}

// Store returns the histogram store the simulation records into.
func (s *Simulation) Store() *histogram.Store {
	return s.store
}

// RunID returns the identifier of this run.
func (s *Simulation) RunID() string {
	return s.runID
}

// Run executes all phases, the final overspend report and builds the summary.
// A failed sizing query aborts before anything is submitted and wraps ErrSizingQueryFailed.
func (s *Simulation) Run(ctx context.Context) (Result, error) {
	result := Result{RunID: s.runID}

	loop, err := s.newLoop()
	if err != nil {
		return result, err
	}

	deleteCount, err := s.sizeDeletePhase(ctx)
	if err != nil {
		return result, err
	}

	deleted, err := loop.Run(ctx, s.deletePhase(deleteCount))
	result.Phases = append(result.Phases, deleted)
	if err != nil {
		return result, err
	}

	created, err := loop.Run(ctx, s.createPhase())
	result.Phases = append(result.Phases, created)
	if err != nil {
		return result, err
	}

	benchmarkPhase, err := s.benchmarkPhase()
	if err != nil {
		return result, err
	}

	benchmark, err := loop.Run(ctx, benchmarkPhase)
	result.Phases = append(result.Phases, benchmark)
	if err != nil {
		return result, err
	}

	if err := s.reportOverspends(ctx); err != nil {
		s.logWarn(logMsgOverspendFailed, logAttrError, err.Error())
	}

	result.Summary = s.summary(benchmark.AchievedPerMs)
	s.logInfo(ctx, logMsgSummary, logAttrRunID, s.runID, logAttrSummary, result.Summary.String())

	return result, nil
}

func (s *Simulation) newLoop() (*dispatch.Loop, error) {
	return dispatch.NewLoop(
		s.backend,
		s.store,
		s.pacer,
		dispatch.WithLogger(s.logger),
		dispatch.WithContextualLogger(s.contextualLogger),
		dispatch.WithMetrics(s.metricsCollector),
		dispatch.WithTracing(s.tracingCollector),
		dispatch.WithMaxBucket(s.maxBucket),
	)
}

// sizeDeletePhase returns how many ids the delete phase walks: max id plus one, zero for an empty table.
func (s *Simulation) sizeDeletePhase(ctx context.Context) (int64, error) {
	queryResult, err := s.backend.QuerySync(ctx, MaxCampaignIDQuery())
	if err != nil {
		return 0, errors.Join(ErrSizingQueryFailed, err)
	}

	maxID, isNull, err := queryResult.Int64(0, aliasMaxID)
	if err != nil {
		return 0, errors.Join(ErrSizingQueryFailed, err)
	}

	if isNull {
		s.logInfo(ctx, logMsgCampaignsFound, logAttrMaxID, "NULL")
		return 0, nil
	}

	s.logInfo(ctx, logMsgCampaignsFound, logAttrMaxID, maxID)

	if maxID < 0 {
		return 0, nil
	}

	return maxID + 1, nil
}

func (s *Simulation) deletePhase(count int64) dispatch.Phase {
	return dispatch.Phase{
		Name:          PhaseDelete,
		Until:         dispatch.ForCount(count),
		ProgressEvery: s.config.ProgressEvery,
		Item: func(i int64) dispatch.Call {
			return dispatch.Call{Class: ClassDeleteCampaign, Procedure: ProcDeleteCampaign, Args: []any{i}}
		},
	}
}

func (s *Simulation) createPhase() dispatch.Phase {
	return dispatch.Phase{
		Name:          PhaseCreate,
		Until:         dispatch.ForCount(s.config.CampaignCount),
		ProgressEvery: s.config.ProgressEvery,
		Item: func(i int64) dispatch.Call {
			budget := s.rand.Int64N(s.config.Budget)
			return dispatch.Call{Class: ClassCreateCampaign, Procedure: ProcInsertCampaign, Args: []any{i, budget}}
		},
		SubItems: s.config.AdCount,
		SubItem: func(i int64, j int) dispatch.Call {
			return dispatch.Call{Class: ClassCreateCampaignAds, Procedure: ProcInsertCampaignAds, Args: []any{i, int64(j)}}
		},
	}
}

func (s *Simulation) benchmarkPhase() (dispatch.Phase, error) {
	phase := dispatch.Phase{
		Name:          PhaseBenchmark,
		Until:         dispatch.ForDuration(s.config.Duration),
		ProgressEvery: s.config.ProgressEvery,
		Item: func(int64) dispatch.Call {
			campaignID := s.rand.Int64N(s.config.CampaignCount)
			adID := s.rand.Int64N(int64(s.config.AdCount))
			clicks := s.rand.Int64N(maxClicksPerReport)
			return dispatch.Call{
				Class:     ClassRunCampaign,
				Procedure: ProcReportBids,
				Args:      []any{campaignID, adID, clicks, SpendForClicks(clicks)},
			}
		},
	}

	if s.config.QueryInterval > 0 {
		periodic, err := reporter.NewPeriodic(
			s.config.QueryInterval,
			s.reportOverspends,
			reporter.WithLogger(s.logger),
			reporter.WithMetrics(s.metricsCollector),
		)
		if err != nil {
			return dispatch.Phase{}, err
		}
		phase.Periodic = periodic
	}

	return phase, nil
}

// reportOverspends runs the overspend count query and logs the result table.
func (s *Simulation) reportOverspends(ctx context.Context) error {
	queryResult, err := s.backend.QuerySync(ctx, OverspendCountQuery())
	if err != nil {
		return err
	}

	howMany, _, err := queryResult.Int64(0, aliasHowMany)
	if err != nil {
		return fmt.Errorf("reading %s: %w", aliasHowMany, err)
	}

	s.logInfo(ctx, logMsgOverspendReport, logAttrHowMany, howMany, logAttrTable, queryResult.FormattedString())

	return nil
}

func (s *Simulation) summary(achievedPerMs float64) reporter.Summary {
	snapshots := make([]histogram.Snapshot, 0, len(Classes))
	for _, class := range Classes {
		snapshots = append(snapshots, s.store.Get(class))
	}

	return reporter.Summary{
		RunID:         s.runID,
		TargetPerMs:   s.config.TargetPerMs,
		AchievedPerMs: achievedPerMs,
		Snapshots:     snapshots,
	}
}

func (s *Simulation) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}

	if s.contextualLogger != nil {
		s.contextualLogger.InfoContext(ctx, msg, args...)
	}
}

func (s *Simulation) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
