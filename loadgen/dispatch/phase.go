package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen/reporter"
)

// DefaultProgressEvery is how many iterations pass between two progress log lines.
const DefaultProgressEvery = int64(100_000)

// ErrInvalidPhase is returned when a Phase cannot be run.
var ErrInvalidPhase = errors.New("invalid phase")

// Call is one submission: the class it is tracked under plus the procedure and its arguments.
type Call struct {
	Class     loadgen.OperationClass
	Procedure string
	Args      []any
}

// ItemFunc builds the call for iteration i.
type ItemFunc func(i int64) Call

// SubItemFunc builds the call for sub-item j of iteration i.
type SubItemFunc func(i int64, j int) Call

// Termination decides when a phase stops iterating.
type Termination struct {
	count    int64
	duration time.Duration
	byCount  bool
}

// ForCount terminates after n iterations.
func ForCount(n int64) Termination {
	return Termination{count: n, byCount: true}
}

// ForDuration terminates at the first iteration that starts at or after phase start plus d.
func ForDuration(d time.Duration) Termination {
	return Termination{duration: d}
}

// String describes the termination for logs.
func (t Termination) String() string {
	if t.byCount {
		return fmt.Sprintf("count=%d", t.count)
	}

	return fmt.Sprintf("duration=%s", t.duration)
}

func (t Termination) done(iteration int64, now, deadline time.Time) bool {
	if t.byCount {
		return iteration >= t.count
	}

	return !now.Before(deadline)
}

// Phase is one parameterized run of the dispatch loop.
type Phase struct {
	Name  string
	Until Termination

	// Item is submitted once per iteration when set.
	Item ItemFunc

	// SubItems calls of SubItem are submitted after Item in every iteration.
	SubItems int
	SubItem  SubItemFunc

	// Periodic is polled every iteration when set.
	Periodic *reporter.Periodic

	// ProgressEvery is the progress log cadence in iterations; zero means DefaultProgressEvery.
	ProgressEvery int64
}

func (p Phase) validate() error {
	if p.Item == nil && (p.SubItems == 0 || p.SubItem == nil) {
		return errors.Join(ErrInvalidPhase, fmt.Errorf("phase %q submits nothing", p.Name))
	}

	if p.SubItems < 0 {
		return errors.Join(ErrInvalidPhase, fmt.Errorf("phase %q has negative sub-item count", p.Name))
	}

	if p.SubItems > 0 && p.SubItem == nil {
		return errors.Join(ErrInvalidPhase, fmt.Errorf("phase %q has sub-items but no sub-item func", p.Name))
	}

	if p.Until.byCount && p.Until.count < 0 {
		return errors.Join(ErrInvalidPhase, fmt.Errorf("phase %q has negative count", p.Name))
	}

	return nil
}

func (p Phase) progressEvery() int64 {
	if p.ProgressEvery > 0 {
		return p.ProgressEvery
	}

	return DefaultProgressEvery
}

// Result describes a finished phase.
type Result struct {
	Phase          string
	Iterations     int64
	Submitted      int64
	SubmitDuration time.Duration
	TotalDuration  time.Duration
	AchievedPerMs  float64
	ReportsFired   int
}

func achievedPerMs(submitted int64, total time.Duration) float64 {
	ms := float64(total) / float64(time.Millisecond)
	if ms <= 0 {
		return 0
	}

	return float64(submitted) / ms
}
