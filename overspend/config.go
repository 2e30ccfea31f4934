package overspend

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when simulation parameters cannot drive a run.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Config holds the simulation parameters.
type Config struct {
	// CampaignCount is how many campaigns the create phase inserts, ids 0..CampaignCount-1.
	CampaignCount int64

	// TargetPerMs is the submission cap in operations per millisecond.
	TargetPerMs int64

	// Duration is how long the benchmark phase submits spend reports.
	Duration time.Duration

	// QueryInterval is the cadence of the overspend report; zero disables it during the benchmark.
	QueryInterval time.Duration

	// Budget is the exclusive upper bound of the random campaign budget.
	Budget int64

	// AdCount is how many ads every campaign gets.
	AdCount int

	// ProgressEvery is the progress log cadence in iterations; zero uses the dispatch default.
	ProgressEvery int64
}

// Validate checks that every parameter can drive a run.
func (c Config) Validate() error {
	var errs []error

	if c.CampaignCount < 1 {
		errs = append(errs, fmt.Errorf("campaign count must be at least 1, got %d", c.CampaignCount))
	}
	if c.TargetPerMs < 1 {
		errs = append(errs, fmt.Errorf("tpms must be at least 1, got %d", c.TargetPerMs))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.QueryInterval < 0 {
		errs = append(errs, fmt.Errorf("query interval must not be negative, got %s", c.QueryInterval))
	}
	if c.Budget < 1 {
		errs = append(errs, fmt.Errorf("budget must be at least 1, got %d", c.Budget))
	}
	if c.AdCount < 1 {
		errs = append(errs, fmt.Errorf("ad count must be at least 1, got %d", c.AdCount))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}

	return nil
}
