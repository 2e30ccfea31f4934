package pacer

import (
	"errors"
	"time"
)

// ErrInvalidSleepStep is returned when the throttle sleep step is not positive.
var ErrInvalidSleepStep = errors.New("sleep step must be positive")

// DefaultSleepStep is how long the MillisecondPacer sleeps between checks of the clock.
const DefaultSleepStep = 50 * time.Microsecond

type settings struct {
	sleepStep time.Duration
	now       func() time.Time
	sleep     func(time.Duration)
}

func defaultSettings() settings {
	return settings{
		sleepStep: DefaultSleepStep,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Option defines a functional option for configuring a Pacer.
type Option func(*settings) error

// WithSleepStep sets the MillisecondPacer's throttle sleep increment.
func WithSleepStep(step time.Duration) Option {
	return func(s *settings) error {
		if step <= 0 {
			return ErrInvalidSleepStep
		}
		s.sleepStep = step

		return nil
	}
}

// WithClock replaces the clock and sleep functions, mainly for tests.
// The TokenBucketPacer uses the clock for reservations and ignores sleep.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(s *settings) error {
		if now != nil {
			s.now = now
		}
		if sleep != nil {
			s.sleep = sleep
		}

		return nil
	}
}

func applyOptions(options []Option) (settings, error) {
	s := defaultSettings()
	for _, option := range options {
		if err := option(&s); err != nil {
			return settings{}, err
		}
	}

	return s, nil
}
