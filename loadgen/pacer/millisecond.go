package pacer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// MillisecondPacer admits exactly target submissions per wall-clock millisecond.
// The bucket resets whenever the current millisecond differs from the bucket's.
type MillisecondPacer struct {
	target       int64
	bucketMillis int64
	inBucket     int64
	waits        atomic.Int64
	sleepStep    time.Duration
	now          func() time.Time
	sleep        func(time.Duration)
}

// NewMillisecondPacer creates a MillisecondPacer admitting opsPerMs submissions per millisecond.
func NewMillisecondPacer(opsPerMs int64, options ...Option) (*MillisecondPacer, error) {
	if opsPerMs <= 0 {
		return nil, errors.Join(loadgen.ErrInvalidRate, fmt.Errorf("got %d ops/ms", opsPerMs))
	}

	s, err := applyOptions(options)
	if err != nil {
		return nil, err
	}

	return &MillisecondPacer{
		target:       opsPerMs,
		bucketMillis: -1,
		sleepStep:    s.sleepStep,
		now:          s.now,
		sleep:        s.sleep,
	}, nil
}

// Wait returns once the current millisecond has room for one more submission.
func (p *MillisecondPacer) Wait(ctx context.Context) error {
	throttled := false

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if ms := p.now().UnixMilli(); ms != p.bucketMillis {
			p.bucketMillis = ms
			p.inBucket = 0
		}

		if p.inBucket < p.target {
			p.inBucket++
			return nil
		}

		if !throttled {
			throttled = true
			p.waits.Add(1)
		}

		p.sleep(p.sleepStep)
	}
}

// Waits returns how many Wait calls had to throttle.
func (p *MillisecondPacer) Waits() int64 {
	return p.waits.Load()
}

// Target returns the configured ops per millisecond.
func (p *MillisecondPacer) Target() int64 {
	return p.target
}
