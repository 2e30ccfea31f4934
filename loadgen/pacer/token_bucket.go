package pacer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

// TokenBucketPacer limits submissions with a token bucket refilled at R per millisecond
// holding at most R tokens.
type TokenBucketPacer struct {
	limiter *rate.Limiter
	target  int64
	waits   atomic.Int64
	now     func() time.Time
}

// NewTokenBucketPacer creates a TokenBucketPacer admitting opsPerMs submissions per millisecond.
func NewTokenBucketPacer(opsPerMs int64, options ...Option) (*TokenBucketPacer, error) {
	if opsPerMs <= 0 {
		return nil, errors.Join(loadgen.ErrInvalidRate, fmt.Errorf("got %d ops/ms", opsPerMs))
	}

	s, err := applyOptions(options)
	if err != nil {
		return nil, err
	}

	return &TokenBucketPacer{
		limiter: rate.NewLimiter(rate.Limit(float64(opsPerMs)*1000), int(opsPerMs)),
		target:  opsPerMs,
		now:     s.now,
	}, nil
}

// Wait reserves one token and sleeps until it becomes available.
func (p *TokenBucketPacer) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := p.now()
	reservation := p.limiter.ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	p.waits.Add(1)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		reservation.CancelAt(p.now())
		return ctx.Err()
	}
}

// Waits returns how many Wait calls had to throttle.
func (p *TokenBucketPacer) Waits() int64 {
	return p.waits.Load()
}

// Target returns the configured ops per millisecond.
func (p *TokenBucketPacer) Target() int64 {
	return p.target
}
