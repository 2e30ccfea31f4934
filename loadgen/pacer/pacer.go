// Package pacer caps how many operations the dispatch loop submits per millisecond.
//
// Two strategies are available. The MillisecondPacer counts submissions within the
// current wall-clock millisecond and sleeps in small fixed steps once the target is
// reached. The TokenBucketPacer delegates to golang.org/x/time/rate with the same
// ceiling. Both allow N operations to take no less than (N/R - 1) milliseconds.
//
// A Pacer is owned by one dispatch loop and is not safe for concurrent Wait calls.
package pacer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind selects a pacing strategy.
type Kind string

const (
	// KindSpin selects the MillisecondPacer.
	KindSpin Kind = "spin"

	// KindToken selects the TokenBucketPacer.
	KindToken Kind = "token"
)

// ErrUnknownKind is returned when a pacing strategy name is not recognized.
var ErrUnknownKind = errors.New("unknown pacing strategy")

// Pacer blocks the caller until one more submission is allowed.
type Pacer interface {
	Wait(ctx context.Context) error
	Waits() int64
}

// ParseKind converts a configuration value into a Kind.
func ParseKind(value string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindSpin, "":
		return KindSpin, nil
	case KindToken:
		return KindToken, nil
	default:
		return "", errors.Join(ErrUnknownKind, fmt.Errorf("%q", value))
	}
}

// New creates a Pacer of the given kind that admits opsPerMs submissions per millisecond.
func New(kind Kind, opsPerMs int64, options ...Option) (Pacer, error) {
	switch kind {
	case KindSpin, "":
		return NewMillisecondPacer(opsPerMs, options...)
	case KindToken:
		return NewTokenBucketPacer(opsPerMs, options...)
	default:
		return nil, errors.Join(ErrUnknownKind, fmt.Errorf("%q", kind))
	}
}
