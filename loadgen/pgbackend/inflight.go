package pgbackend

import (
	"context"
	"sync"
)

// inFlightCounter counts outstanding calls and lets waiters block until it reaches zero.
// Unlike sync.WaitGroup it allows new calls while a waiter gave up on its context.
type inFlightCounter struct {
	mu   sync.Mutex
	n    int64
	idle chan struct{}
}

func (c *inFlightCounter) add() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.n == 0 {
		c.idle = make(chan struct{})
	}
	c.n++
}

func (c *inFlightCounter) done() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.n--
	if c.n == 0 {
		close(c.idle)
	}
}

func (c *inFlightCounter) count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.n
}

func (c *inFlightCounter) wait(ctx context.Context) error {
	c.mu.Lock()
	if c.n == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
