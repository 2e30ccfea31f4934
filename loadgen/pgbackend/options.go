package pgbackend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AntonStoeckl/overspend-loadgen-go/loadgen"
)

var (
	// ErrUnknownDriver is returned when a driver name is not supported.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrInvalidPoolSize is returned when the worker count or queue size is not positive.
	ErrInvalidPoolSize = errors.New("worker count and queue size must be positive")

	// ErrEmptyProcedureName is returned when a procedure is registered without a name.
	ErrEmptyProcedureName = errors.New("procedure name must not be empty")
)

// Driver selects the connection library Connect opens endpoints with.
type Driver string

const (
	// DriverPGX opens a pgxpool.Pool per endpoint.
	DriverPGX Driver = "pgx"

	// DriverSQL opens a database/sql handle with lib/pq per endpoint.
	DriverSQL Driver = "sql"

	// DriverSQLX opens a sqlx handle with lib/pq per endpoint.
	DriverSQLX Driver = "sqlx"
)

// ParseDriver converts a configuration value into a Driver.
func ParseDriver(value string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(value))); d {
	case DriverPGX, DriverSQL, DriverSQLX:
		return d, nil
	case "":
		return DriverPGX, nil
	default:
		return "", errors.Join(ErrUnknownDriver, fmt.Errorf("%q", value))
	}
}

// Option defines a functional option for configuring a Client.
type Option func(*Client) error

// WithDriver sets the driver Connect uses.
func WithDriver(driver Driver) Option {
	return func(c *Client) error {
		switch driver {
		case DriverPGX, DriverSQL, DriverSQLX:
			c.driver = driver
			return nil
		default:
			return errors.Join(ErrUnknownDriver, fmt.Errorf("%q", driver))
		}
	}
}

// WithBaseDSN sets the connection URL whose host Connect replaces per endpoint.
func WithBaseDSN(dsn string) Option {
	return func(c *Client) error {
		if _, err := endpointDSN(dsn, "localhost"); err != nil {
			return err
		}
		c.baseDSN = dsn

		return nil
	}
}

// WithProcedure registers a named procedure.
func WithProcedure(name string, procedure Procedure) Option {
	return func(c *Client) error {
		if name == "" {
			return ErrEmptyProcedureName
		}

		if procedure == nil {
			return errors.Join(loadgen.ErrNilDependency, fmt.Errorf("procedure %q", name))
		}

		c.procedures[name] = procedure

		return nil
	}
}

// WithProcedures registers several named procedures.
func WithProcedures(procedures map[string]Procedure) Option {
	return func(c *Client) error {
		for name, procedure := range procedures {
			if err := WithProcedure(name, procedure)(c); err != nil {
				return err
			}
		}

		return nil
	}
}

// WithWorkers sets how many calls execute concurrently.
func WithWorkers(workers int) Option {
	return func(c *Client) error {
		if workers <= 0 {
			return ErrInvalidPoolSize
		}
		c.workers = workers

		return nil
	}
}

// WithQueueSize sets how many submitted calls may wait for a worker before Submit blocks.
func WithQueueSize(size int) Option {
	return func(c *Client) error {
		if size <= 0 {
			return ErrInvalidPoolSize
		}
		c.queueSize = size

		return nil
	}
}

// WithLogger sets the logger for the Client.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: ad-hoc queries with execution timing and failed procedure executions
// Info level: connected endpoints
// Warn level: skipped endpoints
// Error level: no reachable endpoint, failed queries, handler panics.
func WithLogger(logger loadgen.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger used for ad-hoc query logging.
func WithContextualLogger(logger loadgen.ContextualLogger) Option {
	return func(c *Client) error {
		c.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for execution durations and error counts.
func WithMetrics(collector loadgen.MetricsCollector) Option {
	return func(c *Client) error {
		c.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector; every ad-hoc query runs in its own span.
func WithTracing(collector loadgen.TracingCollector) Option {
	return func(c *Client) error {
		c.tracingCollector = collector
		return nil
	}
}
