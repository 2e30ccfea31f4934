package loadgen

import "errors"

var (
	// ErrNoConnections is returned when no backend connection is viable.
	ErrNoConnections = errors.New("no viable backend connections")

	// ErrClientClosed is returned when a closed backend client is used.
	ErrClientClosed = errors.New("backend client is closed")

	// ErrUnknownProcedure is returned when a submitted procedure is not registered with the backend.
	ErrUnknownProcedure = errors.New("unknown procedure")

	// ErrSubmissionFailed is returned when an operation could not be handed to the backend.
	ErrSubmissionFailed = errors.New("submitting operation failed")

	// ErrDrainFailed is returned when waiting for in-flight operations did not complete.
	ErrDrainFailed = errors.New("draining in-flight operations failed")

	// ErrQueryFailed is returned when a synchronous ad-hoc query failed.
	ErrQueryFailed = errors.New("ad-hoc query failed")

	// ErrInvalidRate is returned when a target rate is not positive.
	ErrInvalidRate = errors.New("target rate must be positive")

	// ErrInvalidArgument is returned when a procedure receives arguments it cannot use.
	ErrInvalidArgument = errors.New("invalid procedure argument")

	// ErrNilDependency is returned when a required collaborator is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
