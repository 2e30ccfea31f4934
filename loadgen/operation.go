package loadgen

import (
	"context"
)

// OperationClass labels a category of operation, e.g. "CREATE_CAMPAIGN".
// It is used as the histogram key.
type OperationClass = string

// Status is the terminal status of one submitted operation.
type Status int

const (
	// StatusSuccess means the backend executed the operation.
	StatusSuccess Status = iota

	// StatusFailure means the backend reported an error for the operation.
	StatusFailure
)

// String provides a string representation of Status for logging.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Response is what the backend hands to a CompletionHandler once an operation reached its terminal state.
type Response struct {
	Status       Status
	StatusString string
	RowsAffected int64
	Err          error
}

// SuccessResponse builds a successful Response.
func SuccessResponse(rowsAffected int64) Response {
	return Response{Status: StatusSuccess, StatusString: StatusSuccess.String(), RowsAffected: rowsAffected}
}

// FailureResponse builds a failed Response carrying the cause.
func FailureResponse(err error) Response {
	statusString := StatusFailure.String()
	if err != nil {
		statusString = err.Error()
	}

	return Response{Status: StatusFailure, StatusString: statusString, Err: err}
}

// CompletionHandler receives the terminal event of one asynchronously executed operation.
// OnComplete is called exactly once, possibly from a goroutine other than the submitting one.
type CompletionHandler interface {
	OnComplete(response Response)
}

// CompletionFunc adapts a plain function to a CompletionHandler.
type CompletionFunc func(response Response)

// OnComplete calls f(response).
func (f CompletionFunc) OnComplete(response Response) {
	f(response)
}

// Backend is the transactional backend client the load generator drives.
type Backend interface {
	// Submit enqueues a named procedure call and returns without waiting for its result.
	// The handler is invoked by the backend once the call reached its terminal state.
	Submit(ctx context.Context, handler CompletionHandler, procedure string, args ...any) error

	// Drain blocks until every previously submitted operation reached a terminal state.
	Drain(ctx context.Context) error

	// QuerySync executes an ad-hoc query synchronously.
	QuerySync(ctx context.Context, query string) (QueryResult, error)
}
