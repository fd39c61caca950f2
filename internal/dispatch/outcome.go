package dispatch

import (
	"fmt"
	"time"
)

// OutcomeKind tells how a callback invocation ended.
type OutcomeKind int

const (
	OutcomeCompleted OutcomeKind = iota + 1
	OutcomeCancelled
	OutcomeFaulted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Outcome is the single result of one callback invocation.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Body       string
	After      time.Duration
	Err        error
}

func Completed(statusCode int, body string) Outcome {
	return Outcome{Kind: OutcomeCompleted, StatusCode: statusCode, Body: body}
}

func Cancelled(after time.Duration) Outcome {
	return Outcome{Kind: OutcomeCancelled, After: after}
}

func Faulted(err error) Outcome {
	return Outcome{Kind: OutcomeFaulted, Err: err}
}

// CallbackFaultError is a transport failure of the outbound callback that is
// not the dispatcher's own timeout.
type CallbackFaultError struct {
	URL string
	Err error
}

func (e *CallbackFaultError) Error() string {
	return fmt.Sprintf("callback to %s failed: %v", e.URL, e.Err)
}

func (e *CallbackFaultError) Unwrap() error {
	return e.Err
}
