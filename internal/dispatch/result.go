package dispatch

import (
	"errors"
	"fmt"
)

// ResultKind tags the result of processing one message.
type ResultKind int

const (
	ResultOK ResultKind = iota
	ResultPoison
	ResultFault
)

// Result is returned by a ProcessFunc. Poison results are skipped by the
// batch iterator, fault results stop the batch.
type Result struct {
	Kind    ResultKind
	Reason  string
	Err     error
	Outcome *Outcome
}

func OK(outcome Outcome) Result {
	return Result{Kind: ResultOK, Outcome: &outcome}
}

func Poison(reason string) Result {
	return Result{Kind: ResultPoison, Reason: reason}
}

func Fault(err error) Result {
	return Result{Kind: ResultFault, Err: err}
}

// BatchAbortedError reports the message that stopped a batch run.
type BatchAbortedError struct {
	RunID string
	Index int
	Err   error
}

func (e *BatchAbortedError) Error() string {
	return fmt.Sprintf("batch %s aborted at message %d: %v", e.RunID, e.Index, e.Err)
}

func (e *BatchAbortedError) Unwrap() error {
	return e.Err
}

// IsBatchAborted checks if err stopped a batch run
func IsBatchAborted(err error) bool {
	var abortedErr *BatchAbortedError
	return errors.As(err, &abortedErr)
}
