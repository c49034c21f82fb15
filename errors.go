package tflow

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned by Run when tasks is not a task sequence.
// The message is kept verbatim for compatibility with other tflow ports.
var ErrInvalidArgument = errors.New("tflow requires array of tasks as first argument.") //nolint:staticcheck // message is part of the contract

// FlowError is the error produced by Continuation.Fail and FailWithStatus.
// Status is zero when no status code was given.
type FlowError struct {
	Message string
	Status  int
	Err     error
}

// Error returns Message. A nil *FlowError reads as a generic failure.
func (e *FlowError) Error() string {
	if e == nil {
		return "task failed"
	}
	return e.Message
}

func (e *FlowError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HasStatus reports whether a status code is attached.
func (e *FlowError) HasStatus() bool {
	return e != nil && e.Status != 0
}

// StatusOf returns the status attached to the first FlowError in err's chain.
func StatusOf(err error) (int, bool) {
	var fe *FlowError
	if errors.As(err, &fe) && fe.HasStatus() {
		return fe.Status, true
	}
	return 0, false
}

// toError normalizes the argument of Fail. Plain messages become a FlowError,
// errors pass through unchanged.
func toError(v any) error {
	switch e := v.(type) {
	case nil:
		return &FlowError{Message: "task failed"}
	case error:
		return e
	case string:
		return &FlowError{Message: e}
	case fmt.Stringer:
		return &FlowError{Message: e.String()}
	default:
		return &FlowError{Message: fmt.Sprint(e)}
	}
}

// withStatus attaches status to err, copying a FlowError rather than mutating
// one a caller may still hold.
func withStatus(err error, status int) error {
	if status == 0 {
		return err
	}
	if fe, ok := err.(*FlowError); ok && fe != nil {
		cp := *fe
		cp.Status = status
		return &cp
	}
	return &FlowError{Message: err.Error(), Status: status, Err: err}
}
