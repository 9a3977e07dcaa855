package pipeline

import (
	"context"
	"errors"
	"fmt"

	"imageConverter/worker/codec"
)

// ValidationError rejects a submission before any item is scheduled. It is
// not retryable without changing the offending options.
type ValidationError struct {
	ItemID   string
	ItemName string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid options for %s (%s): %v", e.ItemName, e.ItemID, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// classify maps an invoker error to the ErrorInfo attached to a failed item.
func classify(err error) *ErrorInfo {
	var failure *codec.Failure
	if errors.As(err, &failure) {
		return &ErrorInfo{Reason: failure.Reason, Message: failure.Msg}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrorInfo{Reason: codec.ReasonInternal, Message: "encode timed out"}
	}
	return &ErrorInfo{Reason: codec.ReasonInternal, Message: err.Error()}
}
