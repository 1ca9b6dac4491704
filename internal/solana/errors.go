package solana

import (
	"context"
	"errors"
	"fmt"
)

// NetworkError wraps transport-level failures. Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError wraps deadline expiry on an RPC call. Retryable, and must be
// distinguishable from an on-chain rejection.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout during %s: %v", e.Op, e.Err) }

func (e *TimeoutError) Unwrap() error { return e.Err }

// RejectedError is a structured on-chain rejection (simulation or
// execution). Not retryable with the same instruction.
type RejectedError struct {
	Op      string
	Code    int
	Message string
	Logs    []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("transaction rejected during %s: %s (code %d)", e.Op, e.Message, e.Code)
}

// classifyCallErr maps a transport failure into the error taxonomy.
func classifyCallErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}
