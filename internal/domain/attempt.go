package domain

import "time"

// Attempt outcome codes.
const (
	AttemptOutcomeSuccess = "SUCCESS"
	AttemptOutcomeFailure = "FAILURE"
)

// ExecutionAttempt is one entry in the append-only execution log.
// Consumed by the circuit breaker and the risk and position subsystems.
type ExecutionAttempt struct {
	ID         string // uuid
	Mint       string
	Method     ExecMethod
	Side       Side
	StartedAt  time.Time
	FinishedAt time.Time
	Outcome    string
	Signature  string // transaction signature on success
	ErrKind    string // error classification on failure
	ErrMessage string
	Retries    int // retries consumed within the method
}
