package domain

import "errors"

// Validation errors. These are never retried.
var (
	// ErrInvalidAmount is returned when a request amount is zero after unit conversion.
	ErrInvalidAmount = errors.New("invalid amount: must be greater than zero")

	// ErrInvalidSlippage is returned when slippage is outside [0, 1].
	ErrInvalidSlippage = errors.New("invalid slippage: must be within [0, 1]")

	// ErrMissingMint is returned when a request lacks an input or output mint.
	ErrMissingMint = errors.New("missing mint address")
)
