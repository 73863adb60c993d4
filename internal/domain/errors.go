package domain

import "errors"

var (
	// ErrMissingConfig is returned when required configuration is absent at startup.
	ErrMissingConfig = errors.New("missing required configuration")

	// ErrDiscovery indicates the asset index could not be queried; it aborts the current cycle.
	ErrDiscovery = errors.New("asset discovery failed")

	// ErrInvalidAddress is returned for malformed token addresses, before any network call.
	ErrInvalidAddress = errors.New("invalid token address")

	// ErrInvalidValue is returned for malformed fixed-point valuations.
	ErrInvalidValue = errors.New("invalid valuation value")

	// ErrTransaction covers submission, revert and confirmation failures.
	ErrTransaction = errors.New("transaction failed")

	// ErrInsufficientFunds means the signer cannot pay for gas; the whole batch is skipped.
	ErrInsufficientFunds = errors.New("signer has no funds")

	// ErrComputation is returned when scoring produces a non-finite or negative value.
	ErrComputation = errors.New("valuation computation error")
)
