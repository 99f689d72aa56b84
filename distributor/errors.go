package distributor

import "errors"

var (
	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("distributor: unauthorized")

	// ErrContractStopped indicates the circuit breaker is set.
	ErrContractStopped = errors.New("distributor: contract is stopped")

	// ErrAlreadyInitialized indicates Init was called on an existing distributor.
	ErrAlreadyInitialized = errors.New("distributor: already initialized")

	// ErrNotInitialized indicates an operation on a distributor with no state.
	ErrNotInitialized = errors.New("distributor: not initialized")

	// ErrAlreadyBound indicates the one-time peer binding has already been made.
	ErrAlreadyBound = errors.New("distributor: peer already bound")

	// ErrReceiverNotAllowed indicates a weight for a receiver the variant does not accept.
	ErrReceiverNotAllowed = errors.New("distributor: receiver not allowed")

	// ErrInvalidParam indicates a malformed argument.
	ErrInvalidParam = errors.New("distributor: invalid parameter")
)
