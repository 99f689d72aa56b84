package vault

import "errors"

var (
	// ErrUnauthorized indicates the caller may not perform the operation.
	ErrUnauthorized = errors.New("vault: unauthorized")

	// ErrContractStopped indicates the circuit breaker is set.
	ErrContractStopped = errors.New("vault: contract is stopped")

	// ErrAlreadyInitialized indicates Init was called on an existing vault.
	ErrAlreadyInitialized = errors.New("vault: already initialized")

	// ErrNotInitialized indicates an operation on a vault with no state.
	ErrNotInitialized = errors.New("vault: not initialized")

	// ErrUnsupportedToken indicates a deposit notification from a contract
	// other than the vault's token.
	ErrUnsupportedToken = errors.New("vault: token is not supported")

	// ErrInvalidParam indicates a malformed argument.
	ErrInvalidParam = errors.New("vault: invalid parameter")
)
