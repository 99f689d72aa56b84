package registry

import "errors"

var (
	// ErrMetaNotFound indicates no metadata blob exists under the name.
	ErrMetaNotFound = errors.New("registry: metadata not found")

	// ErrInvalidSettingsData indicates stored receiver settings are malformed.
	ErrInvalidSettingsData = errors.New("registry: invalid settings data")

	// ErrTxClosed indicates use of a committed or discarded transaction.
	ErrTxClosed = errors.New("registry: transaction already closed")

	// ErrTotalMismatch indicates the stored total weight differs from the
	// sum of receiver weights.
	ErrTotalMismatch = errors.New("registry: total weight does not match receiver weights")

	// ErrEmptyReceiver indicates a receiver with an empty identity.
	ErrEmptyReceiver = errors.New("registry: empty receiver identity")

	// ErrNilParam indicates a required parameter was nil.
	ErrNilParam = errors.New("registry: nil parameter")
)
