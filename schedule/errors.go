package schedule

import "errors"

var (
	// ErrInvalidScheduleData indicates encoded schedule bytes are malformed.
	ErrInvalidScheduleData = errors.New("schedule: invalid schedule data")

	// ErrRateTooLarge indicates a per-block rate above 128 bits.
	ErrRateTooLarge = errors.New("schedule: rate per block exceeds 128 bits")

	// ErrTooManyUnits indicates a schedule that cannot be encoded.
	ErrTooManyUnits = errors.New("schedule: too many units")
)
