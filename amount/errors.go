package amount

import "errors"

var (
	// ErrOverflow indicates a result or intermediate product exceeded 128 bits.
	ErrOverflow = errors.New("amount: arithmetic overflow")

	// ErrUnderflow indicates a subtraction would go below zero.
	ErrUnderflow = errors.New("amount: arithmetic underflow")

	// ErrDivisionByZero indicates a zero divisor.
	ErrDivisionByZero = errors.New("amount: division by zero")

	// ErrInvalidAmount indicates a string that is not a base-10 u128.
	ErrInvalidAmount = errors.New("amount: invalid amount")
)
