// Package amount provides checked unsigned 128-bit token arithmetic.
//
// Values are carried in *uint256.Int so that intermediate products can be
// inspected before they are narrowed back to 128 bits. Every operation that
// leaves the u128 range returns ErrOverflow instead of wrapping. Division
// always truncates toward zero.
package amount

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BpsDenominator is the basis-point denominator (100%).
const BpsDenominator = 10_000

// Max128 is the largest representable amount, 2^128 - 1.
var Max128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// FromUint64 returns v as an amount.
func FromUint64(v uint64) *uint256.Int { return uint256.NewInt(v) }

// Parse reads a base-10 amount and rejects anything above Max128.
func Parse(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	if !Fits(v) {
		return nil, fmt.Errorf("%w: %q exceeds 128 bits", ErrOverflow, s)
	}
	return v, nil
}

// Fits reports whether v is within the u128 range. A nil value fits.
func Fits(v *uint256.Int) bool {
	return v == nil || v.BitLen() <= 128
}

// OrZero returns v, or a zero amount when v is nil.
func OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return Zero()
	}
	return v
}

// Add returns x + y.
func Add(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(OrZero(x), OrZero(y))
	if overflow || !Fits(z) {
		return nil, fmt.Errorf("%w: %s + %s", ErrOverflow, OrZero(x).Dec(), OrZero(y).Dec())
	}
	return z, nil
}

// Sub returns x - y, or ErrUnderflow when y > x.
func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(OrZero(x), OrZero(y))
	if underflow {
		return nil, fmt.Errorf("%w: %s - %s", ErrUnderflow, OrZero(x).Dec(), OrZero(y).Dec())
	}
	return z, nil
}

// Mul returns x * y.
func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(OrZero(x), OrZero(y))
	if overflow || !Fits(z) {
		return nil, fmt.Errorf("%w: %s * %s", ErrOverflow, OrZero(x).Dec(), OrZero(y).Dec())
	}
	return z, nil
}

// Div returns floor(x / d).
func Div(x, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(OrZero(x), d), nil
}

// MulDiv returns floor(x * y / d). The product x * y must itself fit in
// 128 bits, matching u128 checked multiplication followed by division.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d == nil || d.IsZero() {
		return nil, ErrDivisionByZero
	}
	p, err := Mul(x, y)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(p, d), nil
}

// Bps returns floor(x * bps / 10000).
func Bps(x *uint256.Int, bps uint16) (*uint256.Int, error) {
	return MulDiv(x, uint256.NewInt(uint64(bps)), uint256.NewInt(BpsDenominator))
}

// Min returns the smaller of x and y.
func Min(x, y *uint256.Int) *uint256.Int {
	if OrZero(x).Lt(OrZero(y)) {
		return OrZero(x).Clone()
	}
	return OrZero(y).Clone()
}

// Sum adds all values.
func Sum(vals ...*uint256.Int) (*uint256.Int, error) {
	total := Zero()
	for _, v := range vals {
		var err error
		if total, err = Add(total, v); err != nil {
			return nil, err
		}
	}
	return total, nil
}
