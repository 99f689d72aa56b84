// Package schedule models a piecewise-constant emission rate over block
// height and integrates it over block ranges.
//
// A schedule is a list of units sorted by end block. Blocks up to and
// including the first unit's end block emit at that unit's rate; blocks
// after unit i's end block and up to unit i+1's end block emit at unit i+1's
// rate. Blocks past the last end block emit nothing.
package schedule

import (
	"fmt"
	"slices"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/amount"
)

// Unit is one segment of a schedule.
type Unit struct {
	EndBlock     uint64
	RatePerBlock *uint256.Int
}

// Schedule is a list of units sorted ascending by EndBlock.
type Schedule []Unit

// New copies units into a sorted, validated schedule. Duplicate end blocks
// are kept; the later duplicate covers an empty range and emits nothing.
func New(units []Unit) (Schedule, error) {
	s := make(Schedule, len(units))
	for i, u := range units {
		s[i] = Unit{EndBlock: u.EndBlock, RatePerBlock: amount.OrZero(u.RatePerBlock).Clone()}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s.Sort()
	return s, nil
}

// Sort orders units by EndBlock. Units sharing an end block keep their
// relative order.
func (s Schedule) Sort() {
	slices.SortStableFunc(s, func(a, b Unit) int {
		switch {
		case a.EndBlock < b.EndBlock:
			return -1
		case a.EndBlock > b.EndBlock:
			return 1
		}
		return 0
	})
}

// IsSorted reports whether s is in ascending EndBlock order.
func (s Schedule) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if s[i].EndBlock < s[i-1].EndBlock {
			return false
		}
	}
	return true
}

// Validate checks that every rate fits in 128 bits.
func (s Schedule) Validate() error {
	for i, u := range s {
		if !amount.Fits(u.RatePerBlock) {
			return fmt.Errorf("%w: unit %d", ErrRateTooLarge, i)
		}
	}
	return nil
}

// LastBlock returns the end block of the final unit, or 0 for an empty schedule.
func (s Schedule) LastBlock() uint64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].EndBlock
}

// RateAt returns the emission rate of block b. Block 0 and blocks past the
// last unit emit nothing.
func (s Schedule) RateAt(b uint64) *uint256.Int {
	if b == 0 {
		return amount.Zero()
	}
	for _, u := range s {
		if b <= u.EndBlock {
			return amount.OrZero(u.RatePerBlock).Clone()
		}
	}
	return amount.Zero()
}

// Clone returns a deep copy of s.
func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	out := make(Schedule, len(s))
	for i, u := range s {
		out[i] = Unit{EndBlock: u.EndBlock, RatePerBlock: amount.OrZero(u.RatePerBlock).Clone()}
	}
	return out
}

// Emitted returns the total emission over the half-open block range
// (from, to]. It returns zero when to <= from, and ErrOverflow from the
// amount package if the sum leaves the u128 range.
func Emitted(from, to uint64, s Schedule) (*uint256.Int, error) {
	total := amount.Zero()
	if to <= from {
		return total, nil
	}

	cursor := from
	for _, u := range s {
		if cursor == to {
			break
		}
		if u.EndBlock <= cursor {
			continue
		}
		segmentEnd := min(to, u.EndBlock)

		part, err := amount.Mul(uint256.NewInt(segmentEnd-cursor), u.RatePerBlock)
		if err != nil {
			return nil, fmt.Errorf("schedule: emitted (%d, %d]: %w", from, to, err)
		}
		if total, err = amount.Add(total, part); err != nil {
			return nil, fmt.Errorf("schedule: emitted (%d, %d]: %w", from, to, err)
		}
		cursor = segmentEnd
	}
	return total, nil
}

// TotalEmission returns everything s will ever release, counted from block 0.
func TotalEmission(s Schedule) (*uint256.Int, error) {
	return Emitted(0, s.LastBlock(), s)
}
