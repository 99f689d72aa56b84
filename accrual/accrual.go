// Package accrual computes how much emission a weighted receiver has earned
// since its last settlement.
//
// The computation is pure: it reads a schedule, a receiver's settings and the
// registry's total weight and never mutates them. Callers persist the new
// LastUpdateBlock only when they settle.
package accrual

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/schedule"
)

// Settings is the per-receiver accrual record.
type Settings struct {
	Weight          uint64
	LastUpdateBlock uint64
}

// Settled reports whether s has already been settled at block current.
func (s Settings) Settled(current uint64) bool {
	return current <= s.LastUpdateBlock
}

// ReceiverReward returns emitted(LastUpdateBlock, current) * Weight / totalWeight,
// rounded down. It returns zero when totalWeight is zero or the receiver is
// already settled at current. Remainders are discarded, not carried forward.
func ReceiverReward(current, totalWeight uint64, s schedule.Schedule, settings Settings) (*uint256.Int, error) {
	if totalWeight == 0 || settings.Settled(current) {
		return amount.Zero(), nil
	}
	emitted, err := schedule.Emitted(settings.LastUpdateBlock, current, s)
	if err != nil {
		return nil, err
	}
	reward, err := amount.MulDiv(emitted, uint256.NewInt(settings.Weight), uint256.NewInt(totalWeight))
	if err != nil {
		return nil, fmt.Errorf("accrual: reward at block %d: %w", current, err)
	}
	return reward, nil
}

// Share is one receiver's slice of a pro-rata split.
type Share struct {
	Settings Settings
	Reward   *uint256.Int
}

// Split computes ReceiverReward for every settings entry against the same
// total weight. Because each entry floors independently, the sum never
// exceeds the emission over the widest interval.
func Split(current, totalWeight uint64, s schedule.Schedule, receivers []Settings) ([]Share, error) {
	out := make([]Share, len(receivers))
	for i, r := range receivers {
		reward, err := ReceiverReward(current, totalWeight, s, r)
		if err != nil {
			return nil, err
		}
		out[i] = Share{Settings: r, Reward: reward}
	}
	return out, nil
}
