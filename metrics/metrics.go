// Package metrics exposes Prometheus counters for distributor and vault
// operations.
package metrics

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_operations_total",
			Help: "Total number of state-changing operations by outcome",
		},
		[]string{"component", "operation", "status"},
	)

	SettlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "farm_settlements_total",
			Help: "Total number of receiver settlements",
		},
		[]string{"trigger"},
	)

	RewardsPaidTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_rewards_paid_total",
			Help: "Total reward units emitted in payout instructions",
		},
	)

	SharesMintedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_vault_shares_minted_total",
			Help: "Total vault shares minted to depositors",
		},
	)

	SharesBurnedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_vault_shares_burned_total",
			Help: "Total vault shares burned by withdrawals",
		},
	)

	FeesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_vault_fees_total",
			Help: "Total performance fee units skimmed to the admin",
		},
	)

	WithdrawClampsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "farm_vault_withdraw_clamps_total",
			Help: "Total withdrawals clamped to the deployed balance",
		},
	)
)

// Status labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Status returns the status label for err.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// ObserveOperation counts one operation outcome.
func ObserveOperation(component, operation string, err error) {
	OperationsTotal.WithLabelValues(component, operation, Status(err)).Inc()
}

// AddAmount adds v to c. Counters are float64, so very large amounts lose
// precision; they are for dashboards, not accounting.
func AddAmount(c prometheus.Counter, v *uint256.Int) {
	if v == nil || v.IsZero() {
		return
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	c.Add(f)
}
