package token

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/identity"
)

// Querier answers point-in-time balance questions about token and farm
// contracts. Implementations must be safe for concurrent use.
type Querier interface {
	// Balance returns owner's balance in contract. For a farm contract this
	// is the amount owner has deposited into it.
	Balance(ctx context.Context, contract, owner identity.Address) (*uint256.Int, error)

	// UnclaimedYield returns the reward owner could claim from farm contract
	// as of asOfBlock, without settling it.
	UnclaimedYield(ctx context.Context, contract, owner identity.Address, asOfBlock uint64) (*uint256.Int, error)
}

// MockQuerier is a test double for Querier.
// All function fields must be set before the corresponding method is called.
type MockQuerier struct {
	BalanceFn        func(ctx context.Context, contract, owner identity.Address) (*uint256.Int, error)
	UnclaimedYieldFn func(ctx context.Context, contract, owner identity.Address, asOfBlock uint64) (*uint256.Int, error)
}

// Compile-time interface check.
var _ Querier = (*MockQuerier)(nil)

func (m *MockQuerier) Balance(ctx context.Context, contract, owner identity.Address) (*uint256.Int, error) {
	return m.BalanceFn(ctx, contract, owner)
}
func (m *MockQuerier) UnclaimedYield(ctx context.Context, contract, owner identity.Address, asOfBlock uint64) (*uint256.Int, error) {
	return m.UnclaimedYieldFn(ctx, contract, owner, asOfBlock)
}
