package vault

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/amount"
)

// Config returns a copy of the vault state. Queries work while stopped.
func (v *Vault) Config() (*State, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loadState()
}

// PoolValue returns the vault's valuation as of block.
func (v *Vault) PoolValue(ctx context.Context, block uint64) (*Pool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.loadState()
	if err != nil {
		return nil, err
	}
	return v.pool(ctx, st, block)
}

// PreviewDeposit returns the shares a deposit of amt would mint at block,
// assuming the deposit has not reached the vault yet.
func (v *Vault) PreviewDeposit(ctx context.Context, block uint64, amt *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.loadState()
	if err != nil {
		return nil, err
	}
	p, err := v.pool(ctx, st, block)
	if err != nil {
		return nil, err
	}
	return sharesFor(amount.OrZero(amt), st.TotalShares, p)
}

// PreviewWithdraw returns what burning shares would pay at block, after
// clamping to the deployed balance.
func (v *Vault) PreviewWithdraw(ctx context.Context, block uint64, shares *uint256.Int) (*uint256.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, err := v.loadState()
	if err != nil {
		return nil, err
	}
	if st.TotalShares.IsZero() {
		return amount.Zero(), nil
	}
	p, err := v.pool(ctx, st, block)
	if err != nil {
		return nil, err
	}
	owed, err := owedFor(amount.OrZero(shares), st.TotalShares, p)
	if err != nil {
		return nil, err
	}
	return amount.Min(owed, p.Deployed), nil
}
