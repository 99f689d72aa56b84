package distributor

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/accrual"
	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/schedule"
	"github.com/bitfsorg/libfarm-go/token"
	"github.com/bitfsorg/libfarm-go/viewkey"
)

// ConfigView is the public configuration of a distributor.
type ConfigView struct {
	Admin       identity.Address
	RewardToken identity.Address
	Schedule    schedule.Schedule
	Variant     Variant
	Stopped     bool
	Peer        identity.Address
	TotalWeight uint64
}

// Config returns the current configuration. Queries work while stopped.
func (c *Controller) Config() (*ConfigView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	total, err := c.reg.TotalWeight()
	if err != nil {
		return nil, err
	}
	return &ConfigView{
		Admin:       st.Admin,
		RewardToken: st.RewardToken,
		Schedule:    st.Schedule,
		Variant:     st.Variant,
		Stopped:     st.Stopped,
		Peer:        st.Peer,
		TotalWeight: total,
	}, nil
}

// Weight returns the committed settings of receiver. Unknown receivers have
// zero weight.
func (c *Controller) Weight(receiver identity.Address) (accrual.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, _, err := c.reg.Settings(receiver)
	return s, err
}

// Pending returns what receiver would be paid if settled at asOfBlock. It
// does not settle.
func (c *Controller) Pending(receiver identity.Address, asOfBlock uint64) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending(receiver, asOfBlock)
}

func (c *Controller) pending(receiver identity.Address, asOfBlock uint64) (*uint256.Int, error) {
	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	s, found, err := c.reg.Settings(receiver)
	if err != nil {
		return nil, err
	}
	if !found {
		return new(uint256.Int), nil
	}
	total, err := c.reg.TotalWeight()
	if err != nil {
		return nil, err
	}
	return accrual.ReceiverReward(asOfBlock, total, st.Schedule, s)
}

// AuthenticatedPending is Pending gated by receiver's viewing key.
func (c *Controller) AuthenticatedPending(receiver identity.Address, key string, asOfBlock uint64) (*uint256.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, err := c.loadState()
	if err != nil {
		return nil, err
	}
	if err := viewkey.Check(st.ViewingKeys[receiver], key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return c.pending(receiver, asOfBlock)
}

// YieldQuerier answers balance queries from an external Querier and yield
// queries from a local controller, so a vault can farm an in-process
// distributor.
type YieldQuerier struct {
	Farm     identity.Address
	Source   *Controller
	Balances token.Querier
}

// Compile-time interface check.
var _ token.Querier = (*YieldQuerier)(nil)

// Balance implements token.Querier.
func (q *YieldQuerier) Balance(ctx context.Context, contract, owner identity.Address) (*uint256.Int, error) {
	return q.Balances.Balance(ctx, contract, owner)
}

// UnclaimedYield implements token.Querier. Queries for other contracts go to
// the external Querier.
func (q *YieldQuerier) UnclaimedYield(ctx context.Context, contract, owner identity.Address, asOfBlock uint64) (*uint256.Int, error) {
	if contract != q.Farm {
		return q.Balances.UnclaimedYield(ctx, contract, owner, asOfBlock)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return q.Source.Pending(owner, asOfBlock)
}
