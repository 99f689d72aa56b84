package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
)

type balanceKey struct {
	contract identity.Address
	owner    identity.Address
}

// Ledger is an in-memory token host. It answers Querier calls from its own
// balances and executes instructions the way a token contract would, which
// lets local harnesses run operations end to end.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]*uint256.Int
	yield    map[balanceKey]*uint256.Int
	farms    map[identity.Address]identity.Address // farm -> staked token
}

// Compile-time interface check.
var _ Querier = (*Ledger)(nil)

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[balanceKey]*uint256.Int),
		yield:    make(map[balanceKey]*uint256.Int),
		farms:    make(map[identity.Address]identity.Address),
	}
}

// RegisterFarm declares farm as a contract that stakes stakedToken. Sends of
// stakedToken to farm are credited as deposits, and redeems pay back in
// stakedToken. Both harvest: the owner's unclaimed yield is paid out in
// stakedToken and reset to zero.
func (l *Ledger) RegisterFarm(farm, stakedToken identity.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.farms[farm] = stakedToken
}

// SetBalance overwrites owner's balance in contract.
func (l *Ledger) SetBalance(contract, owner identity.Address, amt *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{contract, owner}] = amount.OrZero(amt).Clone()
}

// SetYield sets the unclaimed yield farm reports for owner.
func (l *Ledger) SetYield(farm, owner identity.Address, amt *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.yield[balanceKey{farm, owner}] = amount.OrZero(amt).Clone()
}

// Balance implements Querier.
func (l *Ledger) Balance(_ context.Context, contract, owner identity.Address) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return amount.OrZero(l.balances[balanceKey{contract, owner}]).Clone(), nil
}

// UnclaimedYield implements Querier. The block height is ignored.
func (l *Ledger) UnclaimedYield(_ context.Context, farm, owner identity.Address, _ uint64) (*uint256.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return amount.OrZero(l.yield[balanceKey{farm, owner}]).Clone(), nil
}

// Apply executes instructions issued by caller in order. Either every
// instruction applies or none does.
func (l *Ledger) Apply(caller identity.Address, ins []Instruction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := make(map[balanceKey]*uint256.Int)
	harvested := make(map[balanceKey]bool)
	get := func(k balanceKey) *uint256.Int {
		if v, ok := staged[k]; ok {
			return v
		}
		return amount.OrZero(l.balances[k]).Clone()
	}
	debit := func(k balanceKey, amt *uint256.Int) error {
		next, err := amount.Sub(get(k), amt)
		if err != nil {
			return fmt.Errorf("%w: %s holds %s of %s, needs %s",
				ErrInsufficientBalance, k.owner, get(k).Dec(), k.contract, amount.OrZero(amt).Dec())
		}
		staged[k] = next
		return nil
	}
	credit := func(k balanceKey, amt *uint256.Int) error {
		next, err := amount.Add(get(k), amt)
		if err != nil {
			return err
		}
		staged[k] = next
		return nil
	}

	harvest := func(farm, owner identity.Address) error {
		k := balanceKey{farm, owner}
		if harvested[k] {
			return nil
		}
		harvested[k] = true
		y := l.yield[k]
		if y == nil || y.IsZero() {
			return nil
		}
		return credit(balanceKey{l.farms[farm], owner}, y)
	}

	for i, in := range ins {
		var err error
		switch in.Kind {
		case KindMint:
			err = credit(balanceKey{in.Contract, in.To}, in.Amount)
		case KindTransfer:
			if err = debit(balanceKey{in.Contract, caller}, in.Amount); err == nil {
				err = credit(balanceKey{in.Contract, in.To}, in.Amount)
			}
		case KindSend:
			if err = debit(balanceKey{in.Contract, caller}, in.Amount); err == nil {
				err = credit(balanceKey{in.Contract, in.To}, in.Amount)
			}
			// A send of the staked token into a farm is a deposit.
			if staked, ok := l.farms[in.To]; err == nil && ok && staked == in.Contract {
				if err = credit(balanceKey{in.To, caller}, in.Amount); err == nil {
					err = harvest(in.To, caller)
				}
			}
		case KindBurnFrom:
			err = debit(balanceKey{in.Contract, in.From}, in.Amount)
		case KindRedeem:
			staked, ok := l.farms[in.Contract]
			if !ok {
				err = fmt.Errorf("token: redeem from unregistered farm %s", in.Contract)
				break
			}
			if err = debit(balanceKey{in.Contract, caller}, in.Amount); err == nil {
				if err = debit(balanceKey{staked, in.Contract}, in.Amount); err == nil {
					if err = credit(balanceKey{staked, caller}, in.Amount); err == nil {
						err = harvest(in.Contract, caller)
					}
				}
			}
		case KindNotifyAllocation:
			// Notices carry no balance change.
		default:
			err = fmt.Errorf("token: unknown instruction kind %d", in.Kind)
		}
		if err != nil {
			return fmt.Errorf("token: instruction %d (%s): %w", i, in.Kind, err)
		}
	}

	for k, v := range staged {
		l.balances[k] = v
	}
	for k := range harvested {
		delete(l.yield, k)
	}
	return nil
}
