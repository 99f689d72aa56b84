package distributor

import (
	"fmt"

	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/schedule"
	"github.com/bitfsorg/libfarm-go/viewkey"
)

// WeightUpdate assigns a new weight to a receiver.
type WeightUpdate struct {
	Receiver identity.Address
	Weight   uint64
}

// SetWeights applies updates in order. Each receiver is first settled under
// its old weight, then given the new weight with LastUpdateBlock set to the
// current block. Rewards paid inside the batch use the total weight from
// before the batch; the total is adjusted once at the end. Admin only.
func (c *Controller) SetWeights(env Env, updates []WeightUpdate) (*Response, error) {
	return c.run(env, "set_weights", false, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		for _, u := range updates {
			if u.Receiver.IsZero() {
				return fmt.Errorf("%w: empty receiver", ErrInvalidParam)
			}
			if op.state.Variant.SingleReceiver && u.Receiver != op.state.Peer {
				return fmt.Errorf("%w: %s is not the bound peer", ErrReceiverNotAllowed, u.Receiver)
			}
			if err := op.settle(u.Receiver, nil); err != nil {
				return err
			}
			if _, err := op.tx.SetWeight(u.Receiver, u.Weight); err != nil {
				return err
			}
		}
		return nil
	})
}

// Claim settles receiver and pays it. Under ClaimByReceiver only the
// receiver may call; under ClaimByAnyone any caller may, and the payout
// still goes to the receiver. The hook is passed through to the payout.
func (c *Controller) Claim(env Env, receiver identity.Address, hook []byte) (*Response, error) {
	return c.run(env, "claim", false, func(op *operation) error {
		if receiver.IsZero() {
			return fmt.Errorf("%w: empty receiver", ErrInvalidParam)
		}
		if op.state.Variant.ClaimPolicy == ClaimByReceiver && env.Caller != receiver {
			return fmt.Errorf("%w: %s may not claim for %s", ErrUnauthorized, env.Caller, receiver)
		}
		return op.settle(receiver, hook)
	})
}

// UpdateAllocation pushes settlement to each receiver. Any caller may push;
// payouts always go to the receivers.
func (c *Controller) UpdateAllocation(env Env, receivers []identity.Address, hook []byte) (*Response, error) {
	return c.run(env, "update_allocation", false, func(op *operation) error {
		for _, r := range receivers {
			if r.IsZero() {
				return fmt.Errorf("%w: empty receiver", ErrInvalidParam)
			}
			if err := op.settle(r, hook); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetSchedule replaces the schedule after sorting it. No receiver is
// settled: unsettled intervals are later integrated over the new schedule.
// Admin only.
func (c *Controller) SetSchedule(env Env, units []schedule.Unit) (*Response, error) {
	return c.run(env, "set_schedule", false, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		sched, err := schedule.New(units)
		if err != nil {
			return err
		}
		op.state.Schedule = sched
		op.dirty = true
		return nil
	})
}

// ChangeAdmin hands admin rights to newAdmin. Admin only.
func (c *Controller) ChangeAdmin(env Env, newAdmin identity.Address) (*Response, error) {
	return c.run(env, "change_admin", false, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		if newAdmin.IsZero() {
			return fmt.Errorf("%w: empty admin", ErrInvalidParam)
		}
		op.state.Admin = newAdmin
		op.dirty = true
		return nil
	})
}

// Stop sets the circuit breaker. Admin only.
func (c *Controller) Stop(env Env) (*Response, error) {
	return c.run(env, "stop", false, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		op.state.Stopped = true
		op.dirty = true
		return nil
	})
}

// Resume clears the circuit breaker. It is the only operation accepted while
// stopped. Admin only.
func (c *Controller) Resume(env Env) (*Response, error) {
	return c.run(env, "resume", true, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		op.state.Stopped = false
		op.dirty = true
		return nil
	})
}

// BindPeer fixes the receivable peer contract. Only the first binding
// succeeds. Admin only.
func (c *Controller) BindPeer(env Env, peer identity.Address) (*Response, error) {
	return c.run(env, "bind_peer", false, func(op *operation) error {
		if err := op.requireAdmin(); err != nil {
			return err
		}
		if peer.IsZero() {
			return fmt.Errorf("%w: empty peer", ErrInvalidParam)
		}
		if !op.state.Peer.IsZero() {
			return fmt.Errorf("%w: %s", ErrAlreadyBound, op.state.Peer)
		}
		op.state.Peer = peer
		op.dirty = true
		return nil
	})
}

// SetViewingKey stores the caller's chosen viewing key.
func (c *Controller) SetViewingKey(env Env, key string) (*Response, error) {
	return c.run(env, "set_viewing_key", false, func(op *operation) error {
		if err := viewkey.Validate(key); err != nil {
			return err
		}
		op.state.ViewingKeys[env.Caller] = viewkey.Hash(key)
		op.dirty = true
		return nil
	})
}

// CreateViewingKey derives a viewing key for the caller from the contract
// seed and entropy, stores its hash and returns the key.
func (c *Controller) CreateViewingKey(env Env, entropy []byte) (*Response, error) {
	return c.run(env, "create_viewing_key", false, func(op *operation) error {
		salt := append([]byte(env.Caller.String()+":"), entropy...)
		key, err := viewkey.Derive(op.state.Seed, salt)
		if err != nil {
			return err
		}
		op.state.ViewingKeys[env.Caller] = viewkey.Hash(key)
		op.dirty = true
		op.resp.ViewingKey = key
		return nil
	})
}
