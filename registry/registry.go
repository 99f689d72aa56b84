// Package registry tracks receiver weights and settlement blocks.
//
// The running total weight is maintained incrementally: a batch of weight
// changes accumulates the sum of old weights and the sum of new weights, and
// the total is adjusted once when the batch commits. Receivers are never
// enumerated to recompute it.
package registry

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/accrual"
	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
)

// Registry reads and writes receiver settings through a Store.
type Registry struct {
	store Store
}

// New wraps store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// Store returns the underlying store.
func (r *Registry) Store() Store { return r.store }

// TotalWeight returns the committed total weight.
func (r *Registry) TotalWeight() (uint64, error) {
	return r.store.TotalWeight()
}

// Settings returns the committed settings for id. Unknown receivers report
// zero weight and found == false; nothing is created.
func (r *Registry) Settings(id identity.Address) (accrual.Settings, bool, error) {
	return r.store.Receiver(id)
}

// Meta returns a committed metadata blob.
func (r *Registry) Meta(name string) ([]byte, error) {
	return r.store.Meta(name)
}

// Audit scans all receivers and checks that their weights sum to the stored
// total. It is a diagnostic; the hot path never scans.
func (r *Registry) Audit() error {
	sum := new(uint256.Int)
	err := r.store.ForEach(func(_ identity.Address, s accrual.Settings) error {
		sum.Add(sum, uint256.NewInt(s.Weight))
		return nil
	})
	if err != nil {
		return fmt.Errorf("registry: audit: %w", err)
	}
	total, err := r.store.TotalWeight()
	if err != nil {
		return fmt.Errorf("registry: audit: %w", err)
	}
	if !sum.Eq(uint256.NewInt(total)) {
		return fmt.Errorf("%w: stored %d, sum %s", ErrTotalMismatch, total, sum.Dec())
	}
	return nil
}

// Begin starts a write set at block. Reads see the committed state plus the
// write set; nothing reaches the store until Commit.
func (r *Registry) Begin(block uint64) (*Tx, error) {
	total, err := r.store.TotalWeight()
	if err != nil {
		return nil, fmt.Errorf("registry: begin: %w", err)
	}
	return &Tx{
		store:  r.store,
		block:  block,
		total:  total,
		dirty:  make(map[identity.Address]accrual.Settings),
		meta:   make(map[string][]byte),
		sumOld: new(uint256.Int),
		sumNew: new(uint256.Int),
	}, nil
}

// Tx is the write set of one operation.
type Tx struct {
	store  Store
	block  uint64
	total  uint64
	dirty  map[identity.Address]accrual.Settings
	meta   map[string][]byte
	sumOld *uint256.Int
	sumNew *uint256.Int
	closed bool
}

// Block returns the block the write set was opened at.
func (tx *Tx) Block() uint64 { return tx.block }

// TotalWeight returns the total weight in force for this operation. Weight
// changes staged with SetWeight do not affect it until Commit.
func (tx *Tx) TotalWeight() uint64 { return tx.total }

// Get returns the settings for id. A receiver seen for the first time gets
// weight 0 and LastUpdateBlock equal to the current block; it is only
// persisted if later written.
func (tx *Tx) Get(id identity.Address) (accrual.Settings, error) {
	if tx.closed {
		return accrual.Settings{}, ErrTxClosed
	}
	if s, ok := tx.dirty[id]; ok {
		return s, nil
	}
	s, found, err := tx.store.Receiver(id)
	if err != nil {
		return accrual.Settings{}, fmt.Errorf("registry: get %q: %w", id, err)
	}
	if !found {
		return accrual.Settings{Weight: 0, LastUpdateBlock: tx.block}, nil
	}
	return s, nil
}

// MarkSettled records that id was settled at the current block.
func (tx *Tx) MarkSettled(id identity.Address) error {
	s, err := tx.Get(id)
	if err != nil {
		return err
	}
	s.LastUpdateBlock = tx.block
	tx.dirty[id] = s
	return nil
}

// SetWeight stages a new weight for id and resets its settlement block to
// the current block. The caller must settle id under its old weight first.
// It returns the weight that was replaced.
func (tx *Tx) SetWeight(id identity.Address, weight uint64) (uint64, error) {
	if id.IsZero() {
		return 0, ErrEmptyReceiver
	}
	s, err := tx.Get(id)
	if err != nil {
		return 0, err
	}
	old := s.Weight
	tx.dirty[id] = accrual.Settings{Weight: weight, LastUpdateBlock: tx.block}
	tx.sumOld.Add(tx.sumOld, uint256.NewInt(old))
	tx.sumNew.Add(tx.sumNew, uint256.NewInt(weight))
	return old, nil
}

// PutMeta stages a metadata blob.
func (tx *Tx) PutMeta(name string, data []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	tx.meta[name] = buf
	return nil
}

// PendingTotal returns total - Σold + Σnew for the staged weight changes,
// against the total read at Begin. It fails with amount.ErrOverflow if the
// result does not fit in 64 bits.
func (tx *Tx) PendingTotal() (uint64, error) {
	next := new(uint256.Int).Add(uint256.NewInt(tx.total), tx.sumNew)
	if next.Lt(tx.sumOld) {
		return 0, fmt.Errorf("%w: total weight %d below removed weight %s", amount.ErrUnderflow, tx.total, tx.sumOld.Dec())
	}
	next.Sub(next, tx.sumOld)
	if !next.IsUint64() {
		return 0, fmt.Errorf("%w: total weight %s", amount.ErrOverflow, next.Dec())
	}
	return next.Uint64(), nil
}

// Commit applies the write set and the single total-weight adjustment. The
// adjustment is the net Σnew - Σold, applied by the store to its current
// total, so a concurrent commit from another component sharing the store is
// never overwritten.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	b := &Batch{Receivers: tx.dirty, Meta: tx.meta}
	if tx.sumNew.Lt(tx.sumOld) {
		removed := new(uint256.Int).Sub(tx.sumOld, tx.sumNew)
		if !removed.IsUint64() {
			return fmt.Errorf("registry: commit: %w: removed weight %s", amount.ErrUnderflow, removed.Dec())
		}
		b.WeightRemoved = removed.Uint64()
	} else {
		added := new(uint256.Int).Sub(tx.sumNew, tx.sumOld)
		if !added.IsUint64() {
			return fmt.Errorf("registry: commit: %w: added weight %s", amount.ErrOverflow, added.Dec())
		}
		b.WeightAdded = added.Uint64()
	}
	if err := tx.store.Commit(b); err != nil {
		return fmt.Errorf("registry: commit: %w", err)
	}
	tx.closed = true
	return nil
}

// Discard drops the write set.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.dirty = nil
	tx.meta = nil
}
