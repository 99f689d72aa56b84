package registry

import (
	"encoding/binary"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/accrual"
	"github.com/bitfsorg/libfarm-go/amount"
	"github.com/bitfsorg/libfarm-go/identity"
)

// Batch is the full write set of one operation. Stores apply it all or
// nothing.
type Batch struct {
	Receivers map[identity.Address]accrual.Settings

	// WeightAdded and WeightRemoved are the net change to the total weight.
	// Stores apply them to the total current at commit time, so batches
	// that change no weights leave the total alone.
	WeightAdded   uint64
	WeightRemoved uint64

	Meta map[string][]byte
}

// nextTotal returns total adjusted by the batch's weight change.
func (b *Batch) nextTotal(total uint64) (uint64, error) {
	next := new(uint256.Int).Add(uint256.NewInt(total), uint256.NewInt(b.WeightAdded))
	removed := uint256.NewInt(b.WeightRemoved)
	if next.Lt(removed) {
		return 0, fmt.Errorf("%w: total weight %d below removed weight %d", amount.ErrUnderflow, total, b.WeightRemoved)
	}
	next.Sub(next, removed)
	if !next.IsUint64() {
		return 0, fmt.Errorf("%w: total weight %s", amount.ErrOverflow, next.Dec())
	}
	return next.Uint64(), nil
}

// Store persists receiver settings, the running total weight and named
// metadata blobs.
type Store interface {
	// Receiver returns the stored settings for id and whether they exist.
	Receiver(id identity.Address) (accrual.Settings, bool, error)
	// TotalWeight returns the committed total weight.
	TotalWeight() (uint64, error)
	// Meta returns the blob stored under name, or ErrMetaNotFound.
	Meta(name string) ([]byte, error)
	// ForEach visits every stored receiver in key order.
	ForEach(fn func(id identity.Address, s accrual.Settings) error) error
	// Commit atomically applies b.
	Commit(b *Batch) error
}

const settingsSize = 16 // weight(8) + last_update_block(8)

func encodeSettings(s accrual.Settings) []byte {
	buf := make([]byte, settingsSize)
	binary.BigEndian.PutUint64(buf[0:8], s.Weight)
	binary.BigEndian.PutUint64(buf[8:16], s.LastUpdateBlock)
	return buf
}

func decodeSettings(data []byte) (accrual.Settings, error) {
	if len(data) != settingsSize {
		return accrual.Settings{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSettingsData, settingsSize, len(data))
	}
	return accrual.Settings{
		Weight:          binary.BigEndian.Uint64(data[0:8]),
		LastUpdateBlock: binary.BigEndian.Uint64(data[8:16]),
	}, nil
}

// ---------------------------------------------------------------------------
// MemStore implements Store.
// ---------------------------------------------------------------------------

// MemStore is an in-memory Store for tests and embedded hosts.
type MemStore struct {
	mu        sync.RWMutex
	receivers map[identity.Address]accrual.Settings
	total     uint64
	meta      map[string][]byte
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		receivers: make(map[identity.Address]accrual.Settings),
		meta:      make(map[string][]byte),
	}
}

// Receiver implements Store.
func (m *MemStore) Receiver(id identity.Address) (accrual.Settings, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.receivers[id]
	return s, ok, nil
}

// TotalWeight implements Store.
func (m *MemStore) TotalWeight() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

// Meta implements Store.
func (m *MemStore) Meta(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.meta[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMetaNotFound, name)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// ForEach implements Store.
func (m *MemStore) ForEach(fn func(id identity.Address, s accrual.Settings) error) error {
	m.mu.RLock()
	snapshot := maps.Clone(m.receivers)
	m.mu.RUnlock()

	ids := make([]identity.Address, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if err := fn(id, snapshot[id]); err != nil {
			return err
		}
	}
	return nil
}

// Commit implements Store.
func (m *MemStore) Commit(b *Batch) error {
	if b == nil {
		return fmt.Errorf("%w: batch", ErrNilParam)
	}
	for id := range b.Receivers {
		if id.IsZero() {
			return ErrEmptyReceiver
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	total, err := b.nextTotal(m.total)
	if err != nil {
		return err
	}
	for id, s := range b.Receivers {
		m.receivers[id] = s
	}
	for name, data := range b.Meta {
		buf := make([]byte, len(data))
		copy(buf, data)
		m.meta[name] = buf
	}
	m.total = total
	return nil
}
