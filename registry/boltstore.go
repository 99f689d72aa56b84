package registry

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/libfarm-go/accrual"
	"github.com/bitfsorg/libfarm-go/identity"
)

var (
	bucketReceivers = []byte("receivers")
	bucketTotals    = []byte("totals")
	bucketMeta      = []byte("meta")

	keyTotalWeight = []byte("total_weight")
)

// BoltStore persists the registry in a bbolt database. Each Commit is a
// single bbolt transaction.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("registry: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("registry: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketReceivers, bucketTotals, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("registry: create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// Receiver implements Store.
func (s *BoltStore) Receiver(id identity.Address) (accrual.Settings, bool, error) {
	var (
		settings accrual.Settings
		found    bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketReceivers).Get([]byte(id))
		if data == nil {
			return nil
		}
		decoded, err := decodeSettings(data)
		if err != nil {
			return fmt.Errorf("boltstore: decode receiver %q: %w", id, err)
		}
		settings, found = decoded, true
		return nil
	})
	if err != nil {
		return accrual.Settings{}, false, err
	}
	return settings, found, nil
}

// TotalWeight implements Store.
func (s *BoltStore) TotalWeight() (uint64, error) {
	var total uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		total, err = decodeTotal(tx.Bucket(bucketTotals).Get(keyTotalWeight))
		return err
	})
	return total, err
}

// decodeTotal reads a stored total weight. A missing value is zero.
func decodeTotal(data []byte) (uint64, error) {
	if data == nil {
		return 0, nil
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("boltstore: total weight must be 8 bytes, got %d", len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// Meta implements Store.
func (s *BoltStore) Meta(name string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %q", ErrMetaNotFound, name)
		}
		// bbolt values are only valid for the life of the transaction.
		out = make([]byte, len(data))
		copy(out, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ForEach implements Store.
func (s *BoltStore) ForEach(fn func(id identity.Address, st accrual.Settings) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReceivers).ForEach(func(k, v []byte) error {
			st, err := decodeSettings(v)
			if err != nil {
				return fmt.Errorf("boltstore: decode receiver %q: %w", k, err)
			}
			return fn(identity.Address(k), st)
		})
	})
}

// Commit implements Store.
func (s *BoltStore) Commit(b *Batch) error {
	if b == nil {
		return fmt.Errorf("%w: batch", ErrNilParam)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		tb := tx.Bucket(bucketTotals)
		current, err := decodeTotal(tb.Get(keyTotalWeight))
		if err != nil {
			return err
		}
		next, err := b.nextTotal(current)
		if err != nil {
			return err
		}

		rb := tx.Bucket(bucketReceivers)
		for id, st := range b.Receivers {
			if id.IsZero() {
				return ErrEmptyReceiver
			}
			if err := rb.Put([]byte(id), encodeSettings(st)); err != nil {
				return fmt.Errorf("boltstore: put receiver: %w", err)
			}
		}

		mb := tx.Bucket(bucketMeta)
		for name, data := range b.Meta {
			if err := mb.Put([]byte(name), data); err != nil {
				return fmt.Errorf("boltstore: put meta %q: %w", name, err)
			}
		}

		total := make([]byte, 8)
		binary.BigEndian.PutUint64(total, next)
		if err := tb.Put(keyTotalWeight, total); err != nil {
			return fmt.Errorf("boltstore: put total weight: %w", err)
		}
		return nil
	})
}
