package distributor

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"maps"

	"github.com/bitfsorg/libfarm-go/identity"
	"github.com/bitfsorg/libfarm-go/schedule"
)

// stateKey is the registry metadata name holding the controller state.
const stateKey = "distributor/state"

// State is the admin-mutable configuration of a distributor.
type State struct {
	Admin       identity.Address
	RewardToken identity.Address
	Schedule    schedule.Schedule
	Variant     Variant
	Stopped     bool
	Peer        identity.Address // one-time binding; empty until bound
	Seed        []byte           // viewing key derivation seed
	ViewingKeys map[identity.Address][]byte
}

func (s *State) clone() *State {
	out := *s
	out.Schedule = s.Schedule.Clone()
	out.Seed = append([]byte(nil), s.Seed...)
	out.ViewingKeys = maps.Clone(s.ViewingKeys)
	if out.ViewingKeys == nil {
		out.ViewingKeys = make(map[identity.Address][]byte)
	}
	return &out
}

// stateRecord is the persisted form of State. The schedule is kept in its
// own fixed-width encoding.
type stateRecord struct {
	Admin       string
	RewardToken string
	Schedule    []byte
	ClaimPolicy uint8
	PayoutMode  uint8
	Notify      bool
	Single      bool
	Stopped     bool
	Peer        string
	Seed        []byte
	ViewingKeys map[string][]byte
}

// encodeState serializes s using gob encoding.
func encodeState(s *State) ([]byte, error) {
	sched, err := schedule.Encode(s.Schedule)
	if err != nil {
		return nil, fmt.Errorf("distributor: encode schedule: %w", err)
	}
	rec := stateRecord{
		Admin:       s.Admin.String(),
		RewardToken: s.RewardToken.String(),
		Schedule:    sched,
		ClaimPolicy: uint8(s.Variant.ClaimPolicy),
		PayoutMode:  uint8(s.Variant.PayoutMode),
		Notify:      s.Variant.NotifyReceivers,
		Single:      s.Variant.SingleReceiver,
		Stopped:     s.Stopped,
		Peer:        s.Peer.String(),
		Seed:        s.Seed,
		ViewingKeys: make(map[string][]byte, len(s.ViewingKeys)),
	}
	for id, h := range s.ViewingKeys {
		rec.ViewingKeys[id.String()] = h
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, fmt.Errorf("distributor: encode state: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeState deserializes gob-encoded state.
func decodeState(data []byte) (*State, error) {
	var rec stateRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("distributor: decode state: %w", err)
	}
	sched, err := schedule.Decode(rec.Schedule)
	if err != nil {
		return nil, fmt.Errorf("distributor: decode schedule: %w", err)
	}
	s := &State{
		Admin:       identity.Address(rec.Admin),
		RewardToken: identity.Address(rec.RewardToken),
		Schedule:    sched,
		Variant: Variant{
			ClaimPolicy:     ClaimPolicy(rec.ClaimPolicy),
			PayoutMode:      PayoutMode(rec.PayoutMode),
			NotifyReceivers: rec.Notify,
			SingleReceiver:  rec.Single,
		},
		Stopped:     rec.Stopped,
		Peer:        identity.Address(rec.Peer),
		Seed:        rec.Seed,
		ViewingKeys: make(map[identity.Address][]byte, len(rec.ViewingKeys)),
	}
	for id, h := range rec.ViewingKeys {
		s.ViewingKeys[identity.Address(id)] = h
	}
	return s, nil
}
