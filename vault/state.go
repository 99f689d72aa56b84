package vault

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/bitfsorg/libfarm-go/identity"
)

// stateKey is the registry metadata name holding the vault state.
const stateKey = "vault/state"

// State is the persistent state of a vault. Pool value is never stored; it
// is recomputed from the collaborators on every call.
type State struct {
	TotalShares *uint256.Int
	Admin       identity.Address
	FeeBps      uint16
	Stopped     bool

	Self        identity.Address // the vault's own address
	Token       identity.Address // underlying token, staked in Farm
	SharesToken identity.Address
	Farm        identity.Address
}

func (s *State) clone() *State {
	out := *s
	out.TotalShares = s.TotalShares.Clone()
	return &out
}

type stateRecord struct {
	TotalShares []byte
	Admin       string
	FeeBps      uint16
	Stopped     bool
	Self        string
	Token       string
	SharesToken string
	Farm        string
}

func encodeState(s *State) ([]byte, error) {
	rec := stateRecord{
		TotalShares: s.TotalShares.Bytes(),
		Admin:       s.Admin.String(),
		FeeBps:      s.FeeBps,
		Stopped:     s.Stopped,
		Self:        s.Self.String(),
		Token:       s.Token.String(),
		SharesToken: s.SharesToken.String(),
		Farm:        s.Farm.String(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&rec); err != nil {
		return nil, fmt.Errorf("vault: encode state: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeState(data []byte) (*State, error) {
	var rec stateRecord
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("vault: decode state: %w", err)
	}
	if len(rec.TotalShares) > 16 {
		return nil, fmt.Errorf("vault: decode state: total shares is %d bytes", len(rec.TotalShares))
	}
	return &State{
		TotalShares: new(uint256.Int).SetBytes(rec.TotalShares),
		Admin:       identity.Address(rec.Admin),
		FeeBps:      rec.FeeBps,
		Stopped:     rec.Stopped,
		Self:        identity.Address(rec.Self),
		Token:       identity.Address(rec.Token),
		SharesToken: identity.Address(rec.SharesToken),
		Farm:        identity.Address(rec.Farm),
	}, nil
}
