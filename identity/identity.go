// Package identity names the callers, receivers and contracts that take part
// in reward distribution.
//
// Identities are opaque strings inside the engine. At the operator boundary
// they are validated as BSV P2PKH addresses for the configured network.
package identity

import (
	"errors"
	"fmt"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	script "github.com/bsv-blockchain/go-sdk/script"
)

var (
	// ErrInvalidAddress indicates a string that is not a P2PKH address.
	ErrInvalidAddress = errors.New("identity: invalid address")

	// ErrWrongNetwork indicates an address encoded for another network.
	ErrWrongNetwork = errors.New("identity: address belongs to another network")

	// ErrUnknownNetwork indicates an unsupported network name.
	ErrUnknownNetwork = errors.New("identity: unknown network")
)

// Address identifies a receiver, admin, depositor or contract.
type Address string

// IsZero reports whether a is empty.
func (a Address) IsZero() bool { return a == "" }

// String returns the address text.
func (a Address) String() string { return string(a) }

// networks maps supported network names to whether they use mainnet encoding.
var networks = map[string]bool{
	"mainnet":     true,
	"testnet":     false,
	"teratestnet": false,
	"regtest":     false,
}

// IsMainnet reports whether network uses mainnet address encoding.
func IsMainnet(network string) (bool, error) {
	mainnet, ok := networks[network]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownNetwork, network)
	}
	return mainnet, nil
}

// Parse validates s as a P2PKH address on network.
func Parse(s, network string) (Address, error) {
	mainnet, err := IsMainnet(network)
	if err != nil {
		return "", err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	pkh := []byte(addr.PublicKeyHash)
	if len(pkh) != 20 {
		return "", fmt.Errorf("%w: %q: public key hash must be 20 bytes", ErrInvalidAddress, s)
	}

	// Re-encode under the expected network prefix; a mismatch means the
	// version byte belongs to the other network.
	canonical, err := script.NewAddressFromPublicKeyHash(pkh, mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	if canonical.AddressString != s {
		return "", fmt.Errorf("%w: %q is not a %s address", ErrWrongNetwork, s, network)
	}
	return Address(s), nil
}

// FromPublicKey derives the P2PKH address of pub on network.
func FromPublicKey(pub *ec.PublicKey, network string) (Address, error) {
	if pub == nil {
		return "", fmt.Errorf("%w: nil public key", ErrInvalidAddress)
	}
	mainnet, err := IsMainnet(network)
	if err != nil {
		return "", err
	}
	addr, err := script.NewAddressFromPublicKey(pub, mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return Address(addr.AddressString), nil
}

// Generate returns the address of a fresh random key on network. It is used
// to mint contract identities for local harnesses.
func Generate(network string) (Address, error) {
	priv, err := ec.NewPrivateKey()
	if err != nil {
		return "", fmt.Errorf("identity: generate key: %w", err)
	}
	return FromPublicKey(priv.PubKey(), network)
}
