// Package viewkey issues and checks viewing keys, the shared secrets that
// authenticate read-only balance and pending-reward queries.
//
// Key derivation:
//
//	key = "api_key_" || base64(HKDF-SHA256(seed, entropy, "farm-viewing-key"))
//
// Only SHA256(key) is ever stored.
package viewkey

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// Prefix marks a string as a viewing key.
	Prefix = "api_key_"

	// HKDFInfo is the info string used in HKDF-SHA256 derivation.
	HKDFInfo = "farm-viewing-key"

	// KeyLen is the length of the derived key material in bytes.
	KeyLen = 32

	// HashLen is the length of a stored key hash.
	HashLen = sha256.Size
)

var (
	// ErrInvalidSeed indicates an empty seed.
	ErrInvalidSeed = errors.New("viewkey: invalid seed")

	// ErrInvalidKey indicates a malformed viewing key.
	ErrInvalidKey = errors.New("viewkey: invalid key")

	// ErrKeyMismatch indicates a key that does not match the stored hash.
	ErrKeyMismatch = errors.New("viewkey: wrong viewing key")
)

// Derive creates a viewing key from a contract seed and caller-supplied
// entropy. The same inputs always produce the same key.
func Derive(seed, entropy []byte) (string, error) {
	if len(seed) == 0 {
		return "", fmt.Errorf("%w: seed is empty", ErrInvalidSeed)
	}
	r := hkdf.New(sha256.New, seed, entropy, []byte(HKDFInfo))
	material := make([]byte, KeyLen)
	if _, err := io.ReadFull(r, material); err != nil {
		return "", fmt.Errorf("viewkey: hkdf: %w", err)
	}
	return Prefix + base64.StdEncoding.EncodeToString(material), nil
}

// Validate checks the key format without checking it against a hash.
func Validate(key string) error {
	if !strings.HasPrefix(key, Prefix) || len(key) == len(Prefix) {
		return fmt.Errorf("%w: missing %q prefix or body", ErrInvalidKey, Prefix)
	}
	return nil
}

// Hash returns SHA256(key).
func Hash(key string) []byte {
	sum := sha256.Sum256([]byte(key))
	return sum[:]
}

// Check compares key against a stored hash in constant time.
func Check(hash []byte, key string) error {
	if len(hash) != HashLen {
		return ErrKeyMismatch
	}
	if subtle.ConstantTimeCompare(hash, Hash(key)) != 1 {
		return ErrKeyMismatch
	}
	return nil
}
