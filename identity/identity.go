// Package identity manages the node's persistent cryptographic
// identity: a 32-byte ed25519 seed stored at a well-known path, from
// which the public node id is derived deterministically.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mr-tron/base58"
)

// KeySize is the exact size of a persisted secret key in bytes.
const KeySize = 32

// ErrCorruptKeyFile is returned when the key file exists but cannot be
// used: wrong length or unreadable. The node must not start over a
// corrupt identity; regenerating silently would discard the identity's
// peer reachability.
var ErrCorruptKeyFile = errors.New("corrupt identity key file")

// SecretKey is an ed25519 seed. It never leaves the process except as
// raw bytes in the key file.
type SecretKey [KeySize]byte

func (k SecretKey) String() string   { return "SecretKey{REDACTED}" }
func (k SecretKey) GoString() string { return "identity.SecretKey{REDACTED}" }

// Public derives the node's public identity. The derivation is
// deterministic: the same seed always yields the same public key.
func (k SecretKey) Public() PublicKey {
	priv := ed25519.NewKeyFromSeed(k[:])
	var pub PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return pub
}

// Private expands the seed into a full ed25519 private key, used for
// the node's transport certificate.
func (k SecretKey) Private() ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(k[:])
}

// PublicKey is the node's public identity, safe to share.
type PublicKey [ed25519.PublicKeySize]byte

// String renders the public key as base58, the node id form used in
// tickets and HTTP responses.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// ParsePublicKey decodes a base58 node id back into a public key.
func ParsePublicKey(s string) (PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("parse public key: got %d bytes, want %d", len(raw), ed25519.PublicKeySize)
	}
	var p PublicKey
	copy(p[:], raw)
	return p, nil
}

// LoadOrCreate reads the secret key at path, or generates and persists
// a new one if no file exists. An existing file of any length other
// than KeySize fails with ErrCorruptKeyFile; the file is never
// overwritten once valid.
func LoadOrCreate(path string) (SecretKey, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config
	if err == nil {
		if len(data) != KeySize {
			return SecretKey{}, fmt.Errorf("identity file %s: %w: %d bytes, want %d", path, ErrCorruptKeyFile, len(data), KeySize)
		}
		var k SecretKey
		copy(k[:], data)
		return k, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return SecretKey{}, fmt.Errorf("identity file %s: %w: %w", path, ErrCorruptKeyFile, err)
	}

	var k SecretKey
	if _, err := rand.Read(k[:]); err != nil {
		return SecretKey{}, fmt.Errorf("generate identity: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return SecretKey{}, fmt.Errorf("create identity dir %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(path, k[:], 0o600); err != nil {
		return SecretKey{}, fmt.Errorf("write identity file %s: %w", path, err)
	}

	return k, nil
}
