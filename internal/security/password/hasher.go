// Package password hashes and verifies account passwords.
package password

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	// ErrMalformedHash means the stored value was not produced by a known hasher
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrPasswordTooLong is returned for plaintext bcrypt cannot hash
	ErrPasswordTooLong = errors.New("password too long")
)

// Algorithm names a hashing scheme
type Algorithm string

// Supported algorithms
const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Hasher turns plaintext passwords into storable hashes and checks candidates against them.
// Verify returns (false, nil) on mismatch and ErrMalformedHash only for values it cannot parse.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// Manager hashes with the configured algorithm and verifies hashes of every supported
// algorithm, so changing PASSWORD_ALGORITHM does not lock out existing accounts.
type Manager struct {
	primary Algorithm
	bcrypt  *BcryptHasher
	argon2  *Argon2idHasher

	dummy string
}

// Ensure Manager implements Hasher
var _ Hasher = (*Manager)(nil)

// New creates a Manager from config
func New(cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		primary: cfg.Algorithm,
		bcrypt:  NewBcrypt(cfg.BcryptCost),
		argon2:  NewArgon2id(cfg.Argon2),
	}

	// Verified against when a login names an unknown account so both paths cost the same.
	dummy, err := m.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	m.dummy = dummy

	return m, nil
}

// Algorithm returns the algorithm new hashes are produced with
func (m *Manager) Algorithm() Algorithm {
	return m.primary
}

// Hash hashes plaintext with the primary algorithm
func (m *Manager) Hash(plaintext string) (string, error) {
	if m.primary == AlgorithmArgon2id {
		return m.argon2.Hash(plaintext)
	}
	return m.bcrypt.Hash(plaintext)
}

// Verify checks plaintext against a hash of any supported algorithm
func (m *Manager) Verify(plaintext, hash string) (bool, error) {
	switch algorithmOf(hash) {
	case AlgorithmBcrypt:
		return m.bcrypt.Verify(plaintext, hash)
	case AlgorithmArgon2id:
		return m.argon2.Verify(plaintext, hash)
	default:
		return false, ErrMalformedHash
	}
}

// VerifyDummy burns the same work as a real verification and always fails
func (m *Manager) VerifyDummy(plaintext string) {
	_, _ = m.Verify(plaintext, m.dummy)
}

// NeedsRehash reports whether hash was produced by a different algorithm or cost
// than the one currently configured
func (m *Manager) NeedsRehash(hash string) bool {
	algo := algorithmOf(hash)
	if algo != m.primary {
		return true
	}
	switch algo {
	case AlgorithmBcrypt:
		return m.bcrypt.needsRehash(hash)
	case AlgorithmArgon2id:
		return m.argon2.needsRehash(hash)
	}
	return false
}

func algorithmOf(hash string) Algorithm {
	switch {
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return AlgorithmBcrypt
	case strings.HasPrefix(hash, "$argon2id$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}
