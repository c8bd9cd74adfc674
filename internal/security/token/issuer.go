// Package token issues opaque session tokens.
package token

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Issuer generates session tokens
type Issuer interface {
	Issue() (string, error)
}

// UUIDIssuer issues UUID v4 tokens drawn from a cryptographically secure source
type UUIDIssuer struct {
	source io.Reader
}

// Ensure UUIDIssuer implements Issuer
var _ Issuer = (*UUIDIssuer)(nil)

// New creates an issuer reading from crypto/rand
func New() *UUIDIssuer {
	return &UUIDIssuer{source: rand.Reader}
}

// NewWithSource creates an issuer reading from the given source (for testing)
func NewWithSource(source io.Reader) *UUIDIssuer {
	return &UUIDIssuer{source: source}
}

// Issue returns a fresh token in UUID textual form
func (i *UUIDIssuer) Issue() (string, error) {
	id, err := uuid.NewRandomFromReader(i.source)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return id.String(), nil
}
