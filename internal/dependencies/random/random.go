package random

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Random produces identifiers that can be mocked for testing
type Random interface {
	// ID returns a new lexicographically sortable identifier stamped with t
	ID(t time.Time) string
}

// CryptoRandom implements Random using ULIDs with entropy from crypto/rand
type CryptoRandom struct {
	mu      sync.Mutex
	entropy io.Reader
}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// ID returns a ULID for the given time
func (r *CryptoRandom) ID(t time.Time) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(t), r.entropy)
	if err != nil {
		// Monotonic entropy only fails on overflow within one millisecond
		return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
	}
	return id.String()
}
