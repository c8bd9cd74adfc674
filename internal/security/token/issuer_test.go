package token

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueReturnsUUIDv4(t *testing.T) {
	tok, err := New().Issue()
	require.NoError(t, err)

	parsed, err := uuid.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(4), parsed.Version())
	assert.Equal(t, uuid.RFC4122, parsed.Variant())
}

func TestIssueIsUnique(t *testing.T) {
	issuer := New()
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		tok, err := issuer.Issue()
		require.NoError(t, err)
		_, dup := seen[tok]
		require.False(t, dup, "duplicate token %s", tok)
		seen[tok] = struct{}{}
	}
}

func TestIssueFailsWhenSourceIsExhausted(t *testing.T) {
	issuer := NewWithSource(bytes.NewReader([]byte{1, 2, 3}))
	_, err := issuer.Issue()
	assert.Error(t, err)
}
