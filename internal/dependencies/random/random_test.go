package random

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDIsULIDStampedWithTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	id, err := ulid.Parse(New().ID(now))
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(now), id.Time())
}

func TestIDsAreSortableWithinSameMillisecond(t *testing.T) {
	r := New()
	now := time.Now()

	prev := r.ID(now)
	for i := 0; i < 100; i++ {
		next := r.ID(now)
		assert.Less(t, prev, next)
		prev = next
	}
}
