package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/accountsvc/internal/model"
	"github.com/mcoot/accountsvc/internal/testutil"
)

type fakeSource struct {
	stats model.AccountStats
	err   error
}

func (f *fakeSource) Stats(context.Context) (model.AccountStats, error) {
	return f.stats, f.err
}

type recordingSink struct {
	mu    sync.Mutex
	calls []model.AccountStats
}

func (r *recordingSink) SetStats(stats model.AccountStats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, stats)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestStatsJobPublishes(t *testing.T) {
	source := &fakeSource{stats: model.AccountStats{Accounts: 4, ActiveSessions: 2}}
	sink := &recordingSink{}

	NewStatsJob(source, sink, testutil.NopLogger()).Run()

	require.Len(t, sink.calls, 1)
	assert.Equal(t, model.AccountStats{Accounts: 4, ActiveSessions: 2}, sink.calls[0])
}

func TestStatsJobSkipsOnError(t *testing.T) {
	source := &fakeSource{err: errors.New("store down")}
	sink := &recordingSink{}

	NewStatsJob(source, sink, testutil.NopLogger()).Run()

	assert.Empty(t, sink.calls)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(testutil.NopLogger())
	err := s.Add("stats", "not a schedule", NewStatsJob(&fakeSource{}, &recordingSink{}, testutil.NopLogger()))
	assert.Error(t, err)
}

func TestSchedulerRunsJob(t *testing.T) {
	s := NewScheduler(testutil.NopLogger())
	sink := &recordingSink{}
	require.NoError(t, s.Add("stats", "@every 1s", NewStatsJob(&fakeSource{}, sink, testutil.NopLogger())))

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return sink.count() > 0 }, 3*time.Second, 50*time.Millisecond)
}
