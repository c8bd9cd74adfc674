// Package jobs runs periodic background work on a cron schedule.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/accountsvc/internal/model"
)

// StatsSource reports aggregate account counts
type StatsSource interface {
	Stats(ctx context.Context) (model.AccountStats, error)
}

// StatsSink receives account counts
type StatsSink interface {
	SetStats(stats model.AccountStats)
}

// StatsJob copies store statistics into the metrics gauges
type StatsJob struct {
	source  StatsSource
	sink    StatsSink
	logger  *slog.Logger
	timeout time.Duration
}

// NewStatsJob creates a StatsJob
func NewStatsJob(source StatsSource, sink StatsSink, logger *slog.Logger) *StatsJob {
	return &StatsJob{
		source:  source,
		sink:    sink,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// Run implements cron.Job
func (j *StatsJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stats, err := j.source.Stats(ctx)
	if err != nil {
		j.logger.Warn("stats refresh failed", slog.String("error", err.Error()))
		return
	}
	j.sink.SetStats(stats)
	j.logger.Debug("stats refreshed",
		slog.Int64("accounts", stats.Accounts),
		slog.Int64("active_sessions", stats.ActiveSessions),
	)
}
