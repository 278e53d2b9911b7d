package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"points-ledger/internal/logging"
	"points-ledger/internal/services"
)

// StatsSnapshotter periodically writes the daily platform stats row.
type StatsSnapshotter struct {
	stats    *services.StatsService
	interval time.Duration
	stopChan chan struct{}
}

// NewStatsSnapshotter creates a new stats snapshot job
func NewStatsSnapshotter(stats *services.StatsService, interval time.Duration) *StatsSnapshotter {
	return &StatsSnapshotter{
		stats:    stats,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the snapshot loop
func (ss *StatsSnapshotter) Start() {
	logging.L().Info("starting stats snapshot job", zap.Duration("interval", ss.interval))

	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.snapshot()
		case <-ss.stopChan:
			logging.L().Info("stopping stats snapshot job")
			return
		}
	}
}

// Stop stops the snapshot loop
func (ss *StatsSnapshotter) Stop() {
	close(ss.stopChan)
}

func (ss *StatsSnapshotter) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snapshot, err := ss.stats.SnapshotDaily(ctx)
	if err != nil {
		logging.L().Error("stats snapshot failed", zap.Error(err))
		return
	}
	logging.L().Info("stats snapshot written",
		zap.String("date", snapshot.Date),
		zap.Int64("accounts", snapshot.TotalAccounts),
	)
}
