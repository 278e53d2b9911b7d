package jobs

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

// CounterSweeper resets stale per-category counters in the background.
// Counter resets are also done lazily inside the issuing transaction, so the
// sweep is maintenance only: it keeps rows fresh for read paths and stays in
// short per-batch updates that never starve foreground issuance.
type CounterSweeper struct {
	db       *gorm.DB
	clk      clock.Clock
	interval time.Duration
	stopChan chan struct{}
}

// NewCounterSweeper creates a new counter sweep job
func NewCounterSweeper(db *gorm.DB, clk clock.Clock, interval time.Duration) *CounterSweeper {
	return &CounterSweeper{
		db:       db,
		clk:      clk,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop
func (cs *CounterSweeper) Start() {
	logging.L().Info("starting counter sweep job", zap.Duration("interval", cs.interval))

	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.sweep()
		case <-cs.stopChan:
			logging.L().Info("stopping counter sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (cs *CounterSweeper) Stop() {
	close(cs.stopChan)
}

func (cs *CounterSweeper) sweep() {
	now := cs.clk.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	result := cs.db.Model(&models.CategoryState{}).
		Where("window_start < ? AND count > 0", today).
		Updates(map[string]interface{}{
			"count":        0,
			"window_start": today,
		})
	if result.Error != nil {
		logging.L().Error("counter sweep failed", zap.Error(result.Error))
		return
	}
	if result.RowsAffected > 0 {
		logging.L().Info("counters reset", zap.Int64("rows", result.RowsAffected))
	}
}
