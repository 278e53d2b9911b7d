package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/models"
)

// AccountSummary aggregates an account's standing for display.
type AccountSummary struct {
	Balance      decimal.Decimal `json:"balance"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	EarnedToday  decimal.Decimal `json:"earned_today"`
	EarnedWeek   decimal.Decimal `json:"earned_week"`
	Rank         int64           `json:"rank"`
	ReferralCode string          `json:"referral_code"`
}

// StatsService provides leaderboards, per-account summaries and the daily
// platform snapshot. It only reads consistent snapshots and holds no locks
// that could starve reward issuance.
type StatsService struct {
	db     *gorm.DB
	clk    clock.Clock
	ledger *LedgerService
}

// NewStatsService creates a new StatsService
func NewStatsService(db *gorm.DB, clk clock.Clock, ledger *LedgerService) *StatsService {
	return &StatsService{db: db, clk: clk, ledger: ledger}
}

// TopAccounts returns the highest balances, banned accounts excluded.
func (s *StatsService) TopAccounts(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var entries []models.LeaderboardEntry
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("id AS account_id, external_id, username, balance, referral_count").
		Where("banned = ?", false).
		Order("balance DESC").
		Limit(limit).
		Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

// Summary returns balance, earnings for the current day and ISO week, and
// the account's leaderboard rank.
func (s *StatsService) Summary(ctx context.Context, externalID string) (*AccountSummary, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	now := s.clk.Now()
	today, err := s.ledger.SumInRange(ctx, account.ID, startOfDay(now), now)
	if err != nil {
		return nil, err
	}
	week, err := s.ledger.SumInRange(ctx, account.ID, startOfISOWeek(now), now)
	if err != nil {
		return nil, err
	}

	var ahead int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("banned = ? AND balance > ?", false, account.Balance).
		Count(&ahead).Error; err != nil {
		return nil, fmt.Errorf("failed to compute rank: %w", err)
	}

	return &AccountSummary{
		Balance:      account.Balance,
		TotalEarned:  account.TotalEarned,
		EarnedToday:  today,
		EarnedWeek:   week,
		Rank:         ahead + 1,
		ReferralCode: account.ReferralCode,
	}, nil
}

// SnapshotDaily upserts the platform snapshot row for the current day.
// Called by the background stats job; safe to run repeatedly.
func (s *StatsService) SnapshotDaily(ctx context.Context) (*models.DailyStats, error) {
	now := s.clk.Now()
	day := startOfDay(now)
	date := day.Format("2006-01-02")

	var total, banned, created int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("banned = ?", true).Count(&banned).Error; err != nil {
		return nil, fmt.Errorf("failed to count banned accounts: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("created_at >= ?", day).Count(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to count new accounts: %w", err)
	}

	var inFlight decimal.Decimal
	row := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("COALESCE(SUM(balance), 0)").Row()
	if err := row.Scan(&inFlight); err != nil {
		return nil, fmt.Errorf("failed to sum balances: %w", err)
	}

	txCount, err := s.ledger.Count(ctx, day, now)
	if err != nil {
		return nil, err
	}

	snapshot := models.DailyStats{
		Date:             date,
		TotalAccounts:    total,
		NewAccounts:      created,
		BannedAccounts:   banned,
		PointsInFlight:   inFlight.Round(2),
		TransactionCount: txCount,
	}

	var existing models.DailyStats
	err = s.db.WithContext(ctx).Where("date = ?", date).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
			return nil, fmt.Errorf("failed to create snapshot: %w", err)
		}
		return &snapshot, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	snapshot.ID = existing.ID
	if err := s.db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
		"total_accounts":    snapshot.TotalAccounts,
		"new_accounts":      snapshot.NewAccounts,
		"banned_accounts":   snapshot.BannedAccounts,
		"points_in_flight":  snapshot.PointsInFlight,
		"transaction_count": snapshot.TransactionCount,
	}).Error; err != nil {
		return nil, fmt.Errorf("failed to update snapshot: %w", err)
	}
	return &snapshot, nil
}
