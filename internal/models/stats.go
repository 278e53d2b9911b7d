package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyStats is a per-calendar-day snapshot of platform totals, written by
// the background snapshot job.
type DailyStats struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Date             string          `gorm:"uniqueIndex;size:10;not null" json:"date"` // YYYY-MM-DD
	TotalAccounts    int64           `gorm:"default:0" json:"total_accounts"`
	NewAccounts      int64           `gorm:"default:0" json:"new_accounts"`
	BannedAccounts   int64           `gorm:"default:0" json:"banned_accounts"`
	PointsInFlight   decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"points_in_flight"`
	TransactionCount int64           `gorm:"default:0" json:"transaction_count"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (DailyStats) TableName() string {
	return "daily_stats"
}

// LeaderboardEntry is a read-model row for the balance leaderboard.
type LeaderboardEntry struct {
	AccountID     uint            `json:"account_id"`
	ExternalID    string          `json:"external_id"`
	Username      string          `json:"username"`
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"referral_count"`
}
