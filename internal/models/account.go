package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a user's point-economy identity and balance record
type Account struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ExternalID    string          `gorm:"uniqueIndex;size:64;not null" json:"external_id"`
	Username      string          `gorm:"size:64" json:"username"`
	FirstName     string          `gorm:"size:128" json:"first_name"`
	LastName      string          `gorm:"size:128" json:"last_name"`
	Balance       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	TotalEarned   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"total_earned"`
	ReferralCode  string          `gorm:"uniqueIndex;size:16;not null" json:"referral_code"`
	ReferredByID  *uint           `gorm:"index" json:"referred_by_id,omitempty"`
	ReferredBy    *Account        `gorm:"foreignKey:ReferredByID" json:"referred_by,omitempty"`
	ReferralCount int             `gorm:"default:0" json:"referral_count"`
	Banned        bool            `gorm:"default:false;index" json:"banned"`
	BanReason     string          `gorm:"type:text" json:"ban_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}

// CategoryState tracks per-category reward usage for one account: the daily
// counter with its window start, and the last-action timestamp used by
// cooldown checks. One row per (account, category), created on first use.
type CategoryState struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	AccountID   uint       `gorm:"uniqueIndex:idx_account_category;not null" json:"account_id"`
	Category    string     `gorm:"uniqueIndex:idx_account_category;size:20;not null" json:"category"`
	Count       int        `gorm:"default:0" json:"count"`
	WindowStart time.Time  `json:"window_start"`
	LastAction  *time.Time `json:"last_action,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (CategoryState) TableName() string {
	return "category_states"
}
