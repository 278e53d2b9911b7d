package models

import (
	"time"
)

// ReferralEdge records that one account was brought in by another. At most
// one edge exists per referred account, created at registration time.
type ReferralEdge struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReferrerID uint      `gorm:"not null;index" json:"referrer_id"`
	Referrer   *Account  `gorm:"foreignKey:ReferrerID" json:"referrer,omitempty"`
	ReferredID uint      `gorm:"uniqueIndex;not null" json:"referred_id"`
	Referred   *Account  `gorm:"foreignKey:ReferredID" json:"referred,omitempty"`
	BonusPaid  bool      `gorm:"default:false" json:"bonus_paid"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ReferralEdge) TableName() string {
	return "referral_edges"
}

// ReferralStats holds aggregated referral statistics for a referrer
type ReferralStats struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	AccountID      uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	Account        *Account  `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	TotalReferrals int       `gorm:"default:0" json:"total_referrals"`
	BonusesPaid    int       `gorm:"default:0" json:"bonuses_paid"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ReferralStats) TableName() string {
	return "referral_stats"
}
