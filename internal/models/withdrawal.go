package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal statuses
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
	WithdrawalStatusRejected = "rejected"
)

// Withdrawal represents a request to cash out points. The points are charged
// when the request is created; a rejection refunds them through the ledger.
type Withdrawal struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AccountID   uint            `gorm:"not null;index" json:"account_id"`
	Account     *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Fee         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"fee"`
	Method      string          `gorm:"size:20" json:"method"`
	Details     string          `gorm:"type:text" json:"details"`
	Status      string          `gorm:"size:20;default:pending;index" json:"status"`
	Reference   string          `gorm:"uniqueIndex;size:64;not null" json:"reference"`
	AdminNote   string          `gorm:"type:text" json:"admin_note,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
