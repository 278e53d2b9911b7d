package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction categories. Every balance mutation carries exactly one.
const (
	CategoryJoin        = "join"
	CategoryReferral    = "referral"
	CategoryAdView      = "ad_view"
	CategoryDaily       = "daily"
	CategoryGame        = "game"
	CategoryAI          = "ai"
	CategoryCharge      = "charge"
	CategoryRefund      = "refund"
	CategoryWithdraw    = "withdraw"
	CategoryAdminAdjust = "admin_adjust"
)

// Transaction is an immutable ledger entry recording one balance change.
// Rows are append-only: corrections are new offsetting entries, never edits.
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	AccountID   uint            `gorm:"not null;index" json:"account_id"`
	Account     *Account        `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Category    string          `gorm:"size:20;not null;index" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	Reference   string          `gorm:"size:64;index" json:"reference,omitempty"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for Transaction model
func (Transaction) TableName() string {
	return "transactions"
}
