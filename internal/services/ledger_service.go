package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

// LedgerService owns the append-only transaction log and the single code
// path that moves points. Every balance change goes through apply, inside
// the caller's database transaction, so no reader can observe a ledger entry
// without its balance effect or the other way around.
type LedgerService struct {
	db  *gorm.DB
	clk clock.Clock
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(db *gorm.DB, clk clock.Clock) *LedgerService {
	return &LedgerService{db: db, clk: clk}
}

// apply mutates a locked account row by delta and appends the matching
// ledger entry. TotalEarned only ever grows: it accumulates positive deltas.
// The account struct is updated in place so callers see the new balance.
func (s *LedgerService) apply(tx *gorm.DB, account *models.Account, delta decimal.Decimal, category, description, reference string) (*models.Transaction, error) {
	account.Balance = account.Balance.Add(delta)
	updates := map[string]interface{}{
		"balance": account.Balance,
	}
	if delta.IsPositive() {
		account.TotalEarned = account.TotalEarned.Add(delta)
		updates["total_earned"] = account.TotalEarned
	}

	if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	// Entry timestamps come from the injected clock so cooldown windows
	// and ledger ranges share one time source.
	entry := &models.Transaction{
		AccountID:   account.ID,
		Amount:      delta,
		Category:    category,
		Description: description,
		Reference:   reference,
		CreatedAt:   s.clk.Now().UTC(),
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	logging.L().Debug("ledger entry appended",
		zap.Uint("account_id", account.ID),
		zap.String("category", category),
		zap.String("amount", delta.String()),
	)
	return entry, nil
}

// History returns a reverse-chronological page of an account's ledger.
func (s *LedgerService) History(ctx context.Context, accountID uint, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var entries []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

// SumInRange returns the sum of all amounts for an account within [from, to).
func (s *LedgerService) SumInRange(ctx context.Context, accountID uint, from, to time.Time) (decimal.Decimal, error) {
	return s.sum(s.db.WithContext(ctx), accountID, from, to, nil, false)
}

// sumEarned returns the sum of positive amounts within [from, to), optionally
// restricted to a category set. Used by the earning-cap gates inside an open
// transaction.
func (s *LedgerService) sumEarned(tx *gorm.DB, accountID uint, from, to time.Time, categories []string) (decimal.Decimal, error) {
	return s.sum(tx, accountID, from, to, categories, true)
}

func (s *LedgerService) sum(tx *gorm.DB, accountID uint, from, to time.Time, categories []string, positiveOnly bool) (decimal.Decimal, error) {
	q := tx.Model(&models.Transaction{}).
		Where("account_id = ? AND created_at >= ? AND created_at < ?", accountID, from, to)
	if positiveOnly {
		q = q.Where("amount > 0")
	}
	if len(categories) > 0 {
		q = q.Where("category IN ?", categories)
	}

	var total decimal.Decimal
	row := q.Select("COALESCE(SUM(amount), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum transactions: %w", err)
	}
	return total.Round(2), nil
}

// Count returns the number of ledger entries created within [from, to).
func (s *LedgerService) Count(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return n, nil
}
