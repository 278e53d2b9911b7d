package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/config"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

// ErrWithdrawalNotFound is returned for an unknown withdrawal reference.
var ErrWithdrawalNotFound = errors.New("withdrawal not found")

// WithdrawalService handles cash-out requests. Points are charged when the
// request is created and refunded through the ledger if an admin rejects it.
type WithdrawalService struct {
	db     *gorm.DB
	cfg    *config.Config
	clk    clock.Clock
	ledger *LedgerService
}

// NewWithdrawalService creates a new WithdrawalService
func NewWithdrawalService(db *gorm.DB, cfg *config.Config, clk clock.Clock, ledger *LedgerService) *WithdrawalService {
	return &WithdrawalService{
		db:     db,
		cfg:    cfg,
		clk:    clk,
		ledger: ledger,
	}
}

// Request charges amount plus the withdrawal fee and records a pending
// withdrawal. Below-minimum requests are denied with the missing amount.
func (s *WithdrawalService) Request(ctx context.Context, externalID string, amount decimal.Decimal, method, details string) (*models.Withdrawal, error) {
	if amount.LessThan(s.cfg.Points.MinWithdraw) {
		return nil, &DeniedError{
			Reason:    DenyBelowMinimum,
			Shortfall: s.cfg.Points.MinWithdraw.Sub(amount),
		}
	}

	total := amount.Add(s.cfg.Points.WithdrawFee)
	reference := uuid.NewString()

	var withdrawal *models.Withdrawal
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		account, err := lockAccount(tx, externalID)
		if err != nil {
			return err
		}
		if account.Banned {
			return ErrAccountBanned
		}

		next := account.Balance.Sub(total)
		if next.LessThan(s.cfg.Points.Floor) {
			return &DeniedError{
				Reason:    DenyInsufficientBalance,
				Shortfall: s.cfg.Points.Floor.Sub(next),
			}
		}

		description := fmt.Sprintf("withdrawal %s (%s + %s fee)", reference, amount, s.cfg.Points.WithdrawFee)
		if _, err := s.ledger.apply(tx, account, total.Neg(), models.CategoryWithdraw, description, reference); err != nil {
			return err
		}

		withdrawal = &models.Withdrawal{
			AccountID: account.ID,
			Amount:    amount,
			Fee:       s.cfg.Points.WithdrawFee,
			Method:    method,
			Details:   details,
			Status:    models.WithdrawalStatusPending,
			Reference: reference,
		}
		if err := tx.Create(withdrawal).Error; err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.L().Info("withdrawal requested",
		zap.String("external_id", externalID),
		zap.String("reference", reference),
		zap.String("amount", amount.String()),
	)
	return withdrawal, nil
}

// Approve marks a pending withdrawal as paid out.
func (s *WithdrawalService) Approve(ctx context.Context, reference, note string) error {
	return runInTx(ctx, s.db, func(tx *gorm.DB) error {
		withdrawal, err := s.lockPending(tx, reference)
		if err != nil {
			return err
		}
		now := s.clk.Now()
		return tx.Model(&models.Withdrawal{}).Where("id = ?", withdrawal.ID).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusApproved,
				"admin_note":   note,
				"processed_at": now,
			}).Error
	})
}

// Reject refunds the charged amount plus fee as a new ledger entry and marks
// the withdrawal rejected. The withdraw entry itself is never edited.
func (s *WithdrawalService) Reject(ctx context.Context, reference, note string) error {
	return runInTx(ctx, s.db, func(tx *gorm.DB) error {
		withdrawal, err := s.lockPending(tx, reference)
		if err != nil {
			return err
		}

		var account models.Account
		if err := lockForUpdate(tx).Where("id = ?", withdrawal.AccountID).First(&account).Error; err != nil {
			return fmt.Errorf("failed to lock account: %w", err)
		}

		total := withdrawal.Amount.Add(withdrawal.Fee)
		description := fmt.Sprintf("refund for withdrawal %s", reference)
		if _, err := s.ledger.apply(tx, &account, total, models.CategoryRefund, description, reference); err != nil {
			return err
		}

		now := s.clk.Now()
		return tx.Model(&models.Withdrawal{}).Where("id = ?", withdrawal.ID).
			Updates(map[string]interface{}{
				"status":       models.WithdrawalStatusRejected,
				"admin_note":   note,
				"processed_at": now,
			}).Error
	})
}

func (s *WithdrawalService) lockPending(tx *gorm.DB, reference string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := lockForUpdate(tx).Where("reference = ?", reference).First(&withdrawal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return nil, fmt.Errorf("withdrawal %s already %s", reference, withdrawal.Status)
	}
	return &withdrawal, nil
}

// ListForAccount returns an account's withdrawals, newest first.
func (s *WithdrawalService) ListForAccount(ctx context.Context, externalID string, limit int) ([]models.Withdrawal, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var withdrawals []models.Withdrawal
	if err := s.db.WithContext(ctx).
		Where("account_id = ?", account.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// ListPending returns pending withdrawals for admin review, oldest first.
func (s *WithdrawalService) ListPending(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var withdrawals []models.Withdrawal
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusPending).
		Preload("Account").
		Order("created_at ASC").
		Limit(limit).
		Find(&withdrawals).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	return withdrawals, nil
}
