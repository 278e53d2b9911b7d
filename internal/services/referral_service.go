package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/config"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

// ReferralStatsResult is the referral summary exposed to collaborators.
type ReferralStatsResult struct {
	Code      string `json:"code"`
	Count     int    `json:"count"`
	PaidCount int    `json:"paid_count"`
}

// ReferralService manages referrer/referred relationships and the bonus paid
// to the direct referrer. Only one cascade level is paid; the edge model
// permits walking further if multi-level payout is added later.
type ReferralService struct {
	db     *gorm.DB
	cfg    *config.Config
	ledger *LedgerService
}

// NewReferralService creates a new ReferralService
func NewReferralService(db *gorm.DB, cfg *config.Config, ledger *LedgerService) *ReferralService {
	return &ReferralService{
		db:     db,
		cfg:    cfg,
		ledger: ledger,
	}
}

// applyEdge records the referral relationship and pays the referrer, inside
// the registration transaction. A second edge for the same referred account
// is a silent no-op, which makes retried registrations safe.
func (s *ReferralService) applyEdge(tx *gorm.DB, referrer, referred *models.Account) error {
	if referrer.ID == referred.ID {
		return nil
	}

	var existing models.ReferralEdge
	err := tx.Where("referred_id = ?", referred.ID).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check referral edge: %w", err)
	}

	edge := models.ReferralEdge{
		ReferrerID: referrer.ID,
		ReferredID: referred.ID,
	}
	if err := tx.Create(&edge).Error; err != nil {
		return fmt.Errorf("failed to create referral edge: %w", err)
	}

	description := fmt.Sprintf("referral bonus for %s", referred.ExternalID)
	if _, err := s.ledger.apply(tx, referrer, s.cfg.Points.ReferralBonus, models.CategoryReferral, description, ""); err != nil {
		return err
	}

	referrer.ReferralCount++
	if err := tx.Model(&models.Account{}).Where("id = ?", referrer.ID).
		Update("referral_count", referrer.ReferralCount).Error; err != nil {
		return fmt.Errorf("failed to update referral count: %w", err)
	}

	if err := tx.Model(&models.ReferralEdge{}).Where("id = ?", edge.ID).
		Update("bonus_paid", true).Error; err != nil {
		return fmt.Errorf("failed to mark edge paid: %w", err)
	}

	if err := s.bumpStats(tx, referrer.ID); err != nil {
		return err
	}

	logging.L().Info("referral bonus paid",
		zap.Uint("referrer_id", referrer.ID),
		zap.Uint("referred_id", referred.ID),
	)
	return nil
}

func (s *ReferralService) bumpStats(tx *gorm.DB, referrerID uint) error {
	var stats models.ReferralStats
	err := tx.Where("account_id = ?", referrerID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = models.ReferralStats{
			AccountID:      referrerID,
			TotalReferrals: 1,
			BonusesPaid:    1,
		}
		if err := tx.Create(&stats).Error; err != nil {
			return fmt.Errorf("failed to create referral stats: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load referral stats: %w", err)
	}

	return tx.Model(&stats).Updates(map[string]interface{}{
		"total_referrals": gorm.Expr("total_referrals + 1"),
		"bonuses_paid":    gorm.Expr("bonuses_paid + 1"),
		"updated_at":      time.Now(),
	}).Error
}

// GetStats returns the referral summary for an account: its code, how many
// accounts it brought in, and how many bonuses were paid out.
func (s *ReferralService) GetStats(ctx context.Context, externalID string) (*ReferralStatsResult, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	result := &ReferralStatsResult{
		Code:  account.ReferralCode,
		Count: account.ReferralCount,
	}

	var stats models.ReferralStats
	err = s.db.WithContext(ctx).Where("account_id = ?", account.ID).First(&stats).Error
	if err == nil {
		result.PaidCount = stats.BonusesPaid
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load referral stats: %w", err)
	}

	return result, nil
}

// ListReferrals returns the accounts referred by the given account.
func (s *ReferralService) ListReferrals(ctx context.Context, externalID string) ([]models.ReferralEdge, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	var edges []models.ReferralEdge
	if err := s.db.WithContext(ctx).
		Where("referrer_id = ?", account.ID).
		Preload("Referred").
		Order("created_at DESC").
		Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return edges, nil
}
