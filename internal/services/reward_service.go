package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/config"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
)

// IssueResult is the outcome of a granted reward or accepted charge.
type IssueResult struct {
	NewBalance    decimal.Decimal `json:"new_balance"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID uint            `json:"transaction_id,omitempty"`
	Chargeable    bool            `json:"chargeable"`
}

// RewardService orchestrates eligibility check, balance mutation and ledger
// append as one atomic unit per account. All entry points are safe to retry
// end to end: a caller that times out must treat the outcome as unknown and
// call again.
type RewardService struct {
	db          *gorm.DB
	cfg         *config.Config
	clk         clock.Clock
	ledger      *LedgerService
	eligibility *EligibilityService
}

// NewRewardService creates a new RewardService
func NewRewardService(db *gorm.DB, cfg *config.Config, clk clock.Clock, ledger *LedgerService, eligibility *EligibilityService) *RewardService {
	return &RewardService{
		db:          db,
		cfg:         cfg,
		clk:         clk,
		ledger:      ledger,
		eligibility: eligibility,
	}
}

// TryReward reports whether a reward in the category could be granted right
// now, without mutating any state.
func (s *RewardService) TryReward(ctx context.Context, externalID, category string) (EligibilityResult, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if err == gorm.ErrRecordNotFound {
		return EligibilityResult{}, ErrAccountNotFound
	}
	if err != nil {
		return EligibilityResult{}, fmt.Errorf("failed to load account: %w", err)
	}
	return s.eligibility.Check(ctx, &account, category)
}

// Reward grants the engine-defined amount for a category: the configured
// ad-view reward, a random daily bonus, or an AI use (free within quota,
// charged past it).
func (s *RewardService) Reward(ctx context.Context, externalID, category, description string) (*IssueResult, error) {
	var amount decimal.Decimal
	switch category {
	case models.CategoryAdView:
		amount = s.cfg.Points.AdView
	case models.CategoryDaily:
		var err error
		amount, err = s.randomDailyAmount()
		if err != nil {
			return nil, err
		}
	case models.CategoryAI:
		amount = decimal.Zero
	default:
		return nil, fmt.Errorf("category %s has no engine-defined reward amount", category)
	}
	return s.Issue(ctx, externalID, category, amount, description)
}

// Issue applies a signed amount to an account as one atomic unit: load and
// lock, eligibility gates, floor check for charges, balance mutation plus
// ledger append, counter bump. On denial nothing is mutated.
func (s *RewardService) Issue(ctx context.Context, externalID, category string, amount decimal.Decimal, description string) (*IssueResult, error) {
	var result IssueResult

	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		account, err := lockAccount(tx, externalID)
		if err != nil {
			return err
		}
		if account.Banned {
			return ErrAccountBanned
		}

		now := s.clk.Now()

		ev, state, err := s.eligibility.evaluate(tx, account, category, now)
		if err != nil {
			return err
		}
		if !ev.Eligible {
			return &DeniedError{
				Reason:            DenyNotEligible,
				RetryAfterSeconds: ev.RetryAfterSeconds,
			}
		}

		delta := amount
		if ev.Chargeable {
			delta = amount.Sub(s.cfg.Points.AiFee)
		}

		if delta.IsPositive() {
			if err := s.eligibility.checkEarnCaps(tx, account, category, delta, now); err != nil {
				return err
			}
		}

		if delta.IsNegative() {
			next := account.Balance.Add(delta)
			if next.LessThan(s.cfg.Points.Floor) {
				return &DeniedError{
					Reason:    DenyInsufficientBalance,
					Shortfall: s.cfg.Points.Floor.Sub(next),
				}
			}
		}

		if !delta.IsZero() {
			entry, err := s.ledger.apply(tx, account, delta, category, description, "")
			if err != nil {
				return err
			}
			result.TransactionID = entry.ID
		}

		if err := s.eligibility.markUse(tx, state, now); err != nil {
			return err
		}

		result.NewBalance = account.Balance
		result.Amount = delta
		result.Chargeable = ev.Chargeable
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.L().Info("issued",
		zap.String("external_id", externalID),
		zap.String("category", category),
		zap.String("amount", result.Amount.String()),
		zap.String("balance", result.NewBalance.String()),
	)
	return &result, nil
}

// Charge deducts a positive amount from the account, denying the charge when
// it would push the balance below the floor.
func (s *RewardService) Charge(ctx context.Context, externalID string, amount decimal.Decimal, category, description string) (*IssueResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("charge amount must be positive, got %s", amount)
	}
	if category == "" {
		category = models.CategoryCharge
	}
	return s.Issue(ctx, externalID, category, amount.Neg(), description)
}

// Refund credits back a previously charged amount as a new offsetting ledger
// entry. The original entry is never touched.
func (s *RewardService) Refund(ctx context.Context, externalID string, amount decimal.Decimal, originalCategory, description string) (*IssueResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("refund amount must be positive, got %s", amount)
	}
	if description == "" {
		description = fmt.Sprintf("refund for %s", originalCategory)
	}
	return s.Issue(ctx, externalID, models.CategoryRefund, amount, description)
}

// AdminAdjust applies a signed admin correction through the same atomic path
// as every other mutation.
func (s *RewardService) AdminAdjust(ctx context.Context, externalID string, amount decimal.Decimal, reason string) (*IssueResult, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("adjustment amount must not be zero")
	}
	return s.Issue(ctx, externalID, models.CategoryAdminAdjust, amount, reason)
}

// randomDailyAmount picks a whole-point amount uniformly between the
// configured daily minimum and maximum.
func (s *RewardService) randomDailyAmount() (decimal.Decimal, error) {
	min := s.cfg.Points.DailyMin
	max := s.cfg.Points.DailyMax
	span := max.Sub(min).IntPart()
	if span <= 0 {
		return min, nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span+1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to draw daily amount: %w", err)
	}
	return min.Add(decimal.NewFromInt(n.Int64())), nil
}
