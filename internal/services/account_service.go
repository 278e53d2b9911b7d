package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"points-ledger/internal/config"
	"points-ledger/internal/logging"
	"points-ledger/internal/models"
	"points-ledger/internal/utils"
)

// codeGenAttempts bounds referral-code regeneration on uniqueness collisions
// within a single registration attempt.
const codeGenAttempts = 5

// Profile carries the mutable display fields supplied by the identity
// source at registration.
type Profile struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AccountService owns account state. Registration is idempotent per external
// id and commits as one unit with the join bonus and the optional referral
// cascade: an account can never exist without its join transaction.
type AccountService struct {
	db       *gorm.DB
	cfg      *config.Config
	ledger   *LedgerService
	referral *ReferralService
}

// NewAccountService creates a new AccountService
func NewAccountService(db *gorm.DB, cfg *config.Config, ledger *LedgerService, referral *ReferralService) *AccountService {
	return &AccountService{
		db:       db,
		cfg:      cfg,
		ledger:   ledger,
		referral: referral,
	}
}

// Register creates the account for an external id, or updates its profile
// fields if it already exists. The join bonus is granted exactly once, on
// creation. A referral code that resolves to an existing, non-self,
// non-banned account links the new account to its referrer and pays the
// referral bonus; an unknown code is not an error.
func (s *AccountService) Register(ctx context.Context, externalID string, profile Profile, referralCode string) (*models.Account, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("external id is required")
	}
	referralCode = strings.TrimSpace(referralCode)

	var account *models.Account
	err := runInTx(ctx, s.db, func(tx *gorm.DB) error {
		existing, err := lockAccount(tx, externalID)
		if err == nil {
			account = existing
			return s.updateProfile(tx, existing, profile)
		}
		if !errors.Is(err, ErrAccountNotFound) {
			return err
		}

		created, err := s.create(tx, externalID, profile, referralCode)
		if err != nil {
			return err
		}
		account = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *AccountService) create(tx *gorm.DB, externalID string, profile Profile, referralCode string) (*models.Account, error) {
	// Resolve the referrer before the insert. An unknown or banned code
	// simply leaves the account unreferred.
	var referrer *models.Account
	if referralCode != "" {
		var candidate models.Account
		err := lockForUpdate(tx).Where("referral_code = ?", referralCode).First(&candidate).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// not an error: account is created unreferred
		case err != nil:
			return nil, fmt.Errorf("failed to resolve referral code: %w", err)
		case candidate.Banned:
			logging.L().Warn("referral code belongs to banned account",
				zap.String("code", referralCode))
		default:
			referrer = &candidate
		}
	}

	account := &models.Account{
		ExternalID: externalID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Balance:    decimal.Zero,
	}
	if referrer != nil {
		account.ReferredByID = &referrer.ID
	}

	// The unique index on referral_code closes the check-then-act race:
	// a colliding insert fails and is retried with a fresh code.
	var insertErr error
	for attempt := 0; attempt < codeGenAttempts; attempt++ {
		code, err := utils.GenerateReferralCode()
		if err != nil {
			return nil, err
		}
		account.ReferralCode = code
		if insertErr = tx.Create(account).Error; insertErr == nil {
			break
		}
		if !strings.Contains(strings.ToLower(insertErr.Error()), "referral_code") {
			// duplicate external id or another failure: let the
			// transaction runner decide whether to retry
			return nil, fmt.Errorf("failed to create account: %w", insertErr)
		}
	}
	if insertErr != nil {
		return nil, fmt.Errorf("failed to create account: %w", insertErr)
	}

	if _, err := s.ledger.apply(tx, account, s.cfg.Points.JoinBonus, models.CategoryJoin, "welcome bonus", ""); err != nil {
		return nil, err
	}

	if referrer != nil && referrer.ID != account.ID {
		if err := s.referral.applyEdge(tx, referrer, account); err != nil {
			return nil, err
		}
	}

	logging.L().Info("account registered",
		zap.String("external_id", externalID),
		zap.Bool("referred", referrer != nil),
	)
	return account, nil
}

func (s *AccountService) updateProfile(tx *gorm.DB, account *models.Account, profile Profile) error {
	updates := map[string]interface{}{}
	if profile.Username != "" && profile.Username != account.Username {
		updates["username"] = profile.Username
		account.Username = profile.Username
	}
	if profile.FirstName != "" && profile.FirstName != account.FirstName {
		updates["first_name"] = profile.FirstName
		account.FirstName = profile.FirstName
	}
	if profile.LastName != "" && profile.LastName != account.LastName {
		updates["last_name"] = profile.LastName
		account.LastName = profile.LastName
	}
	if len(updates) == 0 {
		return nil
	}
	if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).
		Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// GetAccount retrieves an account by its external id.
func (s *AccountService) GetAccount(ctx context.Context, externalID string) (*models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &account, nil
}

// GetBalance returns the current balance for an account.
func (s *AccountService) GetBalance(ctx context.Context, externalID string) (decimal.Decimal, error) {
	account, err := s.GetAccount(ctx, externalID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// Ban soft-bans an account. Banned accounts keep their history but are never
// eligible for rewards.
func (s *AccountService) Ban(ctx context.Context, externalID, reason string) error {
	return s.setBanned(ctx, externalID, true, reason)
}

// Unban lifts a ban.
func (s *AccountService) Unban(ctx context.Context, externalID string) error {
	return s.setBanned(ctx, externalID, false, "")
}

func (s *AccountService) setBanned(ctx context.Context, externalID string, banned bool, reason string) error {
	return runInTx(ctx, s.db, func(tx *gorm.DB) error {
		account, err := lockAccount(tx, externalID)
		if err != nil {
			return err
		}
		return tx.Model(&models.Account{}).Where("id = ?", account.ID).
			Updates(map[string]interface{}{
				"banned":     banned,
				"ban_reason": reason,
			}).Error
	})
}

// lockAccount loads an account by external id under a row lock, inside an
// open transaction.
func lockAccount(tx *gorm.DB, externalID string) (*models.Account, error) {
	var account models.Account
	err := lockForUpdate(tx).Where("external_id = ?", externalID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock account: %w", err)
	}
	return &account, nil
}
