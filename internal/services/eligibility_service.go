package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"points-ledger/internal/clock"
	"points-ledger/internal/config"
	"points-ledger/internal/models"
)

// EligibilityResult is the outcome of a cooldown/limit check.
type EligibilityResult struct {
	Eligible          bool `json:"eligible"`
	RetryAfterSeconds int  `json:"retry_after_seconds"`
	Chargeable        bool `json:"chargeable"`
}

// categoryPolicy is the per-category gate configuration. A category without
// a policy is always eligible.
type categoryPolicy struct {
	Cooldown  time.Duration
	DailyCap  int             // hard daily limit, 0 means unlimited
	FreeDaily int             // free uses per day before the action becomes chargeable
	Fee       decimal.Decimal // charged per use once FreeDaily is exhausted
}

// earnCapCategories are the categories whose positive grants count against
// the daily and weekly earning caps. Join and referral bonuses, refunds and
// admin adjustments are exempt.
var earnCapCategories = []string{
	models.CategoryAdView,
	models.CategoryDaily,
	models.CategoryGame,
}

// EligibilityService enforces the cooldown and count gates for rewarded
// actions. It never mutates balances; counter resets happen inside the same
// locked transaction as the comparison so two concurrent requests cannot
// both observe a stale counter.
type EligibilityService struct {
	db       *gorm.DB
	ledger   *LedgerService
	clk      clock.Clock
	policies map[string]categoryPolicy
	limits   config.LimitsConfig
}

// NewEligibilityService creates a new EligibilityService
func NewEligibilityService(db *gorm.DB, ledger *LedgerService, clk clock.Clock, cfg *config.Config) *EligibilityService {
	policies := make(map[string]categoryPolicy)
	for category, seconds := range cfg.Limits.CooldownSeconds {
		p := policies[category]
		p.Cooldown = time.Duration(seconds) * time.Second
		policies[category] = p
	}
	for category, limit := range cfg.Limits.DailyCap {
		p := policies[category]
		p.DailyCap = limit
		policies[category] = p
	}
	ai := policies[models.CategoryAI]
	ai.FreeDaily = cfg.Limits.AiDailyFree
	ai.Fee = cfg.Points.AiFee
	policies[models.CategoryAI] = ai

	return &EligibilityService{
		db:       db,
		ledger:   ledger,
		clk:      clk,
		policies: policies,
		limits:   cfg.Limits,
	}
}

// Check is the read-only probe behind tryReward: it reports eligibility
// without mutating counters or timestamps.
func (s *EligibilityService) Check(ctx context.Context, account *models.Account, category string) (EligibilityResult, error) {
	if account.Banned {
		return EligibilityResult{}, nil
	}

	policy, ok := s.policies[category]
	if !ok {
		return EligibilityResult{Eligible: true}, nil
	}

	var state models.CategoryState
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND category = ?", account.ID, category).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return EligibilityResult{Eligible: true, Chargeable: false}, nil
	}
	if err != nil {
		return EligibilityResult{}, fmt.Errorf("failed to load category state: %w", err)
	}

	now := s.clk.Now()
	if startOfDay(state.WindowStart).Before(startOfDay(now)) {
		// stale window: the counter would reset on use
		state.Count = 0
	}
	return s.gate(&state, policy, now), nil
}

// evaluate runs the gates inside an open transaction holding the account row
// lock. A stale counter window is reset and persisted here, atomically with
// the comparison. Returns the eligibility outcome together with the state
// row so the issuer can bump it after a successful grant.
func (s *EligibilityService) evaluate(tx *gorm.DB, account *models.Account, category string, now time.Time) (EligibilityResult, *models.CategoryState, error) {
	policy, ok := s.policies[category]
	if !ok {
		return EligibilityResult{Eligible: true}, nil, nil
	}

	state, err := s.loadOrCreateState(tx, account.ID, category, now)
	if err != nil {
		return EligibilityResult{}, nil, err
	}

	// Reset exactly once per boundary crossing, no matter how many
	// boundaries passed while the process was offline.
	if startOfDay(state.WindowStart).Before(startOfDay(now)) {
		state.Count = 0
		state.WindowStart = startOfDay(now)
		if err := tx.Model(&models.CategoryState{}).Where("id = ?", state.ID).
			Updates(map[string]interface{}{
				"count":        0,
				"window_start": state.WindowStart,
			}).Error; err != nil {
			return EligibilityResult{}, nil, fmt.Errorf("failed to reset counter: %w", err)
		}
	}

	return s.gate(state, policy, now), state, nil
}

// gate applies the cooldown gate then the count gate to an up-to-date state.
func (s *EligibilityService) gate(state *models.CategoryState, policy categoryPolicy, now time.Time) EligibilityResult {
	if policy.Cooldown > 0 && state.LastAction != nil {
		elapsed := now.Sub(*state.LastAction)
		if elapsed < policy.Cooldown {
			return EligibilityResult{
				RetryAfterSeconds: ceilSeconds(policy.Cooldown - elapsed),
			}
		}
	}

	if policy.DailyCap > 0 && state.Count >= policy.DailyCap {
		return EligibilityResult{
			RetryAfterSeconds: secondsUntilNextDay(now),
		}
	}

	chargeable := policy.FreeDaily > 0 && state.Count >= policy.FreeDaily
	return EligibilityResult{Eligible: true, Chargeable: chargeable}
}

// checkEarnCaps enforces the daily and weekly earning caps for a positive
// grant in a capped category. Runs inside the issuing transaction.
func (s *EligibilityService) checkEarnCaps(tx *gorm.DB, account *models.Account, category string, amount decimal.Decimal, now time.Time) error {
	capped := false
	for _, c := range earnCapCategories {
		if c == category {
			capped = true
			break
		}
	}
	if !capped || !amount.IsPositive() {
		return nil
	}

	if s.limits.DailyEarnCap.IsPositive() {
		earned, err := s.ledger.sumEarned(tx, account.ID, startOfDay(now), now, earnCapCategories)
		if err != nil {
			return err
		}
		if earned.Add(amount).GreaterThan(s.limits.DailyEarnCap) {
			return &DeniedError{
				Reason:            DenyNotEligible,
				RetryAfterSeconds: secondsUntilNextDay(now),
			}
		}
	}

	if s.limits.WeeklyEarnCap.IsPositive() {
		earned, err := s.ledger.sumEarned(tx, account.ID, startOfISOWeek(now), now, earnCapCategories)
		if err != nil {
			return err
		}
		if earned.Add(amount).GreaterThan(s.limits.WeeklyEarnCap) {
			return &DeniedError{
				Reason:            DenyNotEligible,
				RetryAfterSeconds: secondsUntilNextWeek(now),
			}
		}
	}

	return nil
}

// markUse bumps the counter and last-action timestamp after a granted use.
func (s *EligibilityService) markUse(tx *gorm.DB, state *models.CategoryState, now time.Time) error {
	if state == nil {
		return nil
	}
	state.Count++
	state.LastAction = &now
	if err := tx.Model(&models.CategoryState{}).Where("id = ?", state.ID).
		Updates(map[string]interface{}{
			"count":       state.Count,
			"last_action": now,
		}).Error; err != nil {
		return fmt.Errorf("failed to update category state: %w", err)
	}
	return nil
}

func (s *EligibilityService) loadOrCreateState(tx *gorm.DB, accountID uint, category string, now time.Time) (*models.CategoryState, error) {
	var state models.CategoryState
	err := lockForUpdate(tx).
		Where("account_id = ? AND category = ?", accountID, category).
		First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load category state: %w", err)
	}

	state = models.CategoryState{
		AccountID:   accountID,
		Category:    category,
		WindowStart: startOfDay(now),
	}
	if err := tx.Create(&state).Error; err != nil {
		return nil, fmt.Errorf("failed to create category state: %w", err)
	}
	return &state, nil
}

// startOfDay truncates t to midnight UTC.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfISOWeek truncates t to Monday midnight UTC.
func startOfISOWeek(t time.Time) time.Time {
	day := startOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, 1-weekday)
}

func secondsUntilNextDay(now time.Time) int {
	next := startOfDay(now).AddDate(0, 0, 1)
	return ceilSeconds(next.Sub(now.UTC()))
}

func secondsUntilNextWeek(now time.Time) int {
	next := startOfISOWeek(now).AddDate(0, 0, 7)
	return ceilSeconds(next.Sub(now.UTC()))
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
