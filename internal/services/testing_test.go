package services

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"points-ledger/internal/config"
	"points-ledger/internal/database"
	"points-ledger/internal/models"
)

// fakeClock is a manually advanced clock for cooldown and window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// A single connection keeps sqlite's single-writer model out of the
	// way; postgres concurrency is exercised by the row-lock code path.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	// Clean all tables
	db.Exec("DELETE FROM transactions")
	db.Exec("DELETE FROM category_states")
	db.Exec("DELETE FROM referral_edges")
	db.Exec("DELETE FROM referral_stats")
	db.Exec("DELETE FROM withdrawals")
	db.Exec("DELETE FROM daily_stats")
	db.Exec("DELETE FROM accounts")

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{JWTSecret: "test-secret"},
		Points: config.PointsConfig{
			JoinBonus:     dec("1.00"),
			ReferralBonus: dec("1.00"),
			AdView:        dec("3.00"),
			DailyMin:      dec("5.00"),
			DailyMax:      dec("20.00"),
			AiFee:         dec("0.50"),
			MinWithdraw:   dec("100.00"),
			WithdrawFee:   dec("1.00"),
			Floor:         dec("0.00"),
		},
		Limits: config.LimitsConfig{
			CooldownSeconds: map[string]int{
				models.CategoryAdView: 300,
				models.CategoryDaily:  86400,
				models.CategoryGame:   60,
			},
			DailyCap: map[string]int{
				models.CategoryAdView: 20,
				models.CategoryGame:   30,
			},
			AiDailyFree:   2,
			DailyEarnCap:  dec("100.00"),
			WeeklyEarnCap: dec("500.00"),
		},
	}
}

// engine bundles the services under test, wired the way cmd/main.go does it.
type engine struct {
	db          *gorm.DB
	clk         *fakeClock
	cfg         *config.Config
	ledger      *LedgerService
	eligibility *EligibilityService
	rewards     *RewardService
	referrals   *ReferralService
	accounts    *AccountService
	withdrawals *WithdrawalService
	stats       *StatsService
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := setupTestDB(t)
	cfg := testConfig()
	clk := newFakeClock(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC))

	ledger := NewLedgerService(db, clk)
	eligibility := NewEligibilityService(db, ledger, clk, cfg)
	rewards := NewRewardService(db, cfg, clk, ledger, eligibility)
	referrals := NewReferralService(db, cfg, ledger)
	accounts := NewAccountService(db, cfg, ledger, referrals)
	withdrawals := NewWithdrawalService(db, cfg, clk, ledger)
	stats := NewStatsService(db, clk, ledger)

	return &engine{
		db:          db,
		clk:         clk,
		cfg:         cfg,
		ledger:      ledger,
		eligibility: eligibility,
		rewards:     rewards,
		referrals:   referrals,
		accounts:    accounts,
		withdrawals: withdrawals,
		stats:       stats,
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ledgerSum recomputes an account's balance from its ledger entries.
func ledgerSum(t *testing.T, db *gorm.DB, accountID uint) (total, earned decimal.Decimal) {
	t.Helper()
	var entries []models.Transaction
	if err := db.Where("account_id = ?", accountID).Find(&entries).Error; err != nil {
		t.Fatalf("failed to load transactions: %v", err)
	}
	total, earned = decimal.Zero, decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Amount)
		if e.Amount.IsPositive() {
			earned = earned.Add(e.Amount)
		}
	}
	return total, earned
}

func reloadAccount(t *testing.T, db *gorm.DB, id uint) *models.Account {
	t.Helper()
	var account models.Account
	if err := db.First(&account, id).Error; err != nil {
		t.Fatalf("failed to reload account: %v", err)
	}
	return &account
}
