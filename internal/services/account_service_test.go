package services

import (
	"context"
	"errors"
	"testing"

	"points-ledger/internal/models"
	"points-ledger/internal/utils"
)

func TestRegisterGrantsJoinBonusOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "1001", Profile{Username: "alice"}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !account.Balance.Equal(dec("1.00")) {
		t.Errorf("expected join bonus balance 1.00, got %s", account.Balance)
	}
	if len(account.ReferralCode) != utils.ReferralCodeLength {
		t.Errorf("expected %d-char referral code, got %q", utils.ReferralCodeLength, account.ReferralCode)
	}

	// Repeat registration updates the profile but never re-grants the bonus.
	again, err := e.accounts.Register(ctx, "1001", Profile{Username: "alice2"}, "")
	if err != nil {
		t.Fatalf("repeat Register failed: %v", err)
	}
	if again.ID != account.ID {
		t.Fatalf("expected same account, got %d and %d", account.ID, again.ID)
	}
	if again.Username != "alice2" {
		t.Errorf("expected profile update, got username %q", again.Username)
	}
	if !again.Balance.Equal(dec("1.00")) {
		t.Errorf("expected balance unchanged at 1.00, got %s", again.Balance)
	}
	if again.ReferralCode != account.ReferralCode {
		t.Errorf("referral code changed across registrations: %q vs %q", account.ReferralCode, again.ReferralCode)
	}

	var joins int64
	e.db.Model(&models.Transaction{}).
		Where("account_id = ? AND category = ?", account.ID, models.CategoryJoin).
		Count(&joins)
	if joins != 1 {
		t.Errorf("expected exactly one join transaction, got %d", joins)
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	referrer, err := e.accounts.Register(ctx, "2001", Profile{Username: "ref"}, "")
	if err != nil {
		t.Fatalf("Register referrer failed: %v", err)
	}

	referred, err := e.accounts.Register(ctx, "2002", Profile{Username: "new"}, referrer.ReferralCode)
	if err != nil {
		t.Fatalf("Register referred failed: %v", err)
	}

	if !referred.Balance.Equal(dec("1.00")) {
		t.Errorf("referred: expected join bonus 1.00, got %s", referred.Balance)
	}
	if referred.ReferredByID == nil || *referred.ReferredByID != referrer.ID {
		t.Errorf("referred: expected referred_by %d, got %v", referrer.ID, referred.ReferredByID)
	}

	r := reloadAccount(t, e.db, referrer.ID)
	if !r.Balance.Equal(dec("2.00")) {
		t.Errorf("referrer: expected 1.00 join + 1.00 referral = 2.00, got %s", r.Balance)
	}
	if r.ReferralCount != 1 {
		t.Errorf("referrer: expected referral count 1, got %d", r.ReferralCount)
	}

	var edge models.ReferralEdge
	if err := e.db.Where("referred_id = ?", referred.ID).First(&edge).Error; err != nil {
		t.Fatalf("expected referral edge: %v", err)
	}
	if edge.ReferrerID != referrer.ID {
		t.Errorf("edge referrer: expected %d, got %d", referrer.ID, edge.ReferrerID)
	}
	if !edge.BonusPaid {
		t.Error("expected edge marked bonus_paid")
	}

	stats, err := e.referrals.GetStats(ctx, "2001")
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Code != referrer.ReferralCode {
		t.Errorf("stats code: expected %q, got %q", referrer.ReferralCode, stats.Code)
	}
	if stats.Count != 1 || stats.PaidCount != 1 {
		t.Errorf("stats: expected count=1 paid=1, got count=%d paid=%d", stats.Count, stats.PaidCount)
	}
}

func TestRegisterWithUnknownCode(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "3001", Profile{}, "NOSUCHCODE")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if account.ReferredByID != nil {
		t.Errorf("expected unreferred account, got referred_by %v", account.ReferredByID)
	}
	if !account.Balance.Equal(dec("1.00")) {
		t.Errorf("expected join bonus despite unknown code, got %s", account.Balance)
	}
}

func TestRegisterWithBannedReferrer(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	referrer, err := e.accounts.Register(ctx, "4001", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := e.accounts.Ban(ctx, "4001", "abuse"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	referred, err := e.accounts.Register(ctx, "4002", Profile{}, referrer.ReferralCode)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if referred.ReferredByID != nil {
		t.Error("expected no referral from banned account")
	}

	r := reloadAccount(t, e.db, referrer.ID)
	if !r.Balance.Equal(dec("1.00")) {
		t.Errorf("banned referrer must not be paid, got balance %s", r.Balance)
	}
}

func TestRepeatRegistrationDoesNotDuplicateEdge(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	referrer, err := e.accounts.Register(ctx, "5001", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := e.accounts.Register(ctx, "5002", Profile{}, referrer.ReferralCode); err != nil {
			t.Fatalf("Register attempt %d failed: %v", i, err)
		}
	}

	var edges int64
	e.db.Model(&models.ReferralEdge{}).Where("referrer_id = ?", referrer.ID).Count(&edges)
	if edges != 1 {
		t.Errorf("expected one edge after retries, got %d", edges)
	}

	r := reloadAccount(t, e.db, referrer.ID)
	if !r.Balance.Equal(dec("2.00")) {
		t.Errorf("expected single referral payout, balance %s", r.Balance)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	e := newEngine(t)

	_, err := e.accounts.GetAccount(context.Background(), "missing")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestBanIsSoft(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "6001", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := e.accounts.Ban(ctx, "6001", "spam"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	got := reloadAccount(t, e.db, account.ID)
	if !got.Banned || got.BanReason != "spam" {
		t.Errorf("expected banned with reason, got banned=%v reason=%q", got.Banned, got.BanReason)
	}
	if !got.Balance.Equal(account.Balance) {
		t.Errorf("ban must not touch balance, got %s", got.Balance)
	}

	if err := e.accounts.Unban(ctx, "6001"); err != nil {
		t.Fatalf("Unban failed: %v", err)
	}
	got = reloadAccount(t, e.db, account.ID)
	if got.Banned {
		t.Error("expected unbanned account")
	}
}

func TestReferralCodesAreUnique(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	seen := map[string]bool{}
	for _, id := range []string{"7001", "7002", "7003", "7004", "7005"} {
		account, err := e.accounts.Register(ctx, id, Profile{}, "")
		if err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
		if seen[account.ReferralCode] {
			t.Fatalf("duplicate referral code %q", account.ReferralCode)
		}
		seen[account.ReferralCode] = true
	}
}
