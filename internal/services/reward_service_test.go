package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"points-ledger/internal/models"
)

func TestAdViewCooldownTimeline(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "100", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// t=0: grant
	res, err := e.rewards.Reward(ctx, "100", models.CategoryAdView, "watched ad")
	if err != nil {
		t.Fatalf("first reward failed: %v", err)
	}
	if !res.Amount.Equal(dec("3.00")) {
		t.Errorf("expected ad reward 3.00, got %s", res.Amount)
	}
	if !res.NewBalance.Equal(dec("4.00")) {
		t.Errorf("expected balance 4.00, got %s", res.NewBalance)
	}

	// t=100: still cooling down, 200s left
	e.clk.Advance(100 * time.Second)

	probe, err := e.rewards.TryReward(ctx, "100", models.CategoryAdView)
	if err != nil {
		t.Fatalf("TryReward failed: %v", err)
	}
	if probe.Eligible {
		t.Error("expected not eligible at t=100")
	}
	if probe.RetryAfterSeconds != 200 {
		t.Errorf("expected retry_after 200, got %d", probe.RetryAfterSeconds)
	}

	_, err = e.rewards.Reward(ctx, "100", models.CategoryAdView, "watched ad")
	denied, ok := AsDenied(err)
	if !ok {
		t.Fatalf("expected denial at t=100, got %v", err)
	}
	if denied.Reason != DenyNotEligible || denied.RetryAfterSeconds != 200 {
		t.Errorf("expected not_eligible retry 200, got %s retry %d", denied.Reason, denied.RetryAfterSeconds)
	}

	// t=301: cooldown elapsed
	e.clk.Advance(201 * time.Second)

	res, err = e.rewards.Reward(ctx, "100", models.CategoryAdView, "watched ad")
	if err != nil {
		t.Fatalf("reward at t=301 failed: %v", err)
	}
	if !res.NewBalance.Equal(dec("7.00")) {
		t.Errorf("expected balance 7.00, got %s", res.NewBalance)
	}
}

func TestDeniedRewardMutatesNothing(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "110", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := e.rewards.Reward(ctx, "110", models.CategoryAdView, ""); err != nil {
		t.Fatalf("reward failed: %v", err)
	}
	account, _ := e.accounts.GetAccount(ctx, "110")

	var before int64
	e.db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&before)

	e.clk.Advance(10 * time.Second)
	if _, err := e.rewards.Reward(ctx, "110", models.CategoryAdView, ""); err == nil {
		t.Fatal("expected denial inside cooldown")
	}

	var after int64
	e.db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&after)
	if after != before {
		t.Errorf("denied reward appended a transaction: %d -> %d", before, after)
	}
	got := reloadAccount(t, e.db, account.ID)
	if !got.Balance.Equal(account.Balance) {
		t.Errorf("denied reward changed balance: %s -> %s", account.Balance, got.Balance)
	}
}

func TestChargeAndRefundScenario(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "120", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !account.Balance.Equal(dec("1.00")) {
		t.Fatalf("expected join bonus 1.00, got %s", account.Balance)
	}

	res, err := e.rewards.Charge(ctx, "120", dec("0.30"), "", "premium feature")
	if err != nil {
		t.Fatalf("Charge failed: %v", err)
	}
	if !res.Amount.Equal(dec("-0.30")) {
		t.Errorf("expected charge amount -0.30, got %s", res.Amount)
	}
	if !res.NewBalance.Equal(dec("0.70")) {
		t.Errorf("expected balance 0.70, got %s", res.NewBalance)
	}

	// Downstream delivery failed: credit it back.
	res, err = e.rewards.Refund(ctx, "120", dec("0.30"), models.CategoryCharge, "")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if !res.NewBalance.Equal(dec("1.00")) {
		t.Errorf("expected balance restored to 1.00, got %s", res.NewBalance)
	}

	var count int64
	e.db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&count)
	if count != 3 {
		t.Errorf("expected join + charge + refund = 3 transactions, got %d", count)
	}

	total, _ := ledgerSum(t, e.db, account.ID)
	got := reloadAccount(t, e.db, account.ID)
	if !got.Balance.Equal(total) {
		t.Errorf("balance %s diverged from ledger sum %s", got.Balance, total)
	}
}

func TestChargeFloor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "130", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, err = e.rewards.Charge(ctx, "130", dec("5.00"), "", "too expensive")
	denied, ok := AsDenied(err)
	if !ok {
		t.Fatalf("expected denial, got %v", err)
	}
	if denied.Reason != DenyInsufficientBalance {
		t.Errorf("expected insufficient_balance, got %s", denied.Reason)
	}
	if !denied.Shortfall.Equal(dec("4.00")) {
		t.Errorf("expected shortfall 4.00, got %s", denied.Shortfall)
	}

	got := reloadAccount(t, e.db, account.ID)
	if !got.Balance.Equal(dec("1.00")) {
		t.Errorf("denied charge changed balance: %s", got.Balance)
	}
	var count int64
	e.db.Model(&models.Transaction{}).Where("account_id = ?", account.ID).Count(&count)
	if count != 1 {
		t.Errorf("denied charge appended a transaction, got %d entries", count)
	}
}

func TestChargeToExactFloor(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "140", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := e.rewards.Charge(ctx, "140", dec("1.00"), "", "spend it all")
	if err != nil {
		t.Fatalf("charge to floor must succeed: %v", err)
	}
	if !res.NewBalance.IsZero() {
		t.Errorf("expected balance 0, got %s", res.NewBalance)
	}
}

func TestConcurrentRewardsGrantOnce(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "150", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = e.rewards.Reward(ctx, "150", models.CategoryAdView, "race")
		}(i)
	}
	wg.Wait()

	granted := 0
	for i, err := range results {
		if err == nil {
			granted++
			continue
		}
		if _, ok := AsDenied(err); !ok {
			t.Errorf("attempt %d: expected denial, got %v", i, err)
		}
	}
	if granted != 1 {
		t.Errorf("expected exactly one grant, got %d", granted)
	}

	account, _ := e.accounts.GetAccount(ctx, "150")
	if !account.Balance.Equal(dec("4.00")) {
		t.Errorf("expected balance 4.00 after one grant, got %s", account.Balance)
	}
	total, _ := ledgerSum(t, e.db, account.ID)
	if !account.Balance.Equal(total) {
		t.Errorf("balance %s diverged from ledger sum %s", account.Balance, total)
	}
}

func TestBannedAccountDenied(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "160", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := e.accounts.Ban(ctx, "160", "fraud"); err != nil {
		t.Fatalf("Ban failed: %v", err)
	}

	probe, err := e.rewards.TryReward(ctx, "160", models.CategoryAdView)
	if err != nil {
		t.Fatalf("TryReward failed: %v", err)
	}
	if probe.Eligible {
		t.Error("banned account must not be eligible")
	}

	if _, err := e.rewards.Reward(ctx, "160", models.CategoryAdView, ""); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("expected ErrAccountBanned, got %v", err)
	}
	if _, err := e.rewards.Charge(ctx, "160", dec("0.10"), "", ""); !errors.Is(err, ErrAccountBanned) {
		t.Errorf("expected ErrAccountBanned on charge, got %v", err)
	}
}

func TestAIFreeQuotaThenCharged(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	account, err := e.accounts.Register(ctx, "170", Profile{}, "")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// Two free uses per day in the test config.
	for i := 0; i < 2; i++ {
		res, err := e.rewards.Reward(ctx, "170", models.CategoryAI, "query")
		if err != nil {
			t.Fatalf("free use %d failed: %v", i, err)
		}
		if res.Chargeable {
			t.Errorf("use %d: expected free", i)
		}
		if !res.Amount.IsZero() {
			t.Errorf("use %d: expected zero amount, got %s", i, res.Amount)
		}
	}

	// Third use is charged the fee.
	res, err := e.rewards.Reward(ctx, "170", models.CategoryAI, "query")
	if err != nil {
		t.Fatalf("charged use failed: %v", err)
	}
	if !res.Chargeable {
		t.Error("expected chargeable past the free quota")
	}
	if !res.Amount.Equal(dec("-0.50")) {
		t.Errorf("expected fee -0.50, got %s", res.Amount)
	}
	if !res.NewBalance.Equal(dec("0.50")) {
		t.Errorf("expected balance 0.50, got %s", res.NewBalance)
	}

	// Fourth drains the balance, fifth is refused at the floor.
	if _, err := e.rewards.Reward(ctx, "170", models.CategoryAI, "query"); err != nil {
		t.Fatalf("fourth use failed: %v", err)
	}
	_, err = e.rewards.Reward(ctx, "170", models.CategoryAI, "query")
	denied, ok := AsDenied(err)
	if !ok || denied.Reason != DenyInsufficientBalance {
		t.Errorf("expected insufficient_balance, got %v", err)
	}

	// Next day the free quota returns.
	e.clk.Advance(24 * time.Hour)
	res, err = e.rewards.Reward(ctx, "170", models.CategoryAI, "query")
	if err != nil {
		t.Fatalf("next-day use failed: %v", err)
	}
	if res.Chargeable {
		t.Error("expected free quota after the day rolled over")
	}

	total, _ := ledgerSum(t, e.db, account.ID)
	got := reloadAccount(t, e.db, account.ID)
	if !got.Balance.Equal(total) {
		t.Errorf("balance %s diverged from ledger sum %s", got.Balance, total)
	}
}

func TestDailyRewardBounds(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "180", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := e.rewards.Reward(ctx, "180", models.CategoryDaily, "daily bonus")
	if err != nil {
		t.Fatalf("daily reward failed: %v", err)
	}
	if res.Amount.LessThan(dec("5")) || res.Amount.GreaterThan(dec("20")) {
		t.Errorf("daily amount %s outside [5, 20]", res.Amount)
	}
	if !res.Amount.Equal(res.Amount.Truncate(0)) {
		t.Errorf("daily amount %s not a whole point", res.Amount)
	}

	// Second claim the same day is refused until the next one.
	_, err = e.rewards.Reward(ctx, "180", models.CategoryDaily, "daily bonus")
	denied, ok := AsDenied(err)
	if !ok || denied.Reason != DenyNotEligible {
		t.Fatalf("expected not_eligible, got %v", err)
	}
	if denied.RetryAfterSeconds <= 0 || denied.RetryAfterSeconds > 86400 {
		t.Errorf("retry_after %d out of range", denied.RetryAfterSeconds)
	}
}

func TestAdminAdjust(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	if _, err := e.accounts.Register(ctx, "190", Profile{}, ""); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	res, err := e.rewards.AdminAdjust(ctx, "190", dec("50.00"), "contest prize")
	if err != nil {
		t.Fatalf("AdminAdjust failed: %v", err)
	}
	if !res.NewBalance.Equal(dec("51.00")) {
		t.Errorf("expected 51.00, got %s", res.NewBalance)
	}

	res, err = e.rewards.AdminAdjust(ctx, "190", dec("-11.00"), "correction")
	if err != nil {
		t.Fatalf("negative AdminAdjust failed: %v", err)
	}
	if !res.NewBalance.Equal(dec("40.00")) {
		t.Errorf("expected 40.00, got %s", res.NewBalance)
	}

	if _, err := e.rewards.AdminAdjust(ctx, "190", dec("0"), "noop"); err == nil {
		t.Error("expected zero adjustment to be rejected")
	}
}

func TestRewardUnknownAccount(t *testing.T) {
	e := newEngine(t)

	if _, err := e.rewards.Reward(context.Background(), "nobody", models.CategoryAdView, ""); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}
