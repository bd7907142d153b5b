package advance

import (
	"testing"
	"time"

	"github.com/cashbridge/advance-engine/internal/bank"
)

func healthyContext(now time.Time) *EvaluationContext {
	pulled := now.AddDate(0, -2, 0)
	return &EvaluationContext{
		User: bank.UserProfile{ID: "user-1"},
		Account: bank.AccountSnapshot{
			ID:               "acct-1",
			UserID:           "user-1",
			Active:           true,
			AvailableBalance: 400,
			CurrentBalance:   420,
			InitialPullAt:    &pulled,
		},
		RecurringIncome: &bank.RecurringIncome{
			TransactionID: "rtx-1",
			MonthlyNet:    1200,
			Cadence:       "biweekly",
			NextPayday:    now.AddDate(0, 0, 7),
			Confidence:    0.92,
		},
		Now: now,
	}
}

func TestHasInitialPull_FailsWithoutPull(t *testing.T) {
	now := time.Now().UTC()
	ec := healthyContext(now)
	ec.Account.InitialPullAt = nil

	out := hasInitialPull(ec)
	if out.Success {
		t.Fatalf("expected failure")
	}
	if out.Error != "no initial pull" {
		t.Fatalf("unexpected error: %q", out.Error)
	}
	if out.Data["accountId"] != "acct-1" {
		t.Fatalf("expected account id in data, got %#v", out.Data)
	}
}

func TestPaydayWithinWindow(t *testing.T) {
	now := time.Now().UTC()

	ec := healthyContext(now)
	if out := paydayWithinWindow(ec); !out.Success {
		t.Fatalf("expected pass, got %q", out.Error)
	}

	ec.RecurringIncome.NextPayday = now.AddDate(0, 0, 30)
	if out := paydayWithinWindow(ec); out.Success {
		t.Fatalf("expected failure for distant payday")
	}

	ec.RecurringIncome = nil
	if out := paydayWithinWindow(ec); out.Success {
		t.Fatalf("expected failure without income signal")
	}
}

func TestIncomeAboveFloor(t *testing.T) {
	now := time.Now().UTC()
	ec := healthyContext(now)
	ec.RecurringIncome.MonthlyNet = 300

	out := incomeAboveFloor(ec)
	if out.Success {
		t.Fatalf("expected failure below floor")
	}
	if out.Data["floor"] != minMonthlyNetIncome {
		t.Fatalf("expected floor in data, got %#v", out.Data)
	}
}

func TestLowOverdraftRate_CountsRecentFeesOnly(t *testing.T) {
	now := time.Now().UTC()
	ec := healthyContext(now)
	ec.Transactions = []bank.Transaction{
		{ID: "t1", Amount: -34, Date: now.AddDate(0, 0, -3), Category: bank.CategoryOverdraftFee},
		{ID: "t2", Amount: -34, Date: now.AddDate(0, 0, -5), Category: bank.CategoryOverdraftFee},
		{ID: "t3", Amount: -34, Date: now.AddDate(0, 0, -60), Category: bank.CategoryOverdraftFee},
	}

	out := lowOverdraftRate(ec)
	if out.Success {
		t.Fatalf("expected failure with 2 recent fees")
	}
	if out.Data["overdraftFees30d"] != 2 {
		t.Fatalf("expected 2 recent fees, got %#v", out.Data)
	}
}

func TestAdvanceCooldownElapsed(t *testing.T) {
	now := time.Now().UTC()
	ec := healthyContext(now)
	ec.History = []PriorRun{
		{Approved: false, Created: now.AddDate(0, 0, -1)},
		{Approved: true, Created: now.AddDate(0, 0, -30)},
	}

	if out := advanceCooldownElapsed(ec); !out.Success {
		t.Fatalf("expected pass, got %q", out.Error)
	}

	ec.History = append(ec.History, PriorRun{Approved: true, Created: now.AddDate(0, 0, -2)})
	if out := advanceCooldownElapsed(ec); out.Success {
		t.Fatalf("expected failure within cooldown")
	}
}

func TestDefaultLibrary_RegistersGraphRules(t *testing.T) {
	lib := DefaultLibrary()
	for _, name := range []string{
		"accountActive", "hasInitialPull", "hasRecurringIncome", "incomeAboveFloor",
		"paydayWithinWindow", "sufficientBalanceBuffer", "lowOverdraftRate", "advanceCooldownElapsed",
	} {
		if _, ok := lib.Get(name); !ok {
			t.Fatalf("rule %q not registered", name)
		}
	}
}

func TestLibrary_RejectsDuplicates(t *testing.T) {
	lib := NewLibrary()
	fn := func(*EvaluationContext) Outcome { return pass(nil) }

	if err := lib.Register("dup", fn); err != nil {
		t.Fatal(err)
	}
	if err := lib.Register("dup", fn); err == nil {
		t.Fatalf("expected duplicate error")
	}
}
