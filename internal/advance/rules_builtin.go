package advance

import "github.com/cashbridge/advance-engine/internal/bank"

// Thresholds for the built-in rule set. These mirror underwriting policy
// and change rarely; anything tunable per-node belongs in the graph
// definition instead.
const (
	minMonthlyNetIncome  = 500.0
	paydayWindowDays     = 14
	minAvailableBalance  = 0.0
	maxOverdraftFees30d  = 1
	approvalCooldownDays = 7
)

// DefaultLibrary registers the production rule set.
func DefaultLibrary() *Library {
	l := NewLibrary()
	for name, fn := range map[string]RuleFunc{
		"accountActive":           accountActive,
		"hasInitialPull":          hasInitialPull,
		"hasRecurringIncome":      hasRecurringIncome,
		"incomeAboveFloor":        incomeAboveFloor,
		"paydayWithinWindow":      paydayWithinWindow,
		"sufficientBalanceBuffer": sufficientBalanceBuffer,
		"lowOverdraftRate":        lowOverdraftRate,
		"advanceCooldownElapsed":  advanceCooldownElapsed,
	} {
		if err := l.Register(name, fn); err != nil {
			panic(err)
		}
	}
	return l
}

func accountActive(ec *EvaluationContext) Outcome {
	if !ec.Account.Active {
		return fail("bank account is inactive", map[string]any{"accountId": ec.Account.ID})
	}
	return pass(nil)
}

func hasInitialPull(ec *EvaluationContext) Outcome {
	if ec.Account.InitialPullAt == nil {
		return fail("no initial pull", map[string]any{"accountId": ec.Account.ID})
	}
	return pass(map[string]any{"initialPullAt": ec.Account.InitialPullAt.UTC()})
}

func hasRecurringIncome(ec *EvaluationContext) Outcome {
	if ec.RecurringIncome == nil {
		return fail("no recurring income detected", nil)
	}
	return pass(map[string]any{
		"transactionId": ec.RecurringIncome.TransactionID,
		"cadence":       ec.RecurringIncome.Cadence,
	})
}

func incomeAboveFloor(ec *EvaluationContext) Outcome {
	if ec.RecurringIncome == nil {
		return fail("no recurring income detected", nil)
	}
	if ec.RecurringIncome.MonthlyNet < minMonthlyNetIncome {
		return fail("monthly net income below floor", map[string]any{
			"monthlyNet": ec.RecurringIncome.MonthlyNet,
			"floor":      minMonthlyNetIncome,
		})
	}
	return pass(map[string]any{"monthlyNet": ec.RecurringIncome.MonthlyNet})
}

func paydayWithinWindow(ec *EvaluationContext) Outcome {
	if ec.RecurringIncome == nil {
		return fail("no recurring income detected", nil)
	}
	days := ec.RecurringIncome.NextPayday.Sub(ec.Now).Hours() / 24
	if days < 0 || days > paydayWindowDays {
		return fail("next payday outside window", map[string]any{
			"nextPayday": ec.RecurringIncome.NextPayday,
			"windowDays": paydayWindowDays,
		})
	}
	return pass(map[string]any{"nextPayday": ec.RecurringIncome.NextPayday})
}

func sufficientBalanceBuffer(ec *EvaluationContext) Outcome {
	if ec.Account.AvailableBalance < minAvailableBalance {
		return fail("available balance below buffer", map[string]any{
			"availableBalance": ec.Account.AvailableBalance,
		})
	}
	return pass(map[string]any{"availableBalance": ec.Account.AvailableBalance})
}

func lowOverdraftRate(ec *EvaluationContext) Outcome {
	fees := 0
	cutoff := ec.Now.AddDate(0, 0, -30)
	for _, tx := range ec.Transactions {
		if tx.Category == bank.CategoryOverdraftFee && tx.Date.After(cutoff) {
			fees++
		}
	}
	if fees > maxOverdraftFees30d {
		return fail("too many overdraft fees in the last 30 days", map[string]any{"overdraftFees30d": fees})
	}
	return pass(map[string]any{"overdraftFees30d": fees})
}

func advanceCooldownElapsed(ec *EvaluationContext) Outcome {
	cutoff := ec.Now.AddDate(0, 0, -approvalCooldownDays)
	for _, pr := range ec.History {
		if pr.Approved && pr.Created.After(cutoff) {
			return fail("approved advance within cooldown period", map[string]any{
				"lastApproved": pr.Created,
				"cooldownDays": approvalCooldownDays,
			})
		}
	}
	return pass(nil)
}
