package advance

import (
	"time"

	"github.com/cashbridge/advance-engine/internal/bank"
)

// PriorRun is a summary of an earlier approval run for the same user,
// used by history-based rules.
type PriorRun struct {
	Approved    bool
	Amounts     []float64
	Created     time.Time
	PaybackDate *time.Time
}

// EvaluationContext is the immutable snapshot every rule and model reads
// from. It is assembled once per run, before the first node executes, and
// never mutated during traversal.
type EvaluationContext struct {
	User            bank.UserProfile
	Account         bank.AccountSnapshot
	Transactions    []bank.Transaction
	RecurringIncome *bank.RecurringIncome
	History         []PriorRun
	Now             time.Time
}

// Features flattens the context into the variable map consumed by edge
// conditions and sent to the risk model. Keys are stable; conditions in the
// graph definition reference them by name.
func (ec *EvaluationContext) Features() map[string]any {
	monthlyNet := 0.0
	nextPaydayDays := -1
	hasIncome := ec.RecurringIncome != nil
	if hasIncome {
		monthlyNet = ec.RecurringIncome.MonthlyNet
		nextPaydayDays = int(ec.RecurringIncome.NextPayday.Sub(ec.Now).Hours() / 24)
	}

	overdraftFees := 0
	cutoff := ec.Now.AddDate(0, 0, -30)
	for _, tx := range ec.Transactions {
		if tx.Category == bank.CategoryOverdraftFee && tx.Date.After(cutoff) {
			overdraftFees++
		}
	}

	priorApprovals := 0
	daysSinceLastApproval := -1
	for _, pr := range ec.History {
		if !pr.Approved {
			continue
		}
		priorApprovals++
		days := int(ec.Now.Sub(pr.Created).Hours() / 24)
		if daysSinceLastApproval < 0 || days < daysSinceLastApproval {
			daysSinceLastApproval = days
		}
	}

	return map[string]any{
		"accountActive":         ec.Account.Active,
		"availableBalance":      ec.Account.AvailableBalance,
		"currentBalance":        ec.Account.CurrentBalance,
		"hasInitialPull":        ec.Account.InitialPullAt != nil,
		"hasRecurringIncome":    hasIncome,
		"monthlyNetIncome":      monthlyNet,
		"nextPaydayDays":        nextPaydayDays,
		"transactionCount":      len(ec.Transactions),
		"overdraftFees30d":      overdraftFees,
		"priorApprovals":        priorApprovals,
		"daysSinceLastApproval": daysSinceLastApproval,
	}
}
