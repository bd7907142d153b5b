package bank

import "time"

// Transaction categories the approval rules care about.
const (
	CategoryOverdraftFee = "overdraft_fee"
	CategoryIncome       = "income"
)

// UserProfile is the slice of the user record the approval graph cares about.
type UserProfile struct {
	ID       string    `json:"id"`
	Email    string    `json:"email"`
	JoinedAt time.Time `json:"joinedAt"`
}

// AccountSnapshot is a point-in-time view of a linked bank account.
type AccountSnapshot struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Institution      string     `json:"institution"`
	CurrentBalance   float64    `json:"currentBalance"`
	AvailableBalance float64    `json:"availableBalance"`
	Active           bool       `json:"active"`
	PulledAt         time.Time  `json:"pulledAt"`
	InitialPullAt    *time.Time `json:"initialPullAt"`
}

// Transaction is one bank transaction. Negative amounts are debits.
type Transaction struct {
	ID       string    `json:"id"`
	Amount   float64   `json:"amount"`
	Date     time.Time `json:"date"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Pending  bool      `json:"pending"`
}

// RecurringIncome is the detected recurring-income signal for an account.
type RecurringIncome struct {
	TransactionID string    `json:"transactionId"`
	MonthlyNet    float64   `json:"monthlyNet"`
	Cadence       string    `json:"cadence"`
	NextPayday    time.Time `json:"nextPayday"`
	Confidence    float64   `json:"confidence"`
}
