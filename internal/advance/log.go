package advance

import "time"

// NodeExecutionLog records one node's execution within one run. Exactly one
// is written per visited node, in traversal order, before the orchestrator
// moves on.
type NodeExecutionLog struct {
	NodeName         string         `json:"nodeName"`
	Success          bool           `json:"success"`
	SuccessNodeName  string         `json:"successNodeName,omitempty"`
	IsMl             bool           `json:"isMl"`
	IsExperimental   bool           `json:"isExperimental"`
	ApprovalResponse map[string]any `json:"approvalResponse,omitempty"`
}

// RuleExecutionLog records one rule evaluation inside a node execution.
type RuleExecutionLog struct {
	RuleName string         `json:"ruleName"`
	NodeName string         `json:"nodeName"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// NodeRecord pairs a node log with its rule logs and its position in the
// traversal.
type NodeRecord struct {
	Seq   int
	Log   NodeExecutionLog
	Rules []RuleExecutionLog
}

// ApprovalRun summarizes one complete traversal for one user/account.
type ApprovalRun struct {
	ID                     string     `json:"id"`
	UserID                 string     `json:"userId"`
	BankAccountID          string     `json:"bankAccountId"`
	RecurringTransactionID string     `json:"recurringTransactionId,omitempty"`
	Approved               bool       `json:"approved"`
	ApprovedAmounts        []float64  `json:"approvedAmounts"`
	Initiator              string     `json:"initiator"`
	Created                time.Time  `json:"created"`
	DefaultPaybackDate     *time.Time `json:"defaultPaybackDate,omitempty"`
}

// Initiator values accepted on an approval request.
const (
	InitiatorUser  = "user"
	InitiatorAgent = "agent"
)
