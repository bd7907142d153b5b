// Package advancedto holds the wire shapes shared by the HTTP and lambda
// transports. Run read-back follows the JSON:API layout the dashboard
// consumes: the run resource plus included advance-node-log and
// advance-rule-log resources.
package advancedto

import (
	"fmt"
	"time"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/app"
)

type ApproveRequest struct {
	UserID                 string `json:"userId"`
	BankAccountID          string `json:"bankAccountId"`
	RecurringTransactionID string `json:"recurringTransactionId,omitempty"`
	Initiator              string `json:"initiator,omitempty"`
}

func (r ApproveRequest) ToApp() app.ApproveRequest {
	return app.ApproveRequest{
		UserID:                 r.UserID,
		BankAccountID:          r.BankAccountID,
		RecurringTransactionID: r.RecurringTransactionID,
		Initiator:              r.Initiator,
	}
}

// Resource types.
const (
	TypeApprovalRun = "approval-runs"
	TypeNodeLog     = "advance-node-log"
	TypeRuleLog     = "advance-rule-log"
)

type Document struct {
	Data     Resource   `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    map[string]any          `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship data is a RID, a []RID, or nil.
type Relationship struct {
	Data any `json:"data"`
}

type RID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// RunDocument builds the read-back document for one run. Output is
// deterministic for identical inputs: resources are emitted in traversal
// order and map keys marshal sorted, so repeated reads of the same run
// serialize byte-identically.
func RunDocument(run *advance.ApprovalRun, records []advance.NodeRecord) Document {
	nodeIDs := make([]RID, 0, len(records))
	included := make([]Resource, 0, len(records))

	for i, rec := range records {
		nodeID := fmt.Sprintf("%s-node-%d", run.ID, rec.Seq)
		nodeIDs = append(nodeIDs, RID{Type: TypeNodeLog, ID: nodeID})

		ruleIDs := make([]RID, 0, len(rec.Rules))
		ruleResources := make([]Resource, 0, len(rec.Rules))
		for j, rl := range rec.Rules {
			ruleID := fmt.Sprintf("%s-rule-%d-%d", run.ID, rec.Seq, j)
			ruleIDs = append(ruleIDs, RID{Type: TypeRuleLog, ID: ruleID})
			ruleResources = append(ruleResources, Resource{
				Type: TypeRuleLog,
				ID:   ruleID,
				Attributes: map[string]any{
					"name":    rl.RuleName,
					"success": rl.Success,
					"error":   rl.Error,
					"data":    rl.Data,
				},
			})
		}

		var next any
		if rec.Log.SuccessNodeName != "" && i+1 < len(records) &&
			records[i+1].Log.NodeName == rec.Log.SuccessNodeName {
			next = RID{Type: TypeNodeLog, ID: fmt.Sprintf("%s-node-%d", run.ID, records[i+1].Seq)}
		}

		included = append(included, Resource{
			Type: TypeNodeLog,
			ID:   nodeID,
			Attributes: map[string]any{
				"name":           rec.Log.NodeName,
				"success":        rec.Log.Success,
				"isMl":           rec.Log.IsMl,
				"isExperimental": rec.Log.IsExperimental,
			},
			Relationships: map[string]Relationship{
				"nextNodeLog":     {Data: next},
				"advanceRuleLogs": {Data: ruleIDs},
			},
		})
		included = append(included, ruleResources...)
	}

	var payback any
	if run.DefaultPaybackDate != nil {
		payback = run.DefaultPaybackDate.UTC().Format(time.RFC3339Nano)
	}

	return Document{
		Data: Resource{
			Type: TypeApprovalRun,
			ID:   run.ID,
			Attributes: map[string]any{
				"approved":           run.Approved,
				"approvedAmounts":    run.ApprovedAmounts,
				"created":            run.Created.UTC().Format(time.RFC3339Nano),
				"defaultPaybackDate": payback,
				"initiator":          run.Initiator,
			},
			Relationships: map[string]Relationship{
				"advanceNodeLogs": {Data: nodeIDs},
			},
		},
		Included: included,
	}
}
