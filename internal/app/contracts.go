package app

import (
	"context"

	"github.com/cashbridge/advance-engine/internal/advance"
)

// ApproveRequest is the transport-independent approval request.
type ApproveRequest struct {
	UserID                 string
	BankAccountID          string
	RecurringTransactionID string
	Initiator              string
}

// ApprovalService is the surface the transports depend on.
type ApprovalService interface {
	Approve(ctx context.Context, req ApproveRequest) (*advance.ApprovalRun, []advance.NodeRecord, error)
	Run(ctx context.Context, runID string) (*advance.ApprovalRun, []advance.NodeRecord, error)
	RenderGraph(ctx context.Context, format string) ([]byte, string, error)
}
