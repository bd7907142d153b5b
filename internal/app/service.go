package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cashbridge/advance-engine/internal/advance"
	"github.com/cashbridge/advance-engine/internal/bank"
	"github.com/cashbridge/advance-engine/internal/export"
)

// RunStore is the read side of the audit store the service needs for
// dashboard read-back and history rules.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*advance.ApprovalRun, error)
	ReadRunLogs(ctx context.Context, runID string) ([]advance.NodeRecord, error)
	RunsByUser(ctx context.Context, userID string, limit int) ([]*advance.ApprovalRun, error)
}

// transactionLookback bounds how much history feeds the rule set.
const transactionLookback = 90 * 24 * time.Hour

// Service assembles the evaluation context from the external collaborators
// and hands it to the orchestrator.
type Service struct {
	bank         bank.Reader
	income       bank.IncomeDetector
	runs         RunStore
	orch         *advance.Orchestrator
	exporter     *export.Exporter
	historyLimit int
	logger       *slog.Logger
}

func NewService(bankReader bank.Reader, income bank.IncomeDetector, runs RunStore,
	orch *advance.Orchestrator, exporter *export.Exporter, historyLimit int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &Service{
		bank:         bankReader,
		income:       income,
		runs:         runs,
		orch:         orch,
		exporter:     exporter,
		historyLimit: historyLimit,
		logger:       logger,
	}
}

// Approve snapshots the context for the user/account and runs one
// traversal. A missing bank account is a structural fault; a missing
// income signal is data the rules handle.
func (s *Service) Approve(ctx context.Context, req ApproveRequest) (*advance.ApprovalRun, []advance.NodeRecord, error) {
	if err := validate(&req); err != nil {
		return nil, nil, err
	}

	account, err := s.bank.Account(ctx, req.BankAccountID)
	if errors.Is(err, bank.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %q", advance.ErrAccountNotFound, req.BankAccountID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load account: %w", err)
	}

	now := time.Now().UTC()
	txs, err := s.bank.Transactions(ctx, req.BankAccountID, now.Add(-transactionLookback))
	if err != nil {
		return nil, nil, fmt.Errorf("load transactions: %w", err)
	}

	income, err := s.income.RecurringIncome(ctx, req.BankAccountID, req.RecurringTransactionID)
	if err != nil {
		// Absent signal is an input the rules know how to reject on.
		s.logger.Warn("recurring-income lookup failed",
			slog.String("account_id", req.BankAccountID),
			slog.String("error", err.Error()))
		income = nil
	}

	history, err := s.priorRuns(ctx, req.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}

	ec := &advance.EvaluationContext{
		User:            bank.UserProfile{ID: req.UserID},
		Account:         account,
		Transactions:    txs,
		RecurringIncome: income,
		History:         history,
		Now:             now,
	}

	return s.orch.Run(ctx, advance.RunRequest{
		UserID:                 req.UserID,
		BankAccountID:          req.BankAccountID,
		RecurringTransactionID: req.RecurringTransactionID,
		Initiator:              req.Initiator,
	}, ec)
}

// Run reads a persisted run and its ordered audit trail.
func (s *Service) Run(ctx context.Context, runID string) (*advance.ApprovalRun, []advance.NodeRecord, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.runs.ReadRunLogs(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, records, nil
}

// RenderGraph exports the static registry.
func (s *Service) RenderGraph(ctx context.Context, format string) ([]byte, string, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", advance.ErrInvalidRequest, err)
	}
	return s.exporter.Render(ctx, f)
}

func (s *Service) priorRuns(ctx context.Context, userID string) ([]advance.PriorRun, error) {
	runs, err := s.runs.RunsByUser(ctx, userID, s.historyLimit)
	if err != nil {
		return nil, err
	}
	out := make([]advance.PriorRun, 0, len(runs))
	for _, r := range runs {
		out = append(out, advance.PriorRun{
			Approved:    r.Approved,
			Amounts:     r.ApprovedAmounts,
			Created:     r.Created,
			PaybackDate: r.DefaultPaybackDate,
		})
	}
	return out, nil
}

func validate(req *ApproveRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("%w: userId is required", advance.ErrInvalidRequest)
	}
	if req.BankAccountID == "" {
		return fmt.Errorf("%w: bankAccountId is required", advance.ErrInvalidRequest)
	}
	switch req.Initiator {
	case "":
		req.Initiator = advance.InitiatorUser
	case advance.InitiatorUser, advance.InitiatorAgent:
	default:
		return fmt.Errorf("%w: initiator must be %q or %q", advance.ErrInvalidRequest,
			advance.InitiatorUser, advance.InitiatorAgent)
	}
	return nil
}
