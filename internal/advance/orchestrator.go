package advance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cashbridge/advance-engine/internal/advance/graph"
)

// AuditStore persists the append-only decision trail. Writes are
// best-effort from the orchestrator's point of view: a failed append is
// logged and counted but never aborts a traversal, since the caller must
// still receive a decision.
type AuditStore interface {
	AppendNodeLog(ctx context.Context, runID string, rec NodeRecord) error
	InsertRun(ctx context.Context, run *ApprovalRun) error
}

// RunRequest identifies who and what a traversal is for.
type RunRequest struct {
	UserID                 string
	BankAccountID          string
	RecurringTransactionID string
	Initiator              string
}

// Orchestrator drives one traversal from the entry node to a terminal
// outcome. Traversal within a run is strictly sequential; independent runs
// share nothing but the audit store.
type Orchestrator struct {
	registry *graph.Registry
	exec     *Executor
	audit    AuditStore
	obs      RunObserver
	logger   *slog.Logger
}

type OrchestratorOption func(*Orchestrator)

func WithRunObserver(obs RunObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.obs = obs }
}

func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = logger }
}

func NewOrchestrator(registry *graph.Registry, exec *Executor, audit AuditStore, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		exec:     exec,
		audit:    audit,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run walks the graph for the given context. It returns the persisted run
// summary and the node records produced along the way. A non-nil error is
// a structural fault: no summary row is written and nothing is returned.
// Rule failures, ML degradation and dead ends all resolve to a rejected
// run, never an error.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, ec *EvaluationContext) (*ApprovalRun, []NodeRecord, error) {
	run := &ApprovalRun{
		ID:                     uuid.NewString(),
		UserID:                 req.UserID,
		BankAccountID:          req.BankAccountID,
		RecurringTransactionID: req.RecurringTransactionID,
		Initiator:              req.Initiator,
		Created:                time.Now().UTC(),
		ApprovedAmounts:        []float64{},
	}

	var records []NodeRecord
	current := o.registry.Entry()
	maxSteps := o.registry.Len()

	for seq := 0; ; seq++ {
		if seq >= maxSteps {
			// Unreachable on a validated acyclic graph.
			return nil, nil, fmt.Errorf("traversal exceeded %d steps", maxSteps)
		}

		res, err := o.exec.Execute(ctx, current, ec)
		if err != nil {
			return nil, nil, err
		}

		rec := NodeRecord{Seq: seq, Log: res.Log, Rules: res.Rules}
		records = append(records, rec)
		o.append(ctx, run.ID, rec)

		if current.Type == graph.TypeML && !res.Log.IsMl && !res.Log.IsExperimental {
			if o.obs != nil {
				o.obs.ObserveMLFallback(current.ModelKey)
			}
		}

		if !res.Log.Success {
			break
		}

		if current.IsTerminal() {
			if current.Terminal.Decision == graph.DecisionApprove {
				o.approve(run, current.Terminal, ec)
			}
			break
		}

		nextName := res.Log.SuccessNodeName
		if nextName == "" {
			// No transition matched: rejection is the dead end.
			o.logger.Warn("no transition matched, rejecting",
				slog.String("run_id", run.ID),
				slog.String("node", current.Name))
			break
		}

		next, ok := o.registry.Get(nextName)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %q selected by %q", ErrUnknownNode, nextName, current.Name)
		}
		current = next
	}

	if err := o.audit.InsertRun(ctx, run); err != nil {
		o.logger.Error("run summary write failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()))
		if o.obs != nil {
			o.obs.ObserveAuditFailure()
		}
	}

	if o.obs != nil {
		o.obs.ObserveRun(run.Approved, len(records))
	}
	o.logger.Info("approval run finished",
		slog.String("run_id", run.ID),
		slog.String("user_id", run.UserID),
		slog.Bool("approved", run.Approved),
		slog.Int("nodes_visited", len(records)))

	return run, records, nil
}

// approve fills in the amount ladder and payback date from the terminal
// node's policy. An approve terminal whose ladder comes up empty (income
// too small for the lowest tier) downgrades to rejection, preserving the
// approved-implies-amounts invariant.
func (o *Orchestrator) approve(run *ApprovalRun, t *graph.Terminal, ec *EvaluationContext) {
	monthlyNet := 0.0
	if ec.RecurringIncome != nil {
		monthlyNet = ec.RecurringIncome.MonthlyNet
	}

	amounts := t.Amounts(monthlyNet)
	if len(amounts) == 0 {
		return
	}

	payback := run.Created.AddDate(0, 0, t.PaybackDays)
	if ec.RecurringIncome != nil && ec.RecurringIncome.NextPayday.After(run.Created) {
		payback = ec.RecurringIncome.NextPayday
	}

	run.Approved = true
	run.ApprovedAmounts = amounts
	run.DefaultPaybackDate = &payback
}

func (o *Orchestrator) append(ctx context.Context, runID string, rec NodeRecord) {
	if err := o.audit.AppendNodeLog(ctx, runID, rec); err != nil {
		o.logger.Error("audit append failed",
			slog.String("run_id", runID),
			slog.String("node", rec.Log.NodeName),
			slog.String("error", err.Error()))
		if o.obs != nil {
			o.obs.ObserveAuditFailure()
		}
	}
}
