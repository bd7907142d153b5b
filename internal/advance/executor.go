package advance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cashbridge/advance-engine/internal/advance/graph"
	"github.com/cashbridge/advance-engine/internal/advance/ml"
)

// NodeResult is the outcome of executing one node: the audit log entry,
// the rule logs that back it, and the variable map transition conditions
// are evaluated against.
type NodeResult struct {
	Log   NodeExecutionLog
	Rules []RuleExecutionLog
	Vars  map[string]any
}

// Executor runs a single node against an evaluation context.
type Executor struct {
	library *Library
	gateway ml.Gateway
	obs     NodeLatencyObserver
	logger  *slog.Logger
}

type ExecutorOption func(*Executor)

func WithNodeLatencyObserver(obs NodeLatencyObserver) ExecutorOption {
	return func(e *Executor) { e.obs = obs }
}

func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

func NewExecutor(library *Library, gateway ml.Gateway, opts ...ExecutorOption) *Executor {
	e := &Executor{
		library: library,
		gateway: gateway,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute evaluates the node and selects its successor.
//
// Rule-based nodes run every declared rule; node success is the AND of all
// rule outcomes. ML-based nodes consult the gateway first: a usable
// non-experimental outcome alone decides the node (IsMl=true); an
// unavailable or experimental outcome falls back to the declared rule set
// (IsMl=false), with the experimental score recorded for later analysis.
//
// On success the successor is the first declared transition whose condition
// matches the outcome variables. On failure no successor is selected.
func (e *Executor) Execute(ctx context.Context, node *graph.Node, ec *EvaluationContext) (*NodeResult, error) {
	start := time.Now()
	defer func() {
		if e.obs != nil {
			e.obs.ObserveNodeLatency(node.Name, time.Since(start))
		}
	}()

	res := &NodeResult{
		Log:  NodeExecutionLog{NodeName: node.Name},
		Vars: ec.Features(),
	}

	switch node.Type {
	case graph.TypeML:
		if err := e.executeML(ctx, node, ec, res); err != nil {
			return nil, err
		}
	default:
		ruleLogs, success, err := e.runRules(node, node.Rules, ec)
		if err != nil {
			return nil, err
		}
		res.Rules = ruleLogs
		res.Log.Success = success
	}

	for _, rl := range res.Rules {
		res.Vars[rl.RuleName] = rl.Success
	}
	res.Vars["nodeSuccess"] = res.Log.Success

	if res.Log.Success && !node.IsTerminal() {
		res.Log.SuccessNodeName = e.selectNext(node, res.Vars)
	}

	return res, nil
}

func (e *Executor) executeML(ctx context.Context, node *graph.Node, ec *EvaluationContext, res *NodeResult) error {
	outcome := e.gateway.Invoke(ctx, node.ModelKey, ec.Features())

	shadow := node.Experimental || outcome.Experimental
	if !outcome.Unavailable && !shadow {
		res.Log.Success = outcome.Approved()
		res.Log.IsMl = true
		res.Log.ApprovalResponse = mlPayload(outcome)
		res.Vars["mlUsed"] = true
		res.Vars["mlScore"] = outcome.Score
		res.Vars["mlDecision"] = outcome.Decision
		return nil
	}

	// Degraded or shadow mode: the declared fallback rules decide.
	ruleLogs, success, err := e.runRules(node, node.Rules, ec)
	if err != nil {
		return err
	}
	res.Rules = ruleLogs
	res.Log.Success = success
	res.Vars["mlUsed"] = false

	if !outcome.Unavailable && shadow {
		res.Log.IsExperimental = true
		res.Log.ApprovalResponse = mlPayload(outcome)
		e.logger.Info("experimental model outcome recorded",
			slog.String("node", node.Name),
			slog.String("model_key", outcome.ModelKey),
			slog.Float64("score", outcome.Score),
			slog.String("decision", outcome.Decision))
	}
	return nil
}

// runRules evaluates every declared rule concurrently against the shared
// immutable context and reassembles the logs in declaration order. A later
// rule never depends on an earlier rule's success: all of them run so the
// audit trail is complete.
func (e *Executor) runRules(node *graph.Node, names []string, ec *EvaluationContext) ([]RuleExecutionLog, bool, error) {
	fns := make([]RuleFunc, len(names))
	for i, name := range names {
		fn, ok := e.library.Get(name)
		if !ok {
			return nil, false, fmt.Errorf("%w: %q on node %q", ErrUnknownRule, name, node.Name)
		}
		fns[i] = fn
	}

	outcomes := make([]Outcome, len(names))
	var wg sync.WaitGroup
	for i := range fns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = fns[i](ec)
		}(i)
	}
	wg.Wait()

	logs := make([]RuleExecutionLog, len(names))
	success := true
	for i, name := range names {
		o := outcomes[i]
		logs[i] = RuleExecutionLog{
			RuleName: name,
			NodeName: node.Name,
			Success:  o.Success,
			Error:    o.Error,
			Data:     o.Data,
		}
		success = success && o.Success
	}
	return logs, success, nil
}

// selectNext returns the first declared transition whose condition matches,
// or empty when none does. Condition errors count as non-matches: the
// conditions were validated at startup, so a runtime error means the
// variables disagree with the graph author's expectation, and rejecting is
// the safe dead end.
func (e *Executor) selectNext(node *graph.Node, vars map[string]any) string {
	for i := range node.Next {
		tr := &node.Next[i]
		ok, err := tr.Matches(vars)
		if err != nil {
			e.logger.Warn("transition condition failed",
				slog.String("node", node.Name),
				slog.String("to", tr.To),
				slog.String("cond", tr.Cond),
				slog.String("error", err.Error()))
			continue
		}
		if ok {
			return tr.To
		}
	}
	return ""
}

func mlPayload(o ml.Outcome) map[string]any {
	return map[string]any{
		"modelKey": o.ModelKey,
		"score":    o.Score,
		"decision": o.Decision,
	}
}
