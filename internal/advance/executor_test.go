package advance

import (
	"context"
	"testing"
	"time"

	"github.com/cashbridge/advance-engine/internal/advance/graph"
	"github.com/cashbridge/advance-engine/internal/advance/ml"
)

type stubGateway struct {
	outcome ml.Outcome
	calls   int
}

func (g *stubGateway) Invoke(_ context.Context, modelKey string, _ map[string]any) ml.Outcome {
	g.calls++
	out := g.outcome
	out.ModelKey = modelKey
	return out
}

type spyLatencyObserver struct {
	nodes []string
	durs  []time.Duration
}

func (s *spyLatencyObserver) ObserveNodeLatency(nodeName string, duration time.Duration) {
	s.nodes = append(s.nodes, nodeName)
	s.durs = append(s.durs, duration)
}

func testLibrary(t *testing.T, outcomes map[string]Outcome) *Library {
	t.Helper()
	lib := NewLibrary()
	for name, out := range outcomes {
		if err := lib.Register(name, func(out Outcome) RuleFunc {
			return func(*EvaluationContext) Outcome { return out }
		}(out)); err != nil {
			t.Fatal(err)
		}
	}
	return lib
}

func TestExecute_RuleNode_RunsAllRulesInDeclarationOrder(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{
		"first":  pass(nil),
		"second": fail("boom", map[string]any{"k": "v"}),
		"third":  pass(nil),
	})
	e := NewExecutor(lib, &stubGateway{})

	node := &graph.Node{
		Name:  "CheckNode",
		Type:  graph.TypeRule,
		Rules: []string{"first", "second", "third"},
		Next:  []graph.Transition{{To: "NextNode"}},
	}

	res, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	if res.Log.Success {
		t.Fatalf("expected node failure when one rule fails")
	}
	if res.Log.SuccessNodeName != "" {
		t.Fatalf("expected no successor on failure, got %q", res.Log.SuccessNodeName)
	}
	if len(res.Rules) != 3 {
		t.Fatalf("expected 3 rule logs, got %d", len(res.Rules))
	}
	for i, want := range []string{"first", "second", "third"} {
		if res.Rules[i].RuleName != want {
			t.Fatalf("rule log %d = %q, want %q", i, res.Rules[i].RuleName, want)
		}
		if res.Rules[i].NodeName != "CheckNode" {
			t.Fatalf("rule log %d has node %q", i, res.Rules[i].NodeName)
		}
	}
	if res.Rules[1].Error != "boom" || res.Rules[1].Data["k"] != "v" {
		t.Fatalf("unexpected failing rule log: %#v", res.Rules[1])
	}
}

func TestExecute_SelectsFirstMatchingTransition(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{"ok": pass(nil)})
	e := NewExecutor(lib, &stubGateway{})

	node := &graph.Node{
		Name:  "BranchNode",
		Type:  graph.TypeRule,
		Rules: []string{"ok"},
		Next: []graph.Transition{
			{To: "A", Cond: "hasRecurringIncome"},
			{To: "B", Cond: ""},
		},
	}

	ec := healthyContext(time.Now().UTC())
	res, err := e.Execute(context.Background(), node, ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Log.SuccessNodeName != "A" {
		t.Fatalf("expected A, got %q", res.Log.SuccessNodeName)
	}

	ec.RecurringIncome = nil
	res, err = e.Execute(context.Background(), node, ec)
	if err != nil {
		t.Fatal(err)
	}
	if res.Log.SuccessNodeName != "B" {
		t.Fatalf("expected catch-all B, got %q", res.Log.SuccessNodeName)
	}
}

func TestExecute_TransitionsCanReferenceRuleResults(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{
		"softCheck": fail("soft", nil),
		"hardCheck": pass(nil),
	})
	e := NewExecutor(lib, &stubGateway{})

	// softCheck failing fails the node; vars still carry each rule result.
	node := &graph.Node{
		Name:  "MixedNode",
		Type:  graph.TypeRule,
		Rules: []string{"softCheck", "hardCheck"},
		Next:  []graph.Transition{{To: "A"}},
	}

	res, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}
	if res.Vars["softCheck"] != false || res.Vars["hardCheck"] != true {
		t.Fatalf("expected rule results in vars, got %#v", res.Vars)
	}
	if res.Vars["nodeSuccess"] != false {
		t.Fatalf("expected nodeSuccess=false")
	}
}

func TestExecute_MLNode_UsableOutcomeDecides(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{"fallback": fail("should not run", nil)})
	gw := &stubGateway{outcome: ml.Outcome{Score: 0.91, Decision: ml.DecisionApprove}}
	e := NewExecutor(lib, gw)

	node := &graph.Node{
		Name:     "RiskNode",
		Type:     graph.TypeML,
		ModelKey: "model-1",
		Rules:    []string{"fallback"},
		Next:     []graph.Transition{{To: "NextNode"}},
	}

	res, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	if !res.Log.Success || !res.Log.IsMl || res.Log.IsExperimental {
		t.Fatalf("unexpected log: %#v", res.Log)
	}
	if len(res.Rules) != 0 {
		t.Fatalf("fallback rules must not run when the model decides, got %d logs", len(res.Rules))
	}
	if res.Log.ApprovalResponse["score"] != 0.91 {
		t.Fatalf("expected model payload, got %#v", res.Log.ApprovalResponse)
	}
	if res.Log.SuccessNodeName != "NextNode" {
		t.Fatalf("expected transition, got %q", res.Log.SuccessNodeName)
	}
}

func TestExecute_MLNode_UnavailableFallsBackToRules(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{
		"fallbackA": pass(nil),
		"fallbackB": pass(nil),
	})
	gw := &stubGateway{outcome: ml.Unavailable("model-1", "timeout")}
	e := NewExecutor(lib, gw)

	node := &graph.Node{
		Name:     "RiskNode",
		Type:     graph.TypeML,
		ModelKey: "model-1",
		Rules:    []string{"fallbackA", "fallbackB"},
		Next:     []graph.Transition{{To: "NextNode"}},
	}

	res, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	if !res.Log.Success {
		t.Fatalf("expected fallback rules to pass")
	}
	if res.Log.IsMl {
		t.Fatalf("IsMl must be false when the model was unavailable")
	}
	if res.Log.IsExperimental {
		t.Fatalf("unavailable is not experimental")
	}
	if len(res.Rules) != 2 {
		t.Fatalf("expected 2 fallback rule logs, got %d", len(res.Rules))
	}
	if gw.calls != 1 {
		t.Fatalf("expected 1 gateway call, got %d", gw.calls)
	}
}

func TestExecute_MLNode_ExperimentalIsShadowOnly(t *testing.T) {
	// The model approves but runs in shadow mode; the failing fallback
	// rules must own the production decision.
	lib := testLibrary(t, map[string]Outcome{"fallback": fail("nope", nil)})
	gw := &stubGateway{outcome: ml.Outcome{Score: 0.99, Decision: ml.DecisionApprove, Experimental: true}}
	e := NewExecutor(lib, gw)

	node := &graph.Node{
		Name:     "RiskNode",
		Type:     graph.TypeML,
		ModelKey: "model-1",
		Rules:    []string{"fallback"},
		Next:     []graph.Transition{{To: "NextNode"}},
	}

	res, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC()))
	if err != nil {
		t.Fatal(err)
	}

	if res.Log.Success {
		t.Fatalf("shadow model must not influence the decision")
	}
	if res.Log.IsMl {
		t.Fatalf("IsMl must be false for shadow outcomes")
	}
	if !res.Log.IsExperimental {
		t.Fatalf("expected IsExperimental=true")
	}
	if res.Log.ApprovalResponse["decision"] != ml.DecisionApprove {
		t.Fatalf("expected shadow payload logged, got %#v", res.Log.ApprovalResponse)
	}
}

func TestExecute_UnknownRuleIsStructural(t *testing.T) {
	e := NewExecutor(NewLibrary(), &stubGateway{})

	node := &graph.Node{Name: "BadNode", Type: graph.TypeRule, Rules: []string{"ghost"}}
	if _, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC())); err == nil {
		t.Fatalf("expected error for unregistered rule")
	}
}

func TestExecute_ObservesNodeLatency(t *testing.T) {
	lib := testLibrary(t, map[string]Outcome{"ok": pass(nil)})
	obs := &spyLatencyObserver{}
	e := NewExecutor(lib, &stubGateway{}, WithNodeLatencyObserver(obs))

	node := &graph.Node{
		Name:  "TimedNode",
		Type:  graph.TypeRule,
		Rules: []string{"ok"},
		Terminal: &graph.Terminal{
			Decision: graph.DecisionReject,
		},
	}

	if _, err := e.Execute(context.Background(), node, healthyContext(time.Now().UTC())); err != nil {
		t.Fatal(err)
	}

	if len(obs.nodes) != 1 || obs.nodes[0] != "TimedNode" {
		t.Fatalf("unexpected observations: %#v", obs.nodes)
	}
	if obs.durs[0] < 0 {
		t.Fatalf("negative duration")
	}
}
