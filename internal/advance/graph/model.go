// Package graph holds the static decision-graph registry: an immutable,
// serializable adjacency structure built once at process start. Traversal
// logic lives elsewhere; this package only describes the graph and
// validates it.
package graph

import (
	"sort"

	"github.com/cashbridge/advance-engine/internal/advance/graph/cond"
)

type NodeType string

const (
	TypeRule NodeType = "rule"
	TypeML   NodeType = "ml"
)

// Decision values for terminal nodes.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Terminal describes the outcome a node produces when it succeeds and the
// graph ends there. Approve terminals carry the amount ladder: a tier is
// offered while it fits within IncomeShare of the monthly net income. An
// IncomeShare of zero disables the gate and offers every tier.
type Terminal struct {
	Decision    string
	Tiers       []float64
	IncomeShare float64
	PaybackDays int
}

// Amounts returns the qualifying tiers for the given monthly net income,
// in ascending ladder order.
func (t *Terminal) Amounts(monthlyNet float64) []float64 {
	if t.IncomeShare <= 0 {
		return append([]float64(nil), t.Tiers...)
	}
	limit := t.IncomeShare * monthlyNet
	out := make([]float64, 0, len(t.Tiers))
	for _, tier := range t.Tiers {
		if tier <= limit {
			out = append(out, tier)
		}
	}
	return out
}

// Transition is one declared possible successor. Cond is evaluated against
// the node's outcome variables; transitions are tried in declaration order
// and the first match wins. An empty Cond always matches.
type Transition struct {
	To       string
	Name     string
	Cond     string
	compiled *cond.Compiled
}

// Matches evaluates the transition condition.
func (t *Transition) Matches(vars map[string]any) (bool, error) {
	if t.compiled == nil {
		return cond.Eval(t.Cond, vars)
	}
	return t.compiled.Eval(vars)
}

// Node is one decision point in the static graph.
type Node struct {
	Name         string
	Type         NodeType
	Metadata     map[string]string
	Rules        []string
	ModelKey     string
	Experimental bool
	Entry        bool
	Next         []Transition
	Terminal     *Terminal
}

// IsTerminal reports whether a successful execution ends the traversal.
func (n *Node) IsTerminal() bool { return n.Terminal != nil }

// PossibleNext returns the sorted set of declared successor names.
func (n *Node) PossibleNext() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(n.Next))
	for _, tr := range n.Next {
		if _, ok := seen[tr.To]; ok {
			continue
		}
		seen[tr.To] = struct{}{}
		out = append(out, tr.To)
	}
	sort.Strings(out)
	return out
}

// Registry is the process-wide, read-only node registry.
type Registry struct {
	entry string
	nodes map[string]*Node
	order []string
}

// Entry returns the single entry node.
func (r *Registry) Entry() *Node {
	return r.nodes[r.entry]
}

// Get looks a node up by name.
func (r *Registry) Get(name string) (*Node, bool) {
	n, ok := r.nodes[name]
	return n, ok
}

// List returns every node in declaration order.
func (r *Registry) List() []*Node {
	out := make([]*Node, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.nodes[name])
	}
	return out
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int { return len(r.nodes) }
