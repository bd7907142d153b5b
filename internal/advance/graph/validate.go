package graph

import "fmt"

// validate enforces structural soundness at load time. A graph that fails
// here is a configuration bug and must never reach traversal: dangling
// transition targets, a missing or ambiguous entry node, and cycles are all
// fatal.
func (r *Registry) validate(ruleNames func(...string) (string, bool)) error {
	if len(r.nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	if r.entry == "" {
		return fmt.Errorf("graph has no entry node")
	}
	if _, ok := r.nodes[r.entry]; !ok {
		return fmt.Errorf("entry node %q is not defined", r.entry)
	}

	entries := 0
	for _, name := range r.order {
		n := r.nodes[name]
		if n.Entry {
			entries++
		}

		switch n.Type {
		case TypeRule:
			if len(n.Rules) == 0 {
				return fmt.Errorf("node %q declares no rules", name)
			}
		case TypeML:
			if n.ModelKey == "" {
				return fmt.Errorf("ml node %q has no model key", name)
			}
			if len(n.Rules) == 0 {
				return fmt.Errorf("ml node %q has no fallback rules", name)
			}
		default:
			return fmt.Errorf("node %q has unknown type %q", name, n.Type)
		}

		if ruleNames != nil {
			if missing, ok := ruleNames(n.Rules...); !ok {
				return fmt.Errorf("node %q references unregistered rule %q", name, missing)
			}
		}

		for _, tr := range n.Next {
			if _, ok := r.nodes[tr.To]; !ok {
				return fmt.Errorf("node %q transitions to unknown node %q", name, tr.To)
			}
		}

		if n.IsTerminal() {
			if len(n.Next) != 0 {
				return fmt.Errorf("terminal node %q declares successors", name)
			}
			switch n.Terminal.Decision {
			case DecisionApprove:
				if len(n.Terminal.Tiers) == 0 {
					return fmt.Errorf("approve terminal %q has no amount tiers", name)
				}
				if n.Terminal.PaybackDays <= 0 {
					return fmt.Errorf("approve terminal %q has no payback days", name)
				}
			case DecisionReject:
			default:
				return fmt.Errorf("terminal node %q has unknown decision %q", name, n.Terminal.Decision)
			}
		} else if len(n.Next) == 0 {
			return fmt.Errorf("non-terminal node %q has no successors", name)
		}
	}

	if entries != 1 {
		return fmt.Errorf("graph must have exactly one entry node, found %d", entries)
	}

	return r.checkAcyclic()
}

// checkAcyclic runs a three-color DFS over declared transitions. A cycle
// would allow unbounded traversal, so it is rejected at startup.
func (r *Registry) checkAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.nodes))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		color[name] = gray
		path = append(path, name)
		for _, tr := range r.nodes[name].Next {
			switch color[tr.To] {
			case gray:
				return fmt.Errorf("graph contains a cycle: %v -> %s", path, tr.To)
			case white:
				if err := visit(tr.To, path); err != nil {
					return err
				}
			}
		}
		color[name] = black
		return nil
	}

	for _, name := range r.order {
		if color[name] == white {
			if err := visit(name, nil); err != nil {
				return err
			}
		}
	}
	return nil
}
