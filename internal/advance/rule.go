package advance

import "fmt"

// Outcome is the result of one rule evaluation. Rules report failure as
// data (Success=false plus a descriptive Error), never as a Go error, so a
// node can always aggregate a complete set of outcomes.
type Outcome struct {
	Success bool
	Error   string
	Data    map[string]any
}

func pass(data map[string]any) Outcome {
	return Outcome{Success: true, Data: data}
}

func fail(reason string, data map[string]any) Outcome {
	return Outcome{Success: false, Error: reason, Data: data}
}

// RuleFunc is a pure predicate over the evaluation context. Implementations
// must not mutate the context and must not perform I/O.
type RuleFunc func(*EvaluationContext) Outcome

// Library maps rule names to their predicate functions.
type Library struct {
	rules map[string]RuleFunc
}

func NewLibrary() *Library {
	return &Library{rules: map[string]RuleFunc{}}
}

// Register adds a named rule. Registering the same name twice is a
// programming error and is rejected.
func (l *Library) Register(name string, fn RuleFunc) error {
	if name == "" {
		return fmt.Errorf("rule name is empty")
	}
	if fn == nil {
		return fmt.Errorf("rule %q has nil func", name)
	}
	if _, ok := l.rules[name]; ok {
		return fmt.Errorf("rule %q already registered", name)
	}
	l.rules[name] = fn
	return nil
}

func (l *Library) Get(name string) (RuleFunc, bool) {
	fn, ok := l.rules[name]
	return fn, ok
}

// Has reports whether every given name is registered, returning the first
// missing name otherwise.
func (l *Library) Has(names ...string) (string, bool) {
	for _, n := range names {
		if _, ok := l.rules[n]; !ok {
			return n, false
		}
	}
	return "", true
}
