// Package cond validates, compiles and evaluates the boolean transition
// conditions attached to graph edges.
package cond

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Compiled is a validated, pre-compiled condition. An empty condition
// compiles to a program that is always true.
type Compiled struct {
	src  string
	prog *vm.Program
}

// Compile validates and compiles a condition source string.
func Compile(src string) (*Compiled, error) {
	src = strings.TrimSpace(src)
	if err := Validate(src); err != nil {
		return nil, err
	}
	if src == "" {
		return &Compiled{src: src}, nil
	}

	prog, err := expr.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("compile condition %q: %w", src, err)
	}
	return &Compiled{src: src, prog: prog}, nil
}

// Source returns the original condition text.
func (c *Compiled) Source() string { return c.src }

// Eval runs the condition against the given variables.
func (c *Compiled) Eval(vars map[string]any) (bool, error) {
	if c.prog == nil {
		return true, nil
	}

	out, err := expr.Run(c.prog, vars)
	if err != nil {
		return false, err
	}

	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition must evaluate to bool (got %T)", out)
	}
	return b, nil
}

// Eval is a convenience for one-off evaluation of a condition string.
func Eval(src string, vars map[string]any) (bool, error) {
	c, err := Compile(src)
	if err != nil {
		return false, err
	}
	return c.Eval(vars)
}
