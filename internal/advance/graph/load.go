package graph

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cashbridge/advance-engine/internal/advance/graph/cond"
)

//go:embed default.yaml
var defaultGraphYAML []byte

type fileGraph struct {
	Entry string     `yaml:"entry"`
	Nodes []fileNode `yaml:"nodes"`
}

type fileNode struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"`
	Metadata     map[string]string `yaml:"metadata"`
	Rules        []string          `yaml:"rules"`
	ModelKey     string            `yaml:"modelKey"`
	Experimental bool              `yaml:"experimental"`
	Next         []fileTransition  `yaml:"next"`
	Terminal     *fileTerminal     `yaml:"terminal"`
}

type fileTransition struct {
	To   string `yaml:"to"`
	Name string `yaml:"name"`
	Cond string `yaml:"cond"`
}

type fileTerminal struct {
	Decision    string    `yaml:"decision"`
	Tiers       []float64 `yaml:"tiers"`
	IncomeShare float64   `yaml:"incomeShare"`
	PaybackDays int       `yaml:"paybackDays"`
}

// LoadDefault builds the registry from the embedded production graph.
// ruleNames is the set of registered rule names used for validation.
func LoadDefault(ruleNames func(...string) (string, bool)) (*Registry, error) {
	return load(defaultGraphYAML, ruleNames)
}

// LoadFile builds the registry from a YAML definition on disk.
func LoadFile(path string, ruleNames func(...string) (string, bool)) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph definition: %w", err)
	}
	return load(raw, ruleNames)
}

// Load builds the registry from raw YAML.
func Load(raw []byte, ruleNames func(...string) (string, bool)) (*Registry, error) {
	return load(raw, ruleNames)
}

func load(raw []byte, ruleNames func(...string) (string, bool)) (*Registry, error) {
	var fg fileGraph
	if err := yaml.Unmarshal(raw, &fg); err != nil {
		return nil, fmt.Errorf("parse graph definition: %w", err)
	}

	r := &Registry{
		entry: fg.Entry,
		nodes: make(map[string]*Node, len(fg.Nodes)),
	}

	for _, fn := range fg.Nodes {
		if fn.Name == "" {
			return nil, fmt.Errorf("graph node with empty name")
		}
		if _, dup := r.nodes[fn.Name]; dup {
			return nil, fmt.Errorf("duplicate node %q", fn.Name)
		}

		n := &Node{
			Name:         fn.Name,
			Type:         NodeType(fn.Type),
			Metadata:     fn.Metadata,
			Rules:        fn.Rules,
			ModelKey:     fn.ModelKey,
			Experimental: fn.Experimental,
			Entry:        fn.Name == fg.Entry,
		}

		for _, ft := range fn.Next {
			compiled, err := cond.Compile(ft.Cond)
			if err != nil {
				return nil, fmt.Errorf("node %q transition to %q: %w", fn.Name, ft.To, err)
			}
			name := ft.Name
			if name == "" {
				name = "on success"
			}
			n.Next = append(n.Next, Transition{
				To:       ft.To,
				Name:     name,
				Cond:     ft.Cond,
				compiled: compiled,
			})
		}

		if ft := fn.Terminal; ft != nil {
			n.Terminal = &Terminal{
				Decision:    ft.Decision,
				Tiers:       ft.Tiers,
				IncomeShare: ft.IncomeShare,
				PaybackDays: ft.PaybackDays,
			}
		}

		r.nodes[fn.Name] = n
		r.order = append(r.order, fn.Name)
	}

	if err := r.validate(ruleNames); err != nil {
		return nil, err
	}
	return r, nil
}
