// Package export renders the static node registry for internal tooling.
// It reads only the registry, never run data, and is side-effect free
// apart from invoking the graphviz binary for image output.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/awalterschulze/gographviz"

	"github.com/cashbridge/advance-engine/internal/advance/graph"
)

// Format selects the export representation.
type Format string

const (
	FormatJSON   Format = "json"
	FormatDotRaw Format = "dot-raw"
	FormatDotSVG Format = "dot-svg"
)

// ParseFormat validates a format string from a request.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatDotRaw, FormatDotSVG:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// NodeJSON and EdgeJSON are the wire shapes consumed by the dashboard.
type NodeJSON struct {
	ReferenceID string            `json:"referenceId"`
	Name        string            `json:"name"`
	Metadata    map[string]string `json:"metadata"`
	Rules       []string          `json:"rules"`
	Type        string            `json:"type"`
}

type EdgeJSON struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Name   string `json:"name"`
}

type graphJSON struct {
	Nodes []NodeJSON `json:"nodes"`
	Edges []EdgeJSON `json:"edges"`
}

// Exporter renders the registry in the supported formats.
type Exporter struct {
	registry *graph.Registry
	cache    *renderCache
	dotBin   string
}

func NewExporter(registry *graph.Registry, cacheMax int, dotBin string) *Exporter {
	if dotBin == "" {
		dotBin = "dot"
	}
	return &Exporter{
		registry: registry,
		cache:    newRenderCache(cacheMax),
		dotBin:   dotBin,
	}
}

// Render returns the export bytes and their content type.
func (e *Exporter) Render(ctx context.Context, format Format) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		b, err := e.cache.getOrCompute(string(format), e.renderJSON)
		return b, "application/json", err
	case FormatDotRaw:
		b, err := e.cache.getOrCompute(string(format), e.renderDot)
		return b, "text/vnd.graphviz", err
	case FormatDotSVG:
		// Not cached: rendering shells out and respects ctx cancellation.
		b, err := e.renderSVG(ctx)
		return b, "image/svg+xml", err
	default:
		return nil, "", fmt.Errorf("unknown export format %q", format)
	}
}

func (e *Exporter) renderJSON() ([]byte, error) {
	out := graphJSON{
		Nodes: []NodeJSON{},
		Edges: []EdgeJSON{},
	}

	for _, n := range e.registry.List() {
		metadata := n.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		rules := n.Rules
		if rules == nil {
			rules = []string{}
		}
		out.Nodes = append(out.Nodes, NodeJSON{
			ReferenceID: n.Name,
			Name:        displayName(n),
			Metadata:    metadata,
			Rules:       rules,
			Type:        string(n.Type),
		})

		for _, tr := range n.Next {
			out.Edges = append(out.Edges, EdgeJSON{
				Source: n.Name,
				Target: tr.To,
				Name:   tr.Name,
			})
		}
	}

	return json.Marshal(out)
}

func (e *Exporter) renderDot() ([]byte, error) {
	g := gographviz.NewGraph()
	if err := g.SetName("ApprovalGraph"); err != nil {
		return nil, err
	}
	if err := g.SetDir(true); err != nil {
		return nil, err
	}

	for _, n := range e.registry.List() {
		attrs := map[string]string{
			"label": strconv.Quote(displayName(n)),
			"shape": "box",
		}
		if n.Type == graph.TypeML {
			attrs["shape"] = "ellipse"
		}
		if n.IsTerminal() {
			attrs["peripheries"] = "2"
		}
		if n.Entry {
			attrs["style"] = "bold"
		}
		if err := g.AddNode("ApprovalGraph", n.Name, attrs); err != nil {
			return nil, err
		}
	}

	for _, n := range e.registry.List() {
		for _, tr := range n.Next {
			attrs := map[string]string{"label": strconv.Quote(tr.Name)}
			if err := g.AddEdge(n.Name, tr.To, true, attrs); err != nil {
				return nil, err
			}
		}
	}

	return []byte(g.String()), nil
}

func (e *Exporter) renderSVG(ctx context.Context) ([]byte, error) {
	dot, err := e.cache.getOrCompute(string(FormatDotRaw), e.renderDot)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.dotBin, "-Tsvg")
	cmd.Stdin = bytes.NewReader(dot)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("render svg with %s: %v: %s", e.dotBin, err, stderr.String())
	}
	return out.Bytes(), nil
}

func displayName(n *graph.Node) string {
	if label, ok := n.Metadata["label"]; ok && label != "" {
		return label
	}
	return n.Name
}
