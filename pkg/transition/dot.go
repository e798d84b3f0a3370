package transition

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// ToDOT returns a Graphviz DOT representation of the transition state
// machine.
//
// The DOT format can be rendered with Graphviz tools (dot, neato, etc.) or
// programmatically with RenderSVG. The output is a complete DOT digraph
// with styling suitable for documentation and debugging. The node for the
// controller's current state is highlighted.
func (c *Controller) ToDOT() string {
	current := c.Status().State

	var buf bytes.Buffer
	buf.WriteString("digraph Transition {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"SF Mono, Menlo, monospace\", fontsize=14, style=filled, fillcolor=white];\n\n")

	for _, s := range []State{StateIdle, StateMorphing, StateCut} {
		attrs := "shape=ellipse"
		if s == StateIdle {
			attrs = "shape=doublecircle"
		}
		if s == current {
			attrs += ", fillcolor=lightblue"
		}
		fmt.Fprintf(&buf, "  %s [label=%q, %s];\n", s, s.String(), attrs)
	}
	buf.WriteString("\n")
	fmt.Fprintf(&buf, "  %s -> %s [label=\"pending frame\"];\n", StateIdle, StateMorphing)
	fmt.Fprintf(&buf, "  %s -> %s [label=\"mismatch / estimation failed / disabled\"];\n", StateIdle, StateCut)
	fmt.Fprintf(&buf, "  %s -> %s [label=\"new pending (preempt)\"];\n", StateMorphing, StateMorphing)
	fmt.Fprintf(&buf, "  %s -> %s [label=\"t=1 emitted\"];\n", StateMorphing, StateIdle)
	fmt.Fprintf(&buf, "  %s -> %s [label=\"next event\"];\n", StateCut, StateIdle)
	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the state machine as an SVG image.
//
// RenderSVG generates a DOT representation via ToDOT, then uses Graphviz to
// render it to SVG format. The returned bytes are a complete SVG document
// suitable for embedding in HTML or saving to a file.
//
// RenderSVG requires the Graphviz library (github.com/goccy/go-graphviz).
// Errors are returned if Graphviz cannot initialize, the DOT is malformed,
// or rendering fails.
func (c *Controller) RenderSVG() ([]byte, error) {
	dot := c.ToDOT()

	gv, err := graphviz.New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(context.Background(), g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
