package graph

import (
	"fmt"
	"io"
	"strings"
)

// WriteDOT writes the graph in Graphviz DOT format. Edges are labeled with
// the method and position of the declaration; "*" marks type-wide ones.
func (g *Graph) WriteDOT(w io.Writer) error {
	var b strings.Builder

	b.WriteString("digraph interception {\n")
	b.WriteString("  rankdir=LR;\n")

	ids := make(map[string]string)
	for i, n := range append(g.Nodes(KindType), g.Nodes(KindInterceptor)...) {
		id := fmt.Sprintf("n%d", i)
		ids[n.Name] = id

		shape := "box"
		if n.Kind == KindInterceptor {
			shape = "ellipse"
		}
		fmt.Fprintf(&b, "  %s [label=%q, shape=%s];\n", id, n.Name, shape)
	}

	for _, t := range g.Nodes(KindType) {
		for _, e := range g.Edges(t.Name) {
			fmt.Fprintf(&b, "  %s -> %s [label=%q];\n", ids[e.From], ids[e.To], edgeLabel(e))
		}
	}

	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteText writes one line per type followed by its declarations, then the
// number of declarations referring to each interceptor.
func (g *Graph) WriteText(w io.Writer) error {
	var b strings.Builder

	for _, t := range g.Nodes(KindType) {
		b.WriteString(t.Name + "\n")
		for _, e := range g.Edges(t.Name) {
			fmt.Fprintf(&b, "  %s -> %s\n", edgeLabel(e), e.To)
		}
	}

	interceptors := g.Nodes(KindInterceptor)
	if len(interceptors) > 0 {
		b.WriteString("\ninterceptors:\n")
		for _, n := range interceptors {
			fmt.Fprintf(&b, "  %s (%d)\n", n.Name, g.Usage(n.Name))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func edgeLabel(e Edge) string {
	method := e.Method
	if method == "" {
		method = "*"
	}
	return fmt.Sprintf("%s#%d", method, e.Position+1)
}
