// Package graph holds the interception graph: which interceptors a type, or
// one of its methods, runs through.
package graph

import (
	"sort"
	"sync"
)

// Kind distinguishes the nodes of the graph.
type Kind int

const (
	// KindType is an intercepted service or implementation type.
	KindType Kind = iota
	// KindInterceptor is an interceptor declaration.
	KindInterceptor
)

func (k Kind) String() string {
	if k == KindInterceptor {
		return "interceptor"
	}
	return "type"
}

// Node is a type or an interceptor declaration.
type Node struct {
	Name string
	Kind Kind
}

// Edge links a type to an interceptor. Method is empty for type-wide
// declarations; Position is the order of the declaration within its scope.
type Edge struct {
	From     string
	To       string
	Method   string
	Position int
}

// Graph is safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	edges map[string][]Edge
	in    map[string]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string][]Edge),
		in:    make(map[string]int),
	}
}

// AddType adds a type node.
func (g *Graph) AddType(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.addNode(name, KindType)
}

// AddDeclarations links typeName to each interceptor in order. method is
// empty for type-wide declarations.
func (g *Graph) AddDeclarations(typeName, method string, interceptors ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.addNode(typeName, KindType)
	for i, name := range interceptors {
		g.addNode(name, KindInterceptor)
		g.edges[typeName] = append(g.edges[typeName], Edge{From: typeName, To: name, Method: method, Position: i})
		g.in[name]++
	}
}

func (g *Graph) addNode(name string, kind Kind) {
	if _, ok := g.nodes[name]; !ok {
		g.nodes[name] = &Node{Name: name, Kind: kind}
	}
}

// Nodes returns the nodes of a kind sorted by name.
func (g *Graph) Nodes(kind Kind) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n.Kind == kind {
			nodes = append(nodes, *n)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// Edges returns the declarations of a type: type-wide ones first, then per
// method sorted by method name, each in declaration order.
func (g *Graph) Edges(typeName string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := append([]Edge(nil), g.edges[typeName]...)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Method != edges[j].Method {
			return edges[i].Method < edges[j].Method
		}
		return edges[i].Position < edges[j].Position
	})
	return edges
}

// Usage returns how many declarations refer to an interceptor.
func (g *Graph) Usage(interceptor string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.in[interceptor]
}

// Size returns the number of nodes.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
