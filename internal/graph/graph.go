// Package graph provides dependency graphs over Metaschema documents and
// definitions, with deterministic cycle detection.
package graph

import (
	"cmp"
	"slices"
)

// Symbol identifies a vertex: a definition (Document, Kind, Name) or, with
// Kind and Name empty, a whole document.
type Symbol struct {
	Document string
	Kind     string
	Name     string
}

// DocumentSymbol returns the vertex for a whole document.
func DocumentSymbol(doc string) Symbol {
	return Symbol{Document: doc}
}

// String renders doc, or doc:kind/name for definitions.
func (s Symbol) String() string {
	if s.Kind == "" && s.Name == "" {
		return s.Document
	}
	return s.Document + ":" + s.Kind + "/" + s.Name
}

// Compare orders symbols by document, kind, then name.
func Compare(a, b Symbol) int {
	if c := cmp.Compare(a.Document, b.Document); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Kind, b.Kind); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// Graph is a dependency graph of symbols with forward edges.
type Graph struct {
	nodes map[Symbol]struct{}
	edges map[Symbol][]Symbol
	count int
}

// New returns a graph with no nodes or edges.
func New() *Graph {
	return &Graph{
		nodes: make(map[Symbol]struct{}),
		edges: make(map[Symbol][]Symbol),
	}
}

// AddNode registers a symbol. Duplicate calls are no-ops.
func (g *Graph) AddNode(sym Symbol) {
	g.nodes[sym] = struct{}{}
}

// AddEdge records that "from" refers to "to". Missing nodes are created
// implicitly. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to Symbol) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}

	if slices.Contains(g.edges[from], to) {
		return
	}
	g.edges[from] = append(g.edges[from], to)
	g.count++
}

// Dependencies returns the symbols that sym refers to, in insertion order.
func (g *Graph) Dependencies(sym Symbol) []Symbol {
	return g.edges[sym]
}

// HasNode reports whether the symbol exists in the graph.
func (g *Graph) HasNode(sym Symbol) bool {
	_, ok := g.nodes[sym]
	return ok
}

// NodeCount returns the number of vertices.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int { return g.count }

// sortedNodes returns every vertex in Compare order.
func (g *Graph) sortedNodes() []Symbol {
	sorted := make([]Symbol, 0, len(g.nodes))
	for sym := range g.nodes {
		sorted = append(sorted, sym)
	}
	slices.SortFunc(sorted, Compare)
	return sorted
}

// ResolutionOrder returns symbols ordered so that dependencies come before
// dependents, using Tarjan's algorithm. Strongly connected components with
// more than one node (or a single node with a self-loop) are reported as
// cycles and excluded from the order.
func (g *Graph) ResolutionOrder() (order []Symbol, cycles [][]Symbol) {
	g.tarjan(func(scc []Symbol, cyclic bool) {
		if cyclic {
			cycles = append(cycles, normalizeCycle(scc))
		} else {
			order = append(order, scc[0])
		}
	})
	sortCycles(cycles)
	return order, cycles
}

// tarjan visits every strongly connected component in reverse
// topological order. Vertices are started in Compare order so results
// do not depend on map iteration.
func (g *Graph) tarjan(visit func(scc []Symbol, cyclic bool)) {
	var (
		index    int
		stack    []Symbol
		onStack  = make(map[Symbol]bool)
		indices  = make(map[Symbol]int)
		lowlinks = make(map[Symbol]int)
	)

	var strongConnect func(sym Symbol)
	strongConnect = func(sym Symbol) {
		indices[sym] = index
		lowlinks[sym] = index
		index++
		stack = append(stack, sym)
		onStack[sym] = true

		for _, dep := range g.edges[sym] {
			if _, visited := indices[dep]; !visited {
				strongConnect(dep)
				lowlinks[sym] = min(lowlinks[sym], lowlinks[dep])
			} else if onStack[dep] {
				lowlinks[sym] = min(lowlinks[sym], indices[dep])
			}
		}

		if lowlinks[sym] == indices[sym] {
			var scc []Symbol
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == sym {
					break
				}
			}
			cyclic := len(scc) > 1 || slices.Contains(g.edges[scc[0]], scc[0])
			visit(scc, cyclic)
		}
	}

	for _, sym := range g.sortedNodes() {
		if _, visited := indices[sym]; !visited {
			strongConnect(sym)
		}
	}
}
