package graph

import "slices"

// FindCycles returns all strongly connected components with more than one
// node, plus single nodes with a self-loop. Each cycle is sorted and the
// list is ordered by first member, so output is stable across runs.
func (g *Graph) FindCycles() [][]Symbol {
	var sccs [][]Symbol
	g.tarjan(func(scc []Symbol, cyclic bool) {
		if cyclic {
			sccs = append(sccs, normalizeCycle(scc))
		}
	})
	sortCycles(sccs)
	return sccs
}

// HasCycles reports whether the graph contains any cycles.
func (g *Graph) HasCycles() bool {
	return len(g.FindCycles()) > 0
}

func normalizeCycle(scc []Symbol) []Symbol {
	out := slices.Clone(scc)
	slices.SortFunc(out, Compare)
	return out
}

func sortCycles(cycles [][]Symbol) {
	slices.SortFunc(cycles, func(a, b []Symbol) int {
		return Compare(a[0], b[0])
	})
}
