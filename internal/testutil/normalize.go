package testutil

import (
	"strings"

	"github.com/golangoscal/metaschema/model"
)

// Outline flattens a tree into one line per node: indentation by depth,
// use-name, kind, and cardinality. Sequence numbers are left out.
func Outline(tree *model.Tree) []string {
	var lines []string
	for n := range tree.Nodes() {
		lines = append(lines, OutlineLine(n))
	}
	return lines
}

// OutlineLine renders a single node for Outline.
func OutlineLine(n *model.Node) string {
	name := n.UseName
	if n.Kind == model.KindFlag {
		name = "@" + name
	}
	if n.Kind == model.KindChoice {
		name = "(choice)"
	}
	return strings.Repeat("  ", max(n.Depth(), 0)) + name + " " + n.Kind.String() + " " + n.Occurrence()
}

// NormalizeNode converts a resolved node into its fixture form.
func NormalizeNode(n *model.Node) *FixtureNode {
	return &FixtureNode{
		Path:      n.Path,
		Kind:      n.Kind.String(),
		MinOccurs: n.MinOccurs,
		MaxOccurs: n.MaxOccurs,
		Datatype:  n.Datatype,
	}
}
