package model

import (
	"iter"
	"strings"
)

// Unbounded is the max-occurs value for an unlimited repetition.
const Unbounded = "unbounded"

// Doc is an accumulated documentation value. The first entry is the one to
// display; later entries are the values it overrode, ordered from the
// reference site down to the base definition.
type Doc []string

// Primary returns the display value, or "" when nothing was declared.
func (d Doc) Primary() string {
	for _, s := range d {
		if s != "" {
			return s
		}
	}
	return ""
}

// Node is one element occurrence in a resolved tree.
//
// Path is parent.Path + "/" + UseName for assemblies and fields, and
// parent.Path + "/@" + UseName for flags. Choice nodes share their
// parent's path. A Recursive node is terminal: it never has flags or
// children.
type Node struct {
	Path     string
	Name     string
	UseName  string
	Kind     Kind
	Datatype string

	MinOccurs string
	MaxOccurs string

	FormalName  Doc
	Description Doc
	Remarks     Doc
	Example     Doc

	Default *string

	GroupAs       string
	GroupAsInXML  string
	GroupAsInJSON string

	JSONKey          string
	JSONValueKey     string
	JSONValueKeyFlag string

	WrappedInXML bool
	Collapsible  bool
	Deprecated   bool
	Sunsetting   string

	Source   []string
	Flags    []*Node
	Children []*Node

	// Sequence orders nodes by resolution time. It carries no meaning
	// beyond diagnostics and is excluded from determinism comparisons.
	Sequence int
}

// IsTerminal reports whether the node has neither flags nor children.
func (n *Node) IsTerminal() bool {
	return len(n.Flags) == 0 && len(n.Children) == 0
}

// Flag returns the flag with the given use-name, or nil.
func (n *Node) Flag(useName string) *Node {
	for _, f := range n.Flags {
		if f.UseName == useName {
			return f
		}
	}
	return nil
}

// Child returns the first child with the given use-name, looking through
// choice nodes, or nil.
func (n *Node) Child(useName string) *Node {
	for _, c := range n.Children {
		if c.Kind == KindChoice {
			if found := c.Child(useName); found != nil {
				return found
			}
			continue
		}
		if c.UseName == useName {
			return c
		}
	}
	return nil
}

// All yields n and every descendant in pre-order, flags before children.
func (n *Node) All() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.yieldAll(yield)
	}
}

func (n *Node) yieldAll(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	for _, f := range n.Flags {
		if !f.yieldAll(yield) {
			return false
		}
	}
	for _, c := range n.Children {
		if !c.yieldAll(yield) {
			return false
		}
	}
	return true
}

// Depth returns the number of path segments below the root.
func (n *Node) Depth() int {
	return strings.Count(n.Path, "/") - 1
}

// Occurrence returns a human-readable cardinality label such as
// "[exactly 1]" or "[0 or more]".
func (n *Node) Occurrence() string {
	return Occurrence(n.MinOccurs, n.MaxOccurs)
}

// Occurrence formats a min/max pair as a cardinality label.
func Occurrence(minOccurs, maxOccurs string) string {
	switch {
	case minOccurs == "0" && maxOccurs == "1":
		return "[0 or 1]"
	case minOccurs == "0" && maxOccurs == Unbounded:
		return "[0 or more]"
	case minOccurs == "1" && maxOccurs == "1":
		return "[exactly 1]"
	case minOccurs == "1" && maxOccurs == Unbounded:
		return "[1 or more]"
	default:
		return "[" + minOccurs + ".." + maxOccurs + "]"
	}
}
