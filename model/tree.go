package model

import (
	"iter"
	"slices"
)

// DocumentInfo describes one Metaschema document that took part in a run.
type DocumentInfo struct {
	Model           string   // model name (root-name or short-name)
	SchemaName      string   // schema-name text
	ShortName       string   // short-name text
	DeclaredVersion string   // schema-version as written, "" if absent
	IsRoot          bool     // declares a root assembly
	Imports         []string // imported model names in declaration order
	Valid           bool     // parsed successfully
}

// Tree is the result of one resolution run.
type Tree struct {
	root        *Node
	version     string
	model       string
	schemaName  string
	documents   []DocumentInfo
	diagnostics []Diagnostic
	steps       int
}

// Root returns the resolved root node, or nil if the root definition
// could not be found.
func (t *Tree) Root() *Node { return t.root }

// Version returns the target schema version of the run.
func (t *Tree) Version() string { return t.version }

// Model returns the entry document's model name.
func (t *Tree) Model() string { return t.model }

// SchemaName returns the entry document's schema-name.
func (t *Tree) SchemaName() string { return t.schemaName }

// Documents lists the documents of the run with every import before its
// importers, so the entry document is last.
func (t *Tree) Documents() []DocumentInfo { return slices.Clone(t.documents) }
func (t *Tree) Diagnostics() []Diagnostic { return slices.Clone(t.diagnostics) }
func (t *Tree) Steps() int                { return t.steps }

// Document returns info for the named model, if it took part in the run.
func (t *Tree) Document(name string) (DocumentInfo, bool) {
	for _, d := range t.documents {
		if d.Model == name {
			return d, true
		}
	}
	return DocumentInfo{}, false
}

// Nodes yields every node of the tree in pre-order.
func (t *Tree) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		if t.root != nil {
			t.root.yieldAll(yield)
		}
	}
}

// Find returns the first node in pre-order with the given path, or nil.
// Choice nodes share their parent's path, so the parent is returned.
func (t *Tree) Find(path string) *Node {
	for n := range t.Nodes() {
		if n.Path == path {
			return n
		}
	}
	return nil
}

// NodeCount returns the number of nodes in the tree.
func (t *Tree) NodeCount() int {
	count := 0
	for range t.Nodes() {
		count++
	}
	return count
}

func (t *Tree) HasErrors() bool {
	for _, d := range t.diagnostics {
		if d.Severity <= SeverityError {
			return true
		}
	}
	return false
}
