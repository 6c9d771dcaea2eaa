package model

// Builder assembles a Tree. It is used by the resolver; callers normally
// receive finished trees from the metaschema package.
type Builder struct {
	tree *Tree
}

// NewBuilder creates a builder for a run targeting version.
func NewBuilder(version string) *Builder {
	return &Builder{tree: &Tree{version: version}}
}

// Tree returns the built tree.
func (b *Builder) Tree() *Tree {
	return b.tree
}

// SetEntry records the entry document's identity.
func (b *Builder) SetEntry(model, schemaName string) {
	b.tree.model = model
	b.tree.schemaName = schemaName
}

func (b *Builder) SetRoot(n *Node) { b.tree.root = n }
func (b *Builder) SetSteps(n int)  { b.tree.steps = n }

func (b *Builder) AddDocument(d DocumentInfo) {
	b.tree.documents = append(b.tree.documents, d)
}

func (b *Builder) AddDiagnostic(d Diagnostic) {
	b.tree.diagnostics = append(b.tree.diagnostics, d)
}

// DiagnosticCount returns the number of diagnostics recorded so far.
func (b *Builder) DiagnosticCount() int {
	return len(b.tree.diagnostics)
}
