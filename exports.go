package metaschema

import (
	"io"
	"os"
	"path/filepath"

	"github.com/golangoscal/metaschema/internal/serialize"
	"github.com/golangoscal/metaschema/model"
)

// Type aliases for public API - all types come from the model subpackage.

// Tree is the result of one resolution run.
type Tree = model.Tree

// Node is one resolved element, attribute, choice, wildcard, or recursion
// point.
type Node = model.Node

// Kind identifies what a node represents.
type Kind = model.Kind

// Doc holds documentation text, the reference site's first.
type Doc = model.Doc

// DocumentInfo describes a document that took part in a run.
type DocumentInfo = model.DocumentInfo

// Diagnostic represents a document problem or coverage note.
type Diagnostic = model.Diagnostic

// DiagnosticConfig controls diagnostic filtering and failure.
type DiagnosticConfig = model.DiagnosticConfig

// Severity for diagnostics.
type Severity = model.Severity

// StrictnessLevel names a diagnostic preset.
type StrictnessLevel = model.StrictnessLevel

// Format is a tree output encoding.
type Format = serialize.Format

// Output formats.
const (
	FormatJSON = serialize.FormatJSON
	FormatYAML = serialize.FormatYAML
)

// WriteOption adjusts tree output.
type WriteOption = serialize.Option

// WithoutSequence drops node sequence numbers from output.
func WithoutSequence() WriteOption { return serialize.WithoutSequence() }

// ParseFormat accepts json, yaml, or yml.
func ParseFormat(s string) (Format, error) { return serialize.ParseFormat(s) }

// OutputFileName returns the conventional output file name for a tree,
// e.g. OSCAL_v1.1.3_catalog_metaschema.json.
func OutputFileName(tree *Tree, format Format) string {
	return serialize.FileName(tree.Version(), tree.Model(), format)
}

// Write encodes tree to w.
func Write(w io.Writer, tree *Tree, format Format, opts ...WriteOption) error {
	return serialize.Write(w, tree, format, opts...)
}

// WriteFile writes tree into dir under OutputFileName and returns the path.
func WriteFile(dir string, tree *Tree, format Format, opts ...WriteOption) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, OutputFileName(tree, format))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := serialize.Write(f, tree, format, opts...); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// WriteReport prints tree's diagnostics as an aligned table.
func WriteReport(w io.Writer, tree *Tree) error {
	return serialize.WriteReport(w, tree.Diagnostics())
}
