// Package serialize emits resolved trees as ordered JSON or YAML documents
// together with their diagnostics report.
package serialize

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/golangoscal/metaschema/model"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml, or yml.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json or yaml)", s)
}

// FileName returns the deterministic output file name for a (version,
// model) pair, e.g. OSCAL_v1.1.3_catalog_metaschema.json.
func FileName(version, model string, format Format) string {
	return fmt.Sprintf("OSCAL_%s_%s_metaschema.%s", version, model, format)
}

// Document is the top-level output structure.
type Document struct {
	OSCALVersion string         `json:"oscal_version" yaml:"oscal_version"`
	OSCALModel   string         `json:"oscal_model" yaml:"oscal_model"`
	SchemaName   string         `json:"schema_name" yaml:"schema_name"`
	Nodes        *Node          `json:"nodes" yaml:"nodes"`
	Documents    []DocumentJSON `json:"documents,omitempty" yaml:"documents,omitempty"`
	Diagnostics  []Diagnostic   `json:"diagnostics" yaml:"diagnostics"`
}

// Node is the serialized form of a resolved node. Field order is the
// output key order: identity, documentation, flags, children.
type Node struct {
	Path               string   `json:"path" yaml:"path"`
	Name               string   `json:"name" yaml:"name"`
	UseName            string   `json:"use-name" yaml:"use-name"`
	StructureType      string   `json:"structure-type" yaml:"structure-type"`
	Datatype           string   `json:"datatype,omitempty" yaml:"datatype,omitempty"`
	MinOccurs          string   `json:"min-occurs" yaml:"min-occurs"`
	MaxOccurs          string   `json:"max-occurs" yaml:"max-occurs"`
	FormalName         string   `json:"formal-name,omitempty" yaml:"formal-name,omitempty"`
	FormalNameHistory  []string `json:"formal-name-history,omitempty" yaml:"formal-name-history,omitempty"`
	Description        string   `json:"description,omitempty" yaml:"description,omitempty"`
	DescriptionHistory []string `json:"description-history,omitempty" yaml:"description-history,omitempty"`
	Remarks            string   `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	RemarksHistory     []string `json:"remarks-history,omitempty" yaml:"remarks-history,omitempty"`
	Example            string   `json:"example,omitempty" yaml:"example,omitempty"`
	ExampleHistory     []string `json:"example-history,omitempty" yaml:"example-history,omitempty"`
	Default            *string  `json:"default,omitempty" yaml:"default,omitempty"`
	GroupAs            string   `json:"group-as,omitempty" yaml:"group-as,omitempty"`
	GroupAsInXML       string   `json:"group-as-in-xml,omitempty" yaml:"group-as-in-xml,omitempty"`
	GroupAsInJSON      string   `json:"group-as-in-json,omitempty" yaml:"group-as-in-json,omitempty"`
	JSONKey            string   `json:"json-key,omitempty" yaml:"json-key,omitempty"`
	JSONValueKey       string   `json:"json-value-key,omitempty" yaml:"json-value-key,omitempty"`
	JSONValueFlag      string   `json:"json-value-key-flag,omitempty" yaml:"json-value-key-flag,omitempty"`
	WrappedInXML       bool     `json:"wrapped-in-xml" yaml:"wrapped-in-xml"`
	Deprecated         bool     `json:"deprecated" yaml:"deprecated"`
	Sunsetting         string   `json:"sunsetting,omitempty" yaml:"sunsetting,omitempty"`
	Source             []string `json:"source" yaml:"source"`
	Sequence           *int     `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	Flags              []*Node  `json:"flags,omitempty" yaml:"flags,omitempty"`
	Children           []*Node  `json:"children,omitempty" yaml:"children,omitempty"`
}

// DocumentJSON describes one document that took part in the run.
type DocumentJSON struct {
	Model         string   `json:"model" yaml:"model"`
	SchemaName    string   `json:"schema-name,omitempty" yaml:"schema-name,omitempty"`
	SchemaVersion string   `json:"schema-version,omitempty" yaml:"schema-version,omitempty"`
	Root          bool     `json:"root" yaml:"root"`
	Valid         bool     `json:"valid" yaml:"valid"`
	Imports       []string `json:"imports,omitempty" yaml:"imports,omitempty"`
}

// Diagnostic is one entry of the coverage and problem report.
type Diagnostic struct {
	Severity      string `json:"severity" yaml:"severity"`
	Code          string `json:"code" yaml:"code"`
	Message       string `json:"message" yaml:"message"`
	Document      string `json:"document,omitempty" yaml:"document,omitempty"`
	Path          string `json:"path,omitempty" yaml:"path,omitempty"`
	StructureType string `json:"structure-type,omitempty" yaml:"structure-type,omitempty"`
	Construct     string `json:"construct,omitempty" yaml:"construct,omitempty"`
}

type options struct {
	sequence  bool
	documents bool
}

// Option adjusts conversion.
type Option func(*options)

// WithoutSequence drops sequence numbers so that two runs over the same
// inputs serialize byte-identically.
func WithoutSequence() Option {
	return func(o *options) { o.sequence = false }
}

// WithoutDocuments drops the document list.
func WithoutDocuments() Option {
	return func(o *options) { o.documents = false }
}

// Convert builds the output structure. The tree is not modified.
func Convert(tree *model.Tree, opts ...Option) *Document {
	o := options{sequence: true, documents: true}
	for _, opt := range opts {
		opt(&o)
	}
	out := &Document{
		OSCALVersion: tree.Version(),
		OSCALModel:   tree.Model(),
		SchemaName:   tree.SchemaName(),
		Diagnostics:  ConvertDiagnostics(tree.Diagnostics()),
	}
	if root := tree.Root(); root != nil {
		out.Nodes = convertNode(root, o)
	}
	if o.documents {
		for _, d := range tree.Documents() {
			out.Documents = append(out.Documents, DocumentJSON{
				Model:         d.Model,
				SchemaName:    d.SchemaName,
				SchemaVersion: d.DeclaredVersion,
				Root:          d.IsRoot,
				Valid:         d.Valid,
				Imports:       d.Imports,
			})
		}
	}
	return out
}

func convertNode(n *model.Node, o options) *Node {
	out := &Node{
		Path:               n.Path,
		Name:               n.Name,
		UseName:            n.UseName,
		StructureType:      n.Kind.String(),
		Datatype:           n.Datatype,
		MinOccurs:          n.MinOccurs,
		MaxOccurs:          n.MaxOccurs,
		FormalName:         n.FormalName.Primary(),
		FormalNameHistory:  history(n.FormalName),
		Description:        n.Description.Primary(),
		DescriptionHistory: history(n.Description),
		Remarks:            n.Remarks.Primary(),
		RemarksHistory:     history(n.Remarks),
		Example:            n.Example.Primary(),
		ExampleHistory:     history(n.Example),
		Default:            n.Default,
		GroupAs:            n.GroupAs,
		GroupAsInXML:       n.GroupAsInXML,
		GroupAsInJSON:      n.GroupAsInJSON,
		JSONKey:            n.JSONKey,
		JSONValueKey:       n.JSONValueKey,
		JSONValueFlag:      n.JSONValueKeyFlag,
		WrappedInXML:       n.WrappedInXML,
		Deprecated:         n.Deprecated,
		Sunsetting:         n.Sunsetting,
		Source:             n.Source,
	}
	if o.sequence {
		seq := n.Sequence
		out.Sequence = &seq
	}
	for _, f := range n.Flags {
		out.Flags = append(out.Flags, convertNode(f, o))
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, convertNode(c, o))
	}
	return out
}

// history returns the values a documentation entry overrode, nearest
// first, or nil when nothing was overridden.
func history(d model.Doc) []string {
	var out []string
	seen := false
	for _, v := range d {
		if v == "" {
			continue
		}
		if !seen {
			seen = true
			continue
		}
		out = append(out, v)
	}
	return out
}

// ConvertDiagnostics converts diagnostics for output. The result is never
// nil so an empty report encodes as [].
func ConvertDiagnostics(diags []model.Diagnostic) []Diagnostic {
	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		entry := Diagnostic{
			Severity:  d.Severity.String(),
			Code:      d.Code,
			Message:   d.Message,
			Document:  d.Document,
			Path:      d.Path,
			Construct: d.Construct,
		}
		if d.Kind != 0 {
			entry.StructureType = d.Kind.String()
		}
		out = append(out, entry)
	}
	return out
}

// Write encodes tree to w in the given format.
func Write(w io.Writer, tree *model.Tree, format Format, opts ...Option) error {
	return Encode(w, Convert(tree, opts...), format)
}

// Encode writes any output value in the given format. JSON output keeps
// markup characters unescaped.
func Encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q", format)
}
