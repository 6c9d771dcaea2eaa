// Package document parses Metaschema documents and resolves their imports.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// UnnamedModel is the model name given to a document that declares
// neither a root-name nor a short-name.
const UnnamedModel = "unnamed-imported-metaschema"

// ErrNotMetaschema is returned when a document's root element is not
// METASCHEMA.
var ErrNotMetaschema = errors.New("root element is not METASCHEMA")

// Document is one parsed Metaschema document.
type Document struct {
	// Key is the name the document was requested under: the normalized
	// import href, or the entry model.
	Key string

	Model           string // root-name for entry points, else short-name
	SchemaName      string
	ShortName       string
	DeclaredVersion string // schema-version as written
	Version         string // target version of the run

	IsRoot       bool
	RootName     string // root-name of the root assembly
	RootAssembly string // @name of the root assembly definition

	Hrefs   []string // import/@href in declaration order
	Imports []*Document

	// Root is the METASCHEMA element; nil for documents that failed to parse.
	Root *xmlquery.Node
}

// Valid reports whether the document parsed.
func (d *Document) Valid() bool { return d.Root != nil }

// Import returns the imported document registered under key, or nil.
func (d *Document) Import(key string) *Document {
	for _, imp := range d.Imports {
		if imp.Key == key {
			return imp
		}
	}
	return nil
}

// Info returns the public description of the document.
func (d *Document) Info() model.DocumentInfo {
	info := model.DocumentInfo{
		Model:           d.Model,
		SchemaName:      d.SchemaName,
		ShortName:       d.ShortName,
		DeclaredVersion: d.DeclaredVersion,
		IsRoot:          d.IsRoot,
		Valid:           d.Valid(),
	}
	for _, imp := range d.Imports {
		info.Imports = append(info.Imports, imp.Model)
	}
	return info
}

// Parse reads a Metaschema document and extracts its identity.
func Parse(content []byte, key, version string, q *xmlq.Querier) (*Document, error) {
	top, err := xmlquery.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	root := q.SelectOne(top, "/METASCHEMA")
	if root == nil {
		return nil, fmt.Errorf("parse %s: %w", key, ErrNotMetaschema)
	}

	d := &Document{
		Key:             key,
		Version:         version,
		Root:            root,
		SchemaName:      strings.TrimSpace(q.Atomic(root, "schema-name")),
		ShortName:       strings.TrimSpace(q.Atomic(root, "short-name")),
		DeclaredVersion: strings.TrimSpace(q.Atomic(root, "schema-version")),
	}

	if rootDef := q.SelectOne(root, "define-assembly[root-name]"); rootDef != nil {
		d.RootName = strings.TrimSpace(q.Atomic(rootDef, "root-name"))
		d.RootAssembly = rootDef.SelectAttr("name")
	}
	switch {
	case d.RootName != "":
		d.IsRoot = true
		d.Model = d.RootName
	case d.ShortName != "":
		d.Model = d.ShortName
	default:
		d.Model = UnnamedModel
	}

	for _, n := range q.Select(root, "import/@href") {
		if href := strings.TrimSpace(n.InnerText()); href != "" {
			d.Hrefs = append(d.Hrefs, href)
		}
	}
	return d, nil
}

// Invalid returns a placeholder for a document that could not be parsed.
// It takes part in the import graph but never yields definitions.
func Invalid(key, version string) *Document {
	return &Document{Key: key, Model: key, Version: version}
}

// ModelNameFromHref normalizes an import href into the model name used to
// request it from an asset provider, e.g. "oscal_metadata_metaschema.xml"
// becomes "metadata".
func ModelNameFromHref(href string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(href), `\`, "/"))
	name = strings.TrimPrefix(name, "oscal_")
	for _, suffix := range []string{"_metaschema_RESOLVED.xml", "_metaschema.xml", ".xml"} {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok {
			return trimmed
		}
	}
	return name
}
