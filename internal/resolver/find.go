package resolver

import (
	"fmt"
	"log/slog"

	"github.com/antchfx/xmlquery"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/graph"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// definition is a located define-assembly, define-field, or define-flag.
type definition struct {
	doc  *document.Document
	el   *xmlquery.Node
	kind model.Kind
	sym  graph.Symbol
}

// definitionExpr selects definitions of kind named name among the
// children of the context node.
func definitionExpr(kind model.Kind, name string, ignoreLocal bool) string {
	expr := kind.String() + "[@name=" + xmlq.Literal(name) + "]"
	if ignoreLocal {
		expr += "[not(@scope='local')]"
	}
	return expr
}

// findDefinition locates the definition of kind named name, starting in
// doc. When scope is set it is searched first and the document root second.
// If doc has no match, imports are searched depth-first in declaration
// order with local definitions hidden. searched holds the documents already
// visited by this fallback chain; each is searched at most once.
func (r *runContext) findDefinition(doc *document.Document, kind model.Kind, name string, scope *xmlquery.Node, ignoreLocal bool, searched map[*document.Document]bool) (definition, bool) {
	if searched[doc] {
		return definition{}, false
	}
	searched[doc] = true

	if doc.Valid() {
		expr := definitionExpr(kind, name, ignoreLocal)
		var matches []*xmlquery.Node
		if scope != nil {
			matches = r.q.Select(scope, expr)
		}
		if len(matches) == 0 {
			matches = r.q.Select(doc.Root, expr)
		}
		if len(matches) > 0 {
			if len(matches) > 1 {
				r.diag(model.SeverityWarning, types.DiagDefinitionAmbiguous, doc, "", kind, "",
					fmt.Sprintf("%s %q defined %d times in %s; using the first", kind, name, len(matches), doc.Model))
			}
			if r.TraceEnabled() {
				r.Trace("definition found",
					slog.String("kind", kind.String()),
					slog.String("name", name),
					slog.String("document", doc.Model))
			}
			return r.definitionAt(doc, matches[0], kind), true
		}
	}

	for _, imp := range doc.Imports {
		if def, ok := r.findDefinition(imp, kind, name, nil, true, searched); ok {
			return def, true
		}
	}
	return definition{}, false
}

// definitionAt wraps a definition element. Inline definitions are
// qualified by their enclosing definitions so that two local definitions
// sharing a name stay distinct.
func (r *runContext) definitionAt(doc *document.Document, el *xmlquery.Node, kind model.Kind) definition {
	name := el.SelectAttr("name")
	for p := el.Parent; p != nil && p != doc.Root; p = p.Parent {
		if p.Type != xmlquery.ElementNode {
			continue
		}
		switch p.Data {
		case "define-assembly", "define-field":
			name = p.SelectAttr("name") + "/" + name
		}
	}
	r.models[doc.Key] = doc.Model
	return definition{
		doc:  doc,
		el:   el,
		kind: kind,
		sym:  graph.Symbol{Document: doc.Key, Kind: kind.String(), Name: name},
	}
}
