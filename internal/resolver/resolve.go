package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// resolve produces the node for name of the given kind under parentPath.
//
// Reference kinds locate their definition in doc (falling back to imports)
// and merge overrides from the matching reference element in scope, if
// any. Definition kinds search scope first, then the whole document, then
// imports. For KindChoice and KindAny, scope is the choice or any element
// itself and name is ignored.
//
// A nil node with a nil error means the definition does not exist; the
// caller skips it. Errors are fatal to the run.
func (r *runContext) resolve(name string, kind model.Kind, parentPath string, ignoreLocal bool, doc *document.Document, scope *xmlquery.Node, isRoot bool) (*model.Node, error) {
	switch kind {
	case model.KindAssembly, model.KindField, model.KindFlag:
		var ref *xmlquery.Node
		if scope != nil {
			refs := r.q.Select(scope, kind.String()+"[@ref="+xmlq.Literal(name)+"]")
			if len(refs) > 1 {
				r.diag(model.SeverityWarning, types.DiagDefinitionAmbiguous, doc, parentPath, kind, "",
					fmt.Sprintf("%s reference %q appears %d times; using the first", kind, name, len(refs)))
			}
			if len(refs) > 0 {
				ref = refs[0]
			}
		}
		def, ok := r.findDefinition(doc, kind.Definition(), name, nil, ignoreLocal, make(map[*document.Document]bool))
		if !ok {
			r.notFound(doc, kind, name, parentPath)
			return nil, nil
		}
		var refDoc *document.Document
		if ref != nil {
			refDoc = doc
		}
		return r.build(def, ref, refDoc, parentPath, isRoot)

	case model.KindDefineAssembly, model.KindDefineField, model.KindDefineFlag:
		def, ok := r.findDefinition(doc, kind, name, scope, ignoreLocal, make(map[*document.Document]bool))
		if !ok {
			r.notFound(doc, kind, name, parentPath)
			return nil, nil
		}
		return r.build(def, nil, nil, parentPath, isRoot)

	case model.KindChoice:
		return r.choice(scope, doc, parentPath)

	case model.KindAny:
		return r.anyNode(doc, parentPath)

	case model.KindRecursive:
		return nil, fmt.Errorf("%s nodes are synthesized, not resolved", kind)
	}
	return nil, fmt.Errorf("unknown structure kind %v", kind)
}

// resolveReference resolves the reference element ref found in doc.
func (r *runContext) resolveReference(ref *xmlquery.Node, kind model.Kind, doc *document.Document, parentPath string) (*model.Node, error) {
	name := ref.SelectAttr("ref")
	def, ok := r.findDefinition(doc, kind.Definition(), name, nil, false, make(map[*document.Document]bool))
	if !ok {
		r.notFound(doc, kind, name, parentPath)
		return nil, nil
	}
	return r.build(def, ref, doc, parentPath, false)
}

// resolveInline resolves a definition declared in place inside a model or
// definition body.
func (r *runContext) resolveInline(el *xmlquery.Node, kind model.Kind, doc *document.Document, parentPath string) (*model.Node, error) {
	return r.build(r.definitionAt(doc, el, kind), nil, nil, parentPath, false)
}

func (r *runContext) notFound(doc *document.Document, kind model.Kind, name, parentPath string) {
	r.diag(model.SeverityError, types.DiagDefinitionNotFound, doc, parentPath+"/"+name, kind, "",
		fmt.Sprintf("%s %q not found in %s or its imports", kind.Definition(), name, doc.Model))
}

// build creates the node for def, merges overrides from the reference
// element ref (which lives in refDoc), and descends into flags and model.
func (r *runContext) build(def definition, ref *xmlquery.Node, refDoc *document.Document, parentPath string, isRoot bool) (*model.Node, error) {
	if err := r.step(parentPath); err != nil {
		return nil, err
	}

	kind := def.kind.Structure()
	n := &model.Node{
		Name:     def.el.SelectAttr("name"),
		Kind:     kind,
		Sequence: r.nextSeq(),
	}
	n.UseName = r.useName(n.Name, def.el, ref, isRoot)
	n.Path = childPath(parentPath, n.UseName, kind)
	n.Source = []string{def.doc.Model}
	if refDoc != nil && refDoc != def.doc {
		n.Source = append(n.Source, refDoc.Model)
	}

	var st siteState
	r.applySite(n, &st, def.el, def.doc, true)
	if ref != nil {
		r.applySite(n, &st, ref, refDoc, false)
	}
	applyDefaults(n, &st, isRoot)

	if r.TraceEnabled() {
		r.Trace("resolving",
			slog.String("path", n.Path),
			slog.String("kind", def.kind.String()),
			slog.String("document", def.doc.Model))
	}

	r.link(def.sym)
	if kind != model.KindFlag {
		if r.active[def.sym] > 0 || hasRepeatedEnding(n.Path, "/"+n.UseName, 2) {
			r.diag(model.SeverityInfo, types.DiagRecursiveTruncated, def.doc, n.Path, kind, "",
				fmt.Sprintf("%s %q re-enters itself; emitted as recursive", def.kind, n.Name))
			n.Kind = model.KindRecursive
			return n, nil
		}
	}

	r.enter(def.sym)
	defer r.leave()

	if err := r.resolveFlags(n, def); err != nil {
		return nil, err
	}
	if def.kind == model.KindDefineAssembly {
		if m := childElement(def.el, "model"); m != nil {
			children, err := r.resolveModel(m, def.doc, n.Path)
			if err != nil {
				return nil, err
			}
			n.Children = children
		}
	}
	return n, nil
}

// useName picks the serialization name: reference-site use-name, then
// definition use-name, then the definition name. The root assembly uses
// its root-name.
func (r *runContext) useName(name string, def, ref *xmlquery.Node, isRoot bool) string {
	useName := name
	if v := childText(def, "use-name"); v != "" {
		useName = v
	}
	if ref != nil {
		if v := childText(ref, "use-name"); v != "" {
			useName = v
		}
	}
	if isRoot {
		if v := childText(def, "root-name"); v != "" {
			useName = v
		}
	}
	return useName
}

func (r *runContext) resolveFlags(n *model.Node, def definition) error {
	for c := def.el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		var (
			f   *model.Node
			err error
		)
		switch c.Data {
		case "define-flag":
			f, err = r.resolveInline(c, model.KindDefineFlag, def.doc, n.Path)
		case "flag":
			f, err = r.resolveReference(c, model.KindFlag, def.doc, n.Path)
		default:
			continue
		}
		if err != nil {
			return err
		}
		if f != nil {
			n.Flags = append(n.Flags, f)
		}
	}
	return nil
}

// resolveModel resolves the children of a model, choice, or choice-group
// element in document order.
func (r *runContext) resolveModel(m *xmlquery.Node, doc *document.Document, parentPath string) ([]*model.Node, error) {
	var children []*model.Node
	for c := m.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		var (
			child *model.Node
			err   error
		)
		switch c.Data {
		case "assembly":
			child, err = r.resolveReference(c, model.KindAssembly, doc, parentPath)
		case "field":
			child, err = r.resolveReference(c, model.KindField, doc, parentPath)
		case "define-assembly":
			child, err = r.resolveInline(c, model.KindDefineAssembly, doc, parentPath)
		case "define-field":
			child, err = r.resolveInline(c, model.KindDefineField, doc, parentPath)
		case "choice":
			child, err = r.resolve("", model.KindChoice, parentPath, false, doc, c, false)
		case "choice-group":
			child, err = r.choiceGroup(c, doc, parentPath)
		case "any":
			child, err = r.resolve("", model.KindAny, parentPath, false, doc, c, false)
		case "group-as", "discriminator", "json-key":
			// choice-group metadata, read by choiceGroup.
		default:
			r.diag(model.SeverityInfo, types.DiagUnhandledChild, doc, parentPath, 0, c.Data,
				fmt.Sprintf("model child <%s> is not resolved", c.Data))
		}
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

// choice synthesizes a node listing every alternative of a choice. It
// shares its parent's path.
func (r *runContext) choice(el *xmlquery.Node, doc *document.Document, parentPath string) (*model.Node, error) {
	if err := r.step(parentPath); err != nil {
		return nil, err
	}
	n := &model.Node{
		Path:      parentPath,
		Name:      "choice",
		UseName:   "choice",
		Kind:      model.KindChoice,
		MinOccurs: "1",
		MaxOccurs: "1",
		Source:    []string{doc.Model},
		Sequence:  r.nextSeq(),
	}
	if el == nil {
		return n, nil
	}
	children, err := r.resolveModel(el, doc, parentPath)
	if err != nil {
		return nil, err
	}
	n.Children = children
	return n, nil
}

// choiceGroup resolves a polymorphic choice-group as a choice carrying the
// group's cardinality and group-as metadata. Discriminator handling is
// not modelled and is reported.
func (r *runContext) choiceGroup(el *xmlquery.Node, doc *document.Document, parentPath string) (*model.Node, error) {
	n, err := r.choice(el, doc, parentPath)
	if err != nil || n == nil {
		return n, err
	}
	n.Name = "choice-group"
	n.UseName = "choice-group"
	n.MinOccurs = attrOr(el, "min-occurs", "0")
	n.MaxOccurs = attrOr(el, "max-occurs", "1")
	if g := childElement(el, "group-as"); g != nil {
		n.GroupAs = g.SelectAttr("name")
		n.GroupAsInXML = g.SelectAttr("in-xml")
		n.GroupAsInJSON = g.SelectAttr("in-json")
	}
	if k := childElement(el, "json-key"); k != nil {
		n.JSONKey = k.SelectAttr("flag-ref")
	}
	r.diag(model.SeverityInfo, types.DiagChoiceGroupPartial, doc, parentPath, model.KindChoice, "choice-group",
		"choice-group alternatives are listed; discriminator values are not applied")
	return n, nil
}

// anyNode synthesizes the terminal marker for an open extension point.
func (r *runContext) anyNode(doc *document.Document, parentPath string) (*model.Node, error) {
	if err := r.step(parentPath); err != nil {
		return nil, err
	}
	n := &model.Node{
		Path:      parentPath + "/*",
		Name:      "any",
		UseName:   "*",
		Kind:      model.KindAny,
		MinOccurs: "0",
		MaxOccurs: model.Unbounded,
		Source:    []string{doc.Model},
		Sequence:  r.nextSeq(),
	}
	r.diag(model.SeverityInfo, types.DiagAnyWildcard, doc, n.Path, model.KindAny, "any",
		"open extension point accepts any content and is not validated")
	return n, nil
}

func childPath(parentPath, useName string, kind model.Kind) string {
	if kind == model.KindFlag {
		return parentPath + "/@" + useName
	}
	return parentPath + "/" + useName
}

// hasRepeatedEnding reports whether s ends with suffix repeated count
// times in a row, e.g. "/a/part/part" with suffix "/part" and count 2.
func hasRepeatedEnding(s, suffix string, count int) bool {
	if suffix == "" || count <= 0 {
		return false
	}
	return strings.HasSuffix(s, strings.Repeat(suffix, count))
}

func childElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name {
			return c
		}
	}
	return nil
}

func childText(n *xmlquery.Node, name string) string {
	if c := childElement(n, name); c != nil {
		return strings.TrimSpace(c.InnerText())
	}
	return ""
}

func attrOr(n *xmlquery.Node, name, fallback string) string {
	if v := strings.TrimSpace(n.SelectAttr(name)); v != "" {
		return v
	}
	return fallback
}
