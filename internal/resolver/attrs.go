package resolver

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/mod/semver"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/model"
)

// siteState tracks values whose absence matters after both the definition
// and the reference site have been applied.
type siteState struct {
	wrapped *bool
}

// structuralChildren are element children consumed outside applySite.
var structuralChildren = map[string]bool{
	"use-name":    true,
	"root-name":   true,
	"define-flag": true,
	"flag":        true,
	"model":       true,
}

// docChildren are the documentation elements, in accumulation order.
var docChildren = []string{"formal-name", "description", "remarks", "example"}

// applySite applies the attributes and body of one definition or
// reference element onto n. Later sites override earlier ones, except for
// documentation, where the later value is prepended.
func (r *runContext) applySite(n *model.Node, st *siteState, el *xmlquery.Node, doc *document.Document, definitionSite bool) {
	for _, a := range el.Attr {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		v := strings.TrimSpace(a.Value)
		switch a.Name.Local {
		case "name", "ref", "scope":
		case "as-type":
			n.Datatype = v
		case "min-occurs":
			n.MinOccurs = v
		case "max-occurs":
			n.MaxOccurs = v
		case "required":
			switch v {
			case "yes":
				n.MinOccurs, n.MaxOccurs = "1", "1"
			case "no":
				n.MinOccurs, n.MaxOccurs = "0", "1"
			}
		case "collapsible":
			n.Collapsible = v == "yes"
		case "deprecated":
			r.applyDeprecation(n, v, doc)
		case "default":
			if !definitionSite {
				r.diag(model.SeverityWarning, types.DiagDefaultOnReference, doc, n.Path, n.Kind, "@default",
					fmt.Sprintf("default %q on a reference is ignored", v))
				continue
			}
			n.Default = &v
		case "in-xml":
			wrapped := v == "WRAPPED" || v == "WITH_WRAPPER"
			st.wrapped = &wrapped
		default:
			r.diag(model.SeverityInfo, types.DiagUnhandledAttribute, doc, n.Path, n.Kind, "@"+a.Name.Local,
				fmt.Sprintf("attribute %s=%q is not interpreted", a.Name.Local, v))
		}
	}

	r.applyDocs(n, el)

	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode || structuralChildren[c.Data] {
			continue
		}
		switch c.Data {
		case "formal-name", "description", "remarks", "example":
		case "json-key":
			n.JSONKey = c.SelectAttr("flag-ref")
		case "json-value-key":
			n.JSONValueKey = strings.TrimSpace(c.InnerText())
		case "json-value-key-flag":
			n.JSONValueKeyFlag = c.SelectAttr("flag-ref")
		case "group-as":
			if n.Kind == model.KindFlag {
				r.diag(model.SeverityWarning, types.DiagGroupAsOnFlag, doc, n.Path, n.Kind, "group-as",
					"group-as is not valid on a flag and is ignored")
				continue
			}
			n.GroupAs = c.SelectAttr("name")
			n.GroupAsInXML = c.SelectAttr("in-xml")
			n.GroupAsInJSON = c.SelectAttr("in-json")
		case "constraint":
			r.diag(model.SeverityInfo, types.DiagConstraintNotEvaluated, doc, n.Path, n.Kind, "constraint",
				"constraints are recorded but not evaluated")
		default:
			r.diag(model.SeverityInfo, types.DiagUnhandledChild, doc, n.Path, n.Kind, c.Data,
				fmt.Sprintf("child <%s> is not interpreted", c.Data))
		}
	}
}

// applyDocs prepends this site's documentation values.
func (r *runContext) applyDocs(n *model.Node, el *xmlquery.Node) {
	targets := []*model.Doc{&n.FormalName, &n.Description, &n.Remarks, &n.Example}
	for i, name := range docChildren {
		if v := r.q.Markup(el, name+"/node()"); v != "" {
			*targets[i] = append(model.Doc{v}, *targets[i]...)
		}
	}
}

// applyDeprecation compares a declared deprecation version with the
// target: at or before the target the node is deprecated, after it the
// node is sunsetting.
func (r *runContext) applyDeprecation(n *model.Node, declared string, doc *document.Document) {
	dv := NormalizeVersion(declared)
	if !semver.IsValid(dv) || !semver.IsValid(r.version) {
		r.diag(model.SeverityWarning, types.DiagInvalidVersion, doc, n.Path, n.Kind, "@deprecated",
			fmt.Sprintf("cannot compare deprecation version %q with %q", declared, r.version))
		return
	}
	if semver.Compare(dv, r.version) <= 0 {
		n.Deprecated = true
		n.Sunsetting = ""
		return
	}
	n.Deprecated = false
	n.Sunsetting = declared
}

// applyDefaults fills everything still unset after both sites.
func applyDefaults(n *model.Node, st *siteState, isRoot bool) {
	if n.Datatype == "" {
		n.Datatype = "string"
	}
	if n.MinOccurs == "" {
		n.MinOccurs = "0"
	}
	if n.MaxOccurs == "" {
		n.MaxOccurs = "1"
	}
	if isRoot {
		n.MinOccurs, n.MaxOccurs = "1", "1"
	}
	switch {
	case st.wrapped != nil:
		n.WrappedInXML = *st.wrapped
	case n.Kind == model.KindAssembly || n.Kind == model.KindField:
		n.WrappedInXML = true
	}
}
