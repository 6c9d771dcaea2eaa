// Package xmlq is the XML query layer: compiled XPath selection over
// parsed Metaschema documents, atomic string evaluation, and markup
// extraction with namespace prefixes removed.
//
// A Querier caches compiled expressions and is not safe for concurrent
// use; each resolution run owns one.
package xmlq

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/golangoscal/metaschema/internal/types"
)

// ErrorFunc receives expression compile and evaluation failures.
type ErrorFunc func(expr string, err error)

// Querier evaluates XPath expressions against xmlquery trees.
type Querier struct {
	types.Logger
	exprs   map[string]*xpath.Expr
	onError ErrorFunc
	queries int
}

// New returns a Querier. Failures are logged on logger and forwarded to
// onError when it is non-nil.
func New(logger *slog.Logger, onError ErrorFunc) *Querier {
	return &Querier{
		Logger:  types.Logger{L: types.Component(logger, "xmlq")},
		exprs:   make(map[string]*xpath.Expr),
		onError: onError,
	}
}

// Queries returns the number of expressions evaluated so far.
func (q *Querier) Queries() int { return q.queries }

func (q *Querier) compile(expr string) (*xpath.Expr, error) {
	if e, ok := q.exprs[expr]; ok {
		return e, nil
	}
	e, err := xpath.Compile(expr)
	if err != nil {
		return nil, err
	}
	q.exprs[expr] = e
	return e, nil
}

func (q *Querier) fail(expr string, err error) {
	q.Log(slog.LevelError, "xpath failure",
		slog.String("expr", expr),
		slog.String("error", err.Error()))
	if q.onError != nil {
		q.onError(expr, err)
	}
}

// Select returns every node matching expr relative to ctx, in document
// order. Empty results and failures both return nil; failures are logged.
func (q *Querier) Select(ctx *xmlquery.Node, expr string) (nodes []*xmlquery.Node) {
	if ctx == nil {
		return nil
	}
	e, err := q.compile(expr)
	if err != nil {
		q.fail(expr, err)
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			q.fail(expr, fmt.Errorf("evaluation panic: %v", r))
			nodes = nil
		}
	}()
	q.queries++
	nodes = xmlquery.QuerySelectorAll(ctx, e)
	if q.TraceEnabled() {
		q.Trace("select", slog.String("expr", expr), slog.Int("matches", len(nodes)))
	}
	if len(nodes) == 0 {
		return nil
	}
	return nodes
}

// SelectOne returns the first node matching expr, or nil.
func (q *Querier) SelectOne(ctx *xmlquery.Node, expr string) *xmlquery.Node {
	nodes := q.Select(ctx, expr)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// Atomic evaluates expr and returns its string value: the value of the
// first selected node for node-set results, or the formatted scalar for
// string, number, and boolean results. Failures and empty results
// return "".
func (q *Querier) Atomic(ctx *xmlquery.Node, expr string) (s string) {
	if ctx == nil {
		return ""
	}
	e, err := q.compile(expr)
	if err != nil {
		q.fail(expr, err)
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			q.fail(expr, fmt.Errorf("evaluation panic: %v", r))
			s = ""
		}
	}()
	q.queries++
	switch v := e.Evaluate(xmlquery.CreateXPathNavigator(ctx)).(type) {
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	case *xpath.NodeIterator:
		if v.MoveNext() {
			return v.Current().Value()
		}
	}
	return ""
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

// Markup resolves expr and returns the inner content of each match with
// inline markup preserved and namespace prefixes removed. A trailing
// "/text()" or "/node()" step is ignored so that callers may address
// either the element or its content. Plain-text matches are trimmed.
// Multiple matches are concatenated.
func (q *Querier) Markup(ctx *xmlquery.Node, expr string) string {
	expr = strings.TrimSuffix(expr, "/text()")
	expr = strings.TrimSuffix(expr, "/node()")
	var b strings.Builder
	for _, n := range q.Select(ctx, expr) {
		b.WriteString(InnerMarkup(n))
	}
	return b.String()
}

// InnerMarkup serializes the content of n. Elements with element
// children are written as namespace-free XML; anything else yields its
// trimmed text.
func InnerMarkup(n *xmlquery.Node) string {
	if !hasElementChild(n) {
		return strings.TrimSpace(n.InnerText())
	}
	clean := StripNamespaces(n)
	var b strings.Builder
	for c := clean.FirstChild; c != nil; c = c.NextSibling {
		writeNode(&b, c)
	}
	return strings.TrimSpace(b.String())
}

func hasElementChild(n *xmlquery.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}

// Literal quotes s as an XPath string literal.
func Literal(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(parts, `, "'", `) + ")"
}
