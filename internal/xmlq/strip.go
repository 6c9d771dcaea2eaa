package xmlq

import (
	"encoding/xml"
	"strings"

	"github.com/antchfx/xmlquery"
)

// StripNamespaces returns a deep copy of n with namespace prefixes and
// URIs removed from every element and attribute. Namespace declarations
// are dropped. n itself is never modified.
func StripNamespaces(n *xmlquery.Node) *xmlquery.Node {
	c := &xmlquery.Node{
		Type: n.Type,
		Data: n.Data,
	}
	if n.Type == xmlquery.ElementNode {
		for _, a := range n.Attr {
			if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
				continue
			}
			c.Attr = append(c.Attr, xmlquery.Attr{
				Name:  xml.Name{Local: a.Name.Local},
				Value: a.Value,
			})
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		xmlquery.AddChild(c, StripNamespaces(child))
	}
	return c
}

// writeNode serializes n as XML. Text is written verbatim apart from
// escaping, so whitespace between inline elements survives.
func writeNode(b *strings.Builder, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.TextNode:
		_, _ = textEscaper.WriteString(b, n.Data)
	case xmlquery.CharDataNode:
		b.WriteString("<![CDATA[")
		b.WriteString(n.Data)
		b.WriteString("]]>")
	case xmlquery.CommentNode:
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->")
	case xmlquery.ElementNode:
		b.WriteByte('<')
		writeName(b, n.Prefix, n.Data)
		for _, a := range n.Attr {
			b.WriteByte(' ')
			writeName(b, a.Name.Space, a.Name.Local)
			b.WriteString(`="`)
			_, _ = attrEscaper.WriteString(b, a.Value)
			b.WriteByte('"')
		}
		if n.FirstChild == nil {
			b.WriteString("/>")
			return
		}
		b.WriteByte('>')
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c)
		}
		b.WriteString("</")
		writeName(b, n.Prefix, n.Data)
		b.WriteByte('>')
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeNode(b, c)
		}
	}
}

func writeName(b *strings.Builder, prefix, local string) {
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte(':')
	}
	b.WriteString(local)
}

// Quotes only need escaping inside attribute values.
var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
)
