// Package testutil builds Metaschema fixtures for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"testing/fstest"
)

// Namespace is the Metaschema XML namespace.
const Namespace = "http://csrc.nist.gov/ns/oscal/metaschema/1.0"

// Metaschema describes a fixture document.
type Metaschema struct {
	SchemaName string
	ShortName  string
	Version    string   // schema-version, defaults to 1.1.3
	Imports    []string // import hrefs
	Body       string   // definitions, written verbatim
}

// XML renders the document.
func (m Metaschema) XML() string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, "<METASCHEMA xmlns=%q abstract=\"no\">\n", Namespace)
	name := m.SchemaName
	if name == "" {
		name = "Test " + m.ShortName + " Model"
	}
	fmt.Fprintf(&b, "  <schema-name>%s</schema-name>\n", name)
	version := m.Version
	if version == "" {
		version = "1.1.3"
	}
	fmt.Fprintf(&b, "  <schema-version>%s</schema-version>\n", version)
	if m.ShortName != "" {
		fmt.Fprintf(&b, "  <short-name>%s</short-name>\n", m.ShortName)
	}
	for _, href := range m.Imports {
		fmt.Fprintf(&b, "  <import href=%q/>\n", href)
	}
	b.WriteString(m.Body)
	b.WriteString("\n</METASCHEMA>\n")
	return b.String()
}

// Href returns the import href a feed would use for model.
func Href(model string) string {
	return "oscal_" + model + "_metaschema.xml"
}

// Files lays documents out the way a release directory does:
// <version>/oscal_<model>_metaschema.xml.
func Files(version string, docs map[string]string) fstest.MapFS {
	fsys := make(fstest.MapFS, len(docs))
	for model, content := range docs {
		fsys[version+"/"+Href(model)] = &fstest.MapFile{Data: []byte(content), Mode: 0o644}
	}
	return fsys
}

// FixtureNode is one expected node in a golden outline file.
type FixtureNode struct {
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	MinOccurs string `json:"min"`
	MaxOccurs string `json:"max"`
	Datatype  string `json:"datatype,omitempty"`
}

// LoadFixture loads a golden outline and returns nodes keyed by path and
// kind, so a choice and its parent at the same path stay distinct.
func LoadFixture(t testing.TB, path string) map[string]*FixtureNode {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", path, err)
	}
	var nodes []*FixtureNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		t.Fatalf("failed to parse fixture %s: %v", path, err)
	}
	byKey := make(map[string]*FixtureNode, len(nodes))
	for _, n := range nodes {
		byKey[Key(n.Path, n.Kind)] = n
	}
	return byKey
}

// Key joins a path and kind into a fixture lookup key.
func Key(path, kind string) string {
	return path + " " + kind
}
