package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Tree {
	id := &Node{Path: "/catalog/@id", UseName: "id", Kind: KindFlag}
	title := &Node{Path: "/catalog/title", UseName: "title", Kind: KindField, MinOccurs: "1", MaxOccurs: "1"}
	prop := &Node{Path: "/catalog/prop", UseName: "prop", Kind: KindField}
	link := &Node{Path: "/catalog/link", UseName: "link", Kind: KindField}
	choice := &Node{Path: "/catalog", Kind: KindChoice, Children: []*Node{prop, link}}
	root := &Node{
		Path:     "/catalog",
		UseName:  "catalog",
		Kind:     KindAssembly,
		Flags:    []*Node{id},
		Children: []*Node{title, choice},
	}
	b := NewBuilder("v1.1.3")
	b.SetEntry("catalog", "OSCAL Control Catalog Model")
	b.SetRoot(root)
	b.AddDiagnostic(Diagnostic{Severity: SeverityInfo, Code: "any-wildcard"})
	return b.Tree()
}

func TestDocPrimary(t *testing.T) {
	assert.Equal(t, "", Doc(nil).Primary())
	assert.Equal(t, "ref", Doc{"ref", "def"}.Primary())
	assert.Equal(t, "def", Doc{"", "def"}.Primary())
}

func TestNodeLookup(t *testing.T) {
	root := sampleTree().Root()
	require.NotNil(t, root.Flag("id"))
	assert.Nil(t, root.Flag("title"))
	require.NotNil(t, root.Child("title"))
	assert.Equal(t, "/catalog/link", root.Child("link").Path, "choice alternatives are searched")
	assert.Nil(t, root.Child("missing"))
}

func TestTreeNodesPreOrder(t *testing.T) {
	tree := sampleTree()
	var paths []string
	for n := range tree.Nodes() {
		paths = append(paths, n.Path)
	}
	assert.Equal(t, []string{
		"/catalog", "/catalog/@id", "/catalog/title", "/catalog", "/catalog/prop", "/catalog/link",
	}, paths)
	assert.Equal(t, 6, tree.NodeCount())
}

func TestTreeFind(t *testing.T) {
	tree := sampleTree()
	assert.Equal(t, KindAssembly, tree.Find("/catalog").Kind, "parent wins over choice at same path")
	assert.Equal(t, "prop", tree.Find("/catalog/prop").UseName)
	assert.Nil(t, tree.Find("/nope"))
	assert.False(t, tree.HasErrors())
}

func TestNodesEarlyStop(t *testing.T) {
	count := 0
	for range sampleTree().Nodes() {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestOccurrence(t *testing.T) {
	tests := []struct {
		lo, hi string
		want   string
	}{
		{"0", "1", "[0 or 1]"},
		{"0", "unbounded", "[0 or more]"},
		{"1", "1", "[exactly 1]"},
		{"1", "unbounded", "[1 or more]"},
		{"2", "5", "[2..5]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Occurrence(tt.lo, tt.hi))
	}
}

func TestDepth(t *testing.T) {
	assert.Equal(t, 0, (&Node{Path: "/catalog"}).Depth())
	assert.Equal(t, 2, (&Node{Path: "/catalog/group/@id"}).Depth())
}
