package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/testutil"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/model"
)

func feed(docs map[string]string) document.FetchFunc {
	return func(_ context.Context, version, name string) ([]byte, error) {
		content, ok := docs[name]
		if !ok {
			return nil, fmt.Errorf("%s/%s: %w", version, name, fs.ErrNotExist)
		}
		return []byte(content), nil
	}
}

func entry(body string, imports ...string) []byte {
	hrefs := make([]string, len(imports))
	for i, imp := range imports {
		hrefs[i] = testutil.Href(imp)
	}
	return []byte(testutil.Metaschema{ShortName: "test", Imports: hrefs, Body: body}.XML())
}

func resolveBody(t *testing.T, body string) *model.Tree {
	t.Helper()
	tree, err := Resolve(context.Background(), entry(body), "", feed(nil), Options{Version: "1.1.3"})
	require.NoError(t, err)
	return tree
}

func codes(tree *model.Tree) []string {
	var out []string
	for _, d := range tree.Diagnostics() {
		out = append(out, d.Code)
	}
	return out
}

func diagsWithCode(tree *model.Tree, code string) []model.Diagnostic {
	var out []model.Diagnostic
	for _, d := range tree.Diagnostics() {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}

const catalogBody = `
<define-assembly name="catalog">
  <formal-name>Catalog</formal-name>
  <description>A structured collection of controls.</description>
  <root-name>catalog</root-name>
  <define-flag name="uuid" as-type="uuid" required="yes"/>
  <model>
    <field ref="title" min-occurs="1" max-occurs="1"/>
    <assembly ref="group" max-occurs="unbounded">
      <group-as name="groups" in-json="ARRAY"/>
    </assembly>
  </model>
</define-assembly>
<define-field name="title" as-type="markup-line">
  <formal-name>Title</formal-name>
  <description>A name given to the resource.</description>
</define-field>
<define-assembly name="group">
  <formal-name>Group</formal-name>
  <flag ref="id"/>
  <model>
    <field ref="title" min-occurs="1"/>
    <assembly ref="part" max-occurs="unbounded"/>
    <assembly ref="group" max-occurs="unbounded"/>
  </model>
</define-assembly>
<define-assembly name="part">
  <flag ref="id" required="yes"/>
  <model>
    <assembly ref="part" max-occurs="unbounded"/>
  </model>
</define-assembly>
<define-flag name="id" as-type="token"/>
`

func TestEndToEndCatalog(t *testing.T) {
	tree := resolveBody(t, catalogBody)

	root := tree.Root()
	require.NotNil(t, root)
	assert.Equal(t, "/catalog", root.Path)
	assert.Equal(t, model.KindAssembly, root.Kind)
	assert.Equal(t, "1", root.MinOccurs)
	assert.Equal(t, "1", root.MaxOccurs)
	assert.Equal(t, "Catalog", root.FormalName.Primary())
	assert.Equal(t, "catalog", tree.Model())
	assert.Equal(t, []string{"catalog"}, root.Source)

	uuid := root.Flag("uuid")
	require.NotNil(t, uuid)
	assert.Equal(t, "/catalog/@uuid", uuid.Path)
	assert.Equal(t, "uuid", uuid.Datatype)
	assert.Equal(t, "1", uuid.MinOccurs)

	title := root.Child("title")
	require.NotNil(t, title)
	assert.Equal(t, "/catalog/title", title.Path)
	assert.Equal(t, "1", title.MinOccurs)
	assert.Equal(t, "1", title.MaxOccurs)
	assert.Equal(t, "markup-line", title.Datatype)
	assert.True(t, title.WrappedInXML)

	group := root.Child("group")
	require.NotNil(t, group)
	assert.Equal(t, model.Unbounded, group.MaxOccurs)
	assert.Equal(t, "groups", group.GroupAs)
	assert.Equal(t, "ARRAY", group.GroupAsInJSON)
	assert.Equal(t, "/catalog/group/@id", group.Flag("id").Path)

	part := group.Child("part")
	require.NotNil(t, part)
	assert.Equal(t, model.KindAssembly, part.Kind)
	nested := part.Child("part")
	require.NotNil(t, nested)
	assert.Equal(t, model.KindRecursive, nested.Kind)
	assert.Equal(t, "/catalog/group/part/part", nested.Path)
	assert.True(t, nested.IsTerminal())

	inner := group.Child("group")
	require.NotNil(t, inner)
	assert.Equal(t, model.KindRecursive, inner.Kind)
	assert.Equal(t, "/catalog/group/group", inner.Path)

	assert.Less(t, tree.Steps(), DefaultStepLimit)
	assert.False(t, tree.HasErrors())
	assert.Len(t, diagsWithCode(tree, types.DiagRecursiveTruncated), 2)

	cycles := diagsWithCode(tree, types.DiagDefinitionCycle)
	require.Len(t, cycles, 2)
	assert.Contains(t, cycles[0].Message, "catalog:group")
	assert.Contains(t, cycles[1].Message, "catalog:part")
}

func TestPathInvariant(t *testing.T) {
	tree := resolveBody(t, catalogBody)
	var check func(parent *model.Node)
	check = func(parent *model.Node) {
		for _, f := range parent.Flags {
			assert.Equal(t, parent.Path+"/@"+f.UseName, f.Path)
		}
		for _, c := range parent.Children {
			if c.Kind == model.KindChoice {
				assert.Equal(t, parent.Path, c.Path)
			} else {
				assert.Equal(t, parent.Path+"/"+c.UseName, c.Path)
			}
			check(c)
		}
	}
	check(tree.Root())
	for n := range tree.Nodes() {
		assert.NotEmpty(t, n.MinOccurs, n.Path)
		assert.NotEmpty(t, n.MaxOccurs, n.Path)
		assert.NotEmpty(t, n.Source, n.Path)
		if n.Kind == model.KindRecursive {
			assert.True(t, n.IsTerminal(), n.Path)
		}
	}
}

func TestCardinalityDefaults(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <field ref="plain"/>
    <define-field name="inline"/>
  </model>
</define-assembly>
<define-field name="plain"/>`)

	plain := tree.Find("/root/plain")
	require.NotNil(t, plain)
	assert.Equal(t, "0", plain.MinOccurs)
	assert.Equal(t, "1", plain.MaxOccurs)
	assert.Equal(t, "string", plain.Datatype)
	assert.False(t, plain.Deprecated)
	assert.Nil(t, plain.Default)

	inline := tree.Find("/root/inline")
	require.NotNil(t, inline)
	assert.Equal(t, "0", inline.MinOccurs)
	assert.Equal(t, "1", inline.MaxOccurs)
}

func TestRootCardinalityIsForced(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root" >
  <root-name>top</root-name>
</define-assembly>`)
	root := tree.Root()
	assert.Equal(t, "/top", root.Path)
	assert.Equal(t, "root", root.Name)
	assert.Equal(t, "top", root.UseName)
	assert.Equal(t, "1", root.MinOccurs)
	assert.Equal(t, "1", root.MaxOccurs)
}

func TestReferenceOverridesDefinition(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <field ref="x" min-occurs="1" max-occurs="unbounded" in-xml="UNWRAPPED">
      <use-name>renamed</use-name>
      <description>Reference site text.</description>
    </field>
  </model>
</define-assembly>
<define-field name="x" min-occurs="0" as-type="string">
  <use-name>ex</use-name>
  <formal-name>Ex</formal-name>
  <description>Definition text.</description>
</define-field>`)

	x := tree.Root().Children[0]
	assert.Equal(t, "x", x.Name)
	assert.Equal(t, "renamed", x.UseName)
	assert.Equal(t, "/root/renamed", x.Path)
	assert.Equal(t, "1", x.MinOccurs)
	assert.Equal(t, model.Unbounded, x.MaxOccurs)
	assert.False(t, x.WrappedInXML)
	assert.Equal(t, model.Doc{"Reference site text.", "Definition text."}, x.Description)
	assert.Equal(t, model.Doc{"Ex"}, x.FormalName)
}

func TestFlagRequired(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <flag ref="a" required="yes"/>
  <flag ref="b" required="no"/>
  <define-flag name="c" default="x"/>
</define-assembly>
<define-flag name="a"/>
<define-flag name="b"/>`)

	root := tree.Root()
	require.Len(t, root.Flags, 3)
	assert.Equal(t, "1", root.Flag("a").MinOccurs)
	assert.Equal(t, "0", root.Flag("b").MinOccurs)
	require.NotNil(t, root.Flag("c").Default)
	assert.Equal(t, "x", *root.Flag("c").Default)
	assert.False(t, root.Flag("a").WrappedInXML)
}

func TestIndirectCycleTerminates(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model><assembly ref="a"/></model>
</define-assembly>
<define-assembly name="a">
  <model><assembly ref="b"/></model>
</define-assembly>
<define-assembly name="b">
  <model><assembly ref="a"/></model>
</define-assembly>`)

	back := tree.Find("/root/a/b/a")
	require.NotNil(t, back)
	assert.Equal(t, model.KindRecursive, back.Kind)
	assert.Nil(t, tree.Find("/root/a/b/a/b"))

	cycles := diagsWithCode(tree, types.DiagDefinitionCycle)
	require.Len(t, cycles, 1)
	assert.Contains(t, cycles[0].Message, "root:a, root:b")
}

func TestImportFallback(t *testing.T) {
	common := testutil.Metaschema{ShortName: "common", Body: `
<define-field name="y" as-type="integer"/>
<define-field name="hidden" scope="local"/>`}.XML()

	content := entry(`
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <field ref="y" min-occurs="1"/>
    <field ref="hidden"/>
    <field ref="z"/>
  </model>
</define-assembly>
<define-field name="z"/>`, "common")

	tree, err := Resolve(context.Background(), content, "root", feed(map[string]string{"common": common}), Options{Version: "v1.1.3"})
	require.NoError(t, err)

	y := tree.Find("/root/y")
	require.NotNil(t, y)
	assert.Equal(t, "integer", y.Datatype)
	assert.Equal(t, "1", y.MinOccurs)
	assert.Equal(t, []string{"common", "root"}, y.Source)

	assert.Nil(t, tree.Find("/root/hidden"), "local definitions are hidden from importers")
	require.NotNil(t, tree.Find("/root/z"), "siblings still resolve")

	missing := diagsWithCode(tree, types.DiagDefinitionNotFound)
	require.Len(t, missing, 1)
	assert.Equal(t, "/root/hidden", missing[0].Path)
	assert.Equal(t, model.SeverityError, missing[0].Severity)
	assert.True(t, tree.HasErrors())

	docs := tree.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "common", docs[0].Model)
	assert.Equal(t, []string{"common"}, docs[1].Imports)
}

func TestImportedDefinitionSeesItsOwnLocals(t *testing.T) {
	common := testutil.Metaschema{ShortName: "common", Body: `
<define-assembly name="shared">
  <model><field ref="helper"/></model>
</define-assembly>
<define-field name="helper" scope="local"/>`}.XML()

	content := entry(`
<define-assembly name="root">
  <root-name>root</root-name>
  <model><assembly ref="shared"/></model>
</define-assembly>`, "common")

	tree, err := Resolve(context.Background(), content, "root", feed(map[string]string{"common": common}), Options{Version: "v1.1.3"})
	require.NoError(t, err)
	require.NotNil(t, tree.Find("/root/shared/helper"))
	assert.Equal(t, []string{"common"}, tree.Find("/root/shared/helper").Source)
}

func TestMissingImportDegrades(t *testing.T) {
	content := entry(`
<define-assembly name="root">
  <root-name>root</root-name>
  <model><field ref="remote"/><field ref="local"/></model>
</define-assembly>
<define-field name="local"/>`, "absent")

	tree, err := Resolve(context.Background(), content, "root", feed(nil), Options{Version: "v1.1.3"})
	require.NoError(t, err)
	assert.Equal(t, []string{types.DiagImportNotFound, types.DiagDefinitionNotFound}, codes(tree))
	require.Len(t, tree.Root().Children, 1)
	assert.Equal(t, "local", tree.Root().Children[0].Name)
}

func TestMarkupPreservation(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <description><p>Text <i>emph</i></p></description>
  <remarks>
    <p>First.</p>
    <p>Second <a href="https://example.com">link</a>.</p>
  </remarks>
  <example><description>Sample</description></example>
</define-assembly>`)

	root := tree.Root()
	assert.Equal(t, "<p>Text <i>emph</i></p>", root.Description.Primary())
	assert.Contains(t, root.Remarks.Primary(), `<a href="https://example.com">link</a>`)
	assert.NotContains(t, root.Remarks.Primary(), "xmlns")
	assert.Equal(t, "<description>Sample</description>", root.Example.Primary())
}

func TestDeprecation(t *testing.T) {
	body := `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <field ref="old" deprecated="1.0.0"/>
    <field ref="same" deprecated="1.1.3"/>
    <field ref="future" deprecated="2.0.0"/>
    <field ref="bogus" deprecated="soon"/>
  </model>
</define-assembly>
<define-field name="old"/>
<define-field name="same"/>
<define-field name="future"/>
<define-field name="bogus"/>`
	tree := resolveBody(t, body)

	assert.True(t, tree.Find("/root/old").Deprecated)
	assert.True(t, tree.Find("/root/same").Deprecated)
	future := tree.Find("/root/future")
	assert.False(t, future.Deprecated)
	assert.Equal(t, "2.0.0", future.Sunsetting)
	assert.False(t, tree.Find("/root/bogus").Deprecated)
	assert.Len(t, diagsWithCode(tree, types.DiagInvalidVersion), 1)
}

func TestChoiceAndAny(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <choice>
      <field ref="a"/>
      <define-field name="b"/>
    </choice>
    <any/>
  </model>
</define-assembly>
<define-field name="a"/>`)

	root := tree.Root()
	require.Len(t, root.Children, 2)
	choice := root.Children[0]
	assert.Equal(t, model.KindChoice, choice.Kind)
	assert.Equal(t, "/root", choice.Path)
	require.Len(t, choice.Children, 2)
	assert.Equal(t, "/root/a", choice.Children[0].Path)
	assert.Equal(t, "/root/b", choice.Children[1].Path)

	anyNode := root.Children[1]
	assert.Equal(t, model.KindAny, anyNode.Kind)
	assert.Equal(t, "/root/*", anyNode.Path)
	assert.True(t, anyNode.IsTerminal())

	anyDiags := diagsWithCode(tree, types.DiagAnyWildcard)
	require.Len(t, anyDiags, 1)
	assert.Equal(t, "/root/*", anyDiags[0].Path)
}

func TestChoiceGroup(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <choice-group min-occurs="1" max-occurs="unbounded">
      <group-as name="items" in-json="ARRAY"/>
      <discriminator>kind</discriminator>
      <assembly ref="a"/>
      <define-assembly name="b"/>
    </choice-group>
  </model>
</define-assembly>
<define-assembly name="a"/>`)

	cg := tree.Root().Children[0]
	assert.Equal(t, model.KindChoice, cg.Kind)
	assert.Equal(t, "choice-group", cg.Name)
	assert.Equal(t, "items", cg.GroupAs)
	assert.Equal(t, model.Unbounded, cg.MaxOccurs)
	assert.Len(t, cg.Children, 2)
	assert.Len(t, diagsWithCode(tree, types.DiagChoiceGroupPartial), 1)
	assert.Empty(t, diagsWithCode(tree, types.DiagUnhandledChild))
}

func TestUnhandledConstructs(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root" index="7">
  <root-name>root</root-name>
  <prop name="x" value="y"/>
  <constraint><allowed-values target="."/></constraint>
  <flag ref="f" default="nope">
    <group-as name="fs"/>
  </flag>
</define-assembly>
<define-flag name="f"/>`)

	got := codes(tree)
	assert.Contains(t, got, types.DiagUnhandledAttribute)
	assert.Contains(t, got, types.DiagUnhandledChild)
	assert.Contains(t, got, types.DiagConstraintNotEvaluated)
	assert.Contains(t, got, types.DiagDefaultOnReference)
	assert.Contains(t, got, types.DiagGroupAsOnFlag)

	f := tree.Root().Flag("f")
	require.NotNil(t, f)
	assert.Nil(t, f.Default)
	assert.Empty(t, f.GroupAs)

	for _, d := range diagsWithCode(tree, types.DiagUnhandledAttribute) {
		assert.Equal(t, "@index", d.Construct)
		assert.Equal(t, "/root", d.Path)
	}
}

func TestJSONKeys(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model>
    <field ref="prop" max-occurs="unbounded">
      <group-as name="props" in-json="BY_KEY" in-xml="UNGROUPED"/>
    </field>
  </model>
</define-assembly>
<define-field name="prop" collapsible="yes">
  <json-key flag-ref="name"/>
  <json-value-key>value</json-value-key>
  <json-value-key-flag flag-ref="ns"/>
  <define-flag name="name" required="yes"/>
</define-field>`)

	prop := tree.Find("/root/prop")
	require.NotNil(t, prop)
	assert.Equal(t, "name", prop.JSONKey)
	assert.Equal(t, "value", prop.JSONValueKey)
	assert.Equal(t, "ns", prop.JSONValueKeyFlag)
	assert.Equal(t, "BY_KEY", prop.GroupAsInJSON)
	assert.Equal(t, "UNGROUPED", prop.GroupAsInXML)
	assert.True(t, prop.Collapsible)
	assert.Equal(t, "/root/prop/@name", prop.Flags[0].Path)
}

func TestAmbiguousDefinitionUsesFirst(t *testing.T) {
	tree := resolveBody(t, `
<define-assembly name="root">
  <root-name>root</root-name>
  <model><field ref="dup"/></model>
</define-assembly>
<define-field name="dup" as-type="integer"/>
<define-field name="dup" as-type="boolean"/>`)

	assert.Equal(t, "integer", tree.Find("/root/dup").Datatype)
	amb := diagsWithCode(tree, types.DiagDefinitionAmbiguous)
	require.Len(t, amb, 1)
	assert.Equal(t, model.SeverityWarning, amb[0].Severity)
}

func TestStepLimitIsFatal(t *testing.T) {
	_, err := Resolve(context.Background(), entry(catalogBody), "", feed(nil), Options{Version: "v1.1.3", StepLimit: 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStepLimit))

	var sle *StepLimitError
	require.ErrorAs(t, err, &sle)
	assert.Equal(t, 3, sle.Limit)
	assert.Equal(t, 4, sle.Steps)
	assert.NotEmpty(t, sle.Path)
}

func TestNoRoot(t *testing.T) {
	_, err := Resolve(context.Background(), entry(`<define-field name="x"/>`), "", feed(nil), Options{Version: "v1.1.3"})
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestRootOverride(t *testing.T) {
	tree, err := Resolve(context.Background(), entry(catalogBody), "", feed(nil), Options{Version: "v1.1.3", Root: "part"})
	require.NoError(t, err)
	assert.Equal(t, "/part", tree.Root().Path)
	assert.Equal(t, "1", tree.Root().MinOccurs)
	assert.Equal(t, model.KindRecursive, tree.Find("/part/part").Kind)
}

func TestUnparseableEntry(t *testing.T) {
	_, err := Resolve(context.Background(), []byte("<METASCHEMA"), "x", feed(nil), Options{})
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Resolve(ctx, entry(catalogBody, "metadata"), "", feed(nil), Options{Version: "v1.1.3"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDiagnosticFiltering(t *testing.T) {
	body := `
<define-assembly name="root">
  <root-name>root</root-name>
  <model><any/><field ref="missing"/></model>
</define-assembly>`
	tree, err := Resolve(context.Background(), entry(body), "", feed(nil), Options{
		Version:     "v1.1.3",
		Diagnostics: model.DefaultConfig(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{types.DiagDefinitionNotFound}, codes(tree), "info diagnostics filtered at normal level")
}

func TestDeterminism(t *testing.T) {
	a := resolveBody(t, catalogBody)
	b := resolveBody(t, catalogBody)
	assert.Equal(t, testutil.Outline(a), testutil.Outline(b))
	assert.Equal(t, a.Diagnostics(), b.Diagnostics())
}

func TestSequenceIsPreOrder(t *testing.T) {
	tree := resolveBody(t, catalogBody)
	last := 0
	for n := range tree.Nodes() {
		assert.Greater(t, n.Sequence, last, n.Path)
		last = n.Sequence
	}
}

func TestHasRepeatedEnding(t *testing.T) {
	tests := []struct {
		s      string
		suffix string
		count  int
		want   bool
	}{
		{"/catalog/part/part", "/part", 2, true},
		{"/catalog/part", "/part", 2, false},
		{"/catalog/subpart/part", "/part", 2, false},
		{"/a/b/b/b", "/b", 3, true},
		{"/a", "", 2, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hasRepeatedEnding(tt.s, tt.suffix, tt.count), tt.s)
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "v1.1.3", NormalizeVersion("1.1.3"))
	assert.Equal(t, "v1.1.3", NormalizeVersion(" v1.1.3 "))
	assert.Equal(t, "", NormalizeVersion(""))
}
