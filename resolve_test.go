package metaschema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/golangoscal/metaschema/internal/testutil"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/model"
)

const corpusDir = "testdata"

func resolveCatalog(t testing.TB, opts ...Option) *Tree {
	t.Helper()
	src, err := Dir(corpusDir)
	require.NoError(t, err)
	opts = append([]Option{WithProvider(src)}, opts...)
	tree, err := Resolve(context.Background(), "catalog", opts...)
	require.NoError(t, err)
	require.NotNil(t, tree.Root())
	return tree
}

func diagCodes(tree *Tree) map[string]int {
	codes := make(map[string]int)
	for _, d := range tree.Diagnostics() {
		codes[d.Code]++
	}
	return codes
}

func TestResolveCatalog(t *testing.T) {
	tree := resolveCatalog(t, WithVersion("1.1.3"))

	assert.Equal(t, "catalog", tree.Model())
	assert.Equal(t, "v1.1.3", tree.Version())
	assert.Equal(t, "OSCAL Control Catalog Model", tree.SchemaName())
	assert.Equal(t, "/catalog", tree.Root().Path)
	assert.Greater(t, tree.Steps(), 0)
	assert.False(t, tree.HasErrors(), "diagnostics: %v", tree.Diagnostics())

	var models []string
	for _, d := range tree.Documents() {
		assert.True(t, d.Valid, d.Model)
		models = append(models, d.Model)
	}
	// Imports come before their importers; the entry document is last.
	assert.Equal(t, []string{"oscal-metadata", "oscal-control-common", "catalog"}, models)

	entry, ok := tree.Document("catalog")
	require.True(t, ok)
	assert.True(t, entry.IsRoot)
	assert.Equal(t, "1.1.3", entry.DeclaredVersion)
}

func TestResolveCatalogOutline(t *testing.T) {
	tree := resolveCatalog(t)
	fixture := testutil.LoadFixture(t, filepath.Join(corpusDir, "golden", "catalog_outline.json"))

	got := make(map[string]*testutil.FixtureNode)
	for n := range tree.Nodes() {
		key := testutil.Key(n.Path, n.Kind.String())
		if _, seen := got[key]; !seen {
			got[key] = testutil.NormalizeNode(n)
		}
	}

	for key, want := range fixture {
		t.Run(key, func(t *testing.T) {
			node, ok := got[key]
			if !ok {
				t.Fatalf("node %s missing from resolved tree", key)
			}
			assert.Equal(t, want.MinOccurs, node.MinOccurs, "min-occurs")
			assert.Equal(t, want.MaxOccurs, node.MaxOccurs, "max-occurs")
			if want.Datatype != "" {
				assert.Equal(t, want.Datatype, node.Datatype, "datatype")
			}
		})
	}
}

func TestResolveCatalogDetails(t *testing.T) {
	tree := resolveCatalog(t)

	t.Run("source lists definition then reference document", func(t *testing.T) {
		n := tree.Find("/catalog/metadata")
		require.NotNil(t, n)
		assert.Equal(t, []string{"oscal-metadata", "catalog"}, n.Source)
	})

	t.Run("reference-site documentation comes first", func(t *testing.T) {
		n := tree.Find("/catalog/group/title")
		require.NotNil(t, n)
		assert.Equal(t, "Group Title", n.FormalName.Primary())
		assert.Equal(t, "title", n.Name)
	})

	t.Run("use-name overrides the definition name", func(t *testing.T) {
		n := tree.Find("/catalog/param")
		require.NotNil(t, n)
		assert.Equal(t, "parameter", n.Name)
		assert.Equal(t, "param", n.UseName)
	})

	t.Run("flag default", func(t *testing.T) {
		n := tree.Find("/catalog/metadata/prop/@ns")
		require.NotNil(t, n)
		require.NotNil(t, n.Default)
		assert.Equal(t, "http://csrc.nist.gov/ns/oscal", *n.Default)
	})

	t.Run("xml wrapping", func(t *testing.T) {
		prose := tree.Find("/catalog/control/part/prose")
		require.NotNil(t, prose)
		assert.False(t, prose.WrappedInXML)

		remarks := tree.Find("/catalog/metadata/remarks")
		require.NotNil(t, remarks)
		assert.True(t, remarks.WrappedInXML)

		title := tree.Find("/catalog/metadata/title")
		require.NotNil(t, title)
		assert.True(t, title.WrappedInXML)
	})

	t.Run("deprecated at or before target", func(t *testing.T) {
		n := tree.Find("/catalog/metadata/location-uuid")
		require.NotNil(t, n)
		assert.True(t, n.Deprecated)
		assert.Empty(t, n.Sunsetting)
	})

	t.Run("recursive nodes are terminal", func(t *testing.T) {
		for n := range tree.Nodes() {
			if n.Kind == model.KindRecursive {
				assert.True(t, n.IsTerminal(), n.Path)
			}
		}
		n := tree.Find("/catalog/control/control")
		require.NotNil(t, n)
		assert.Equal(t, model.KindRecursive, n.Kind)
		assert.Equal(t, "control", n.UseName)
	})

	t.Run("choice shares its parent's path", func(t *testing.T) {
		param := tree.Find("/catalog/param")
		require.NotNil(t, param)
		var choice *Node
		for _, c := range param.Children {
			if c.Kind == model.KindChoice {
				choice = c
			}
		}
		require.NotNil(t, choice)
		assert.Equal(t, param.Path, choice.Path)
		require.Len(t, choice.Children, 2)
		assert.Equal(t, "value", choice.Children[0].UseName)
		assert.Equal(t, "select", choice.Children[1].UseName)
	})

	t.Run("coverage diagnostics", func(t *testing.T) {
		codes := diagCodes(tree)
		assert.Positive(t, codes[types.DiagConstraintNotEvaluated])
		assert.Positive(t, codes[types.DiagRecursiveTruncated])
		assert.Positive(t, codes[types.DiagDefinitionCycle])
		assert.Zero(t, codes[types.DiagDefinitionNotFound])
	})

	t.Run("sequence is unique", func(t *testing.T) {
		seen := make(map[int]string)
		for n := range tree.Nodes() {
			if prev, ok := seen[n.Sequence]; ok {
				t.Errorf("sequence %d shared by %s and %s", n.Sequence, prev, n.Path)
			}
			seen[n.Sequence] = n.Path
		}
	})
}

func TestResolveSunsetting(t *testing.T) {
	src, err := DirTree(corpusDir)
	require.NoError(t, err)

	tree, err := Resolve(context.Background(), "catalog",
		WithProvider(src), WithVersion("v1.0.0"))
	require.NoError(t, err)

	n := tree.Find("/catalog/metadata/location-uuid")
	require.NotNil(t, n)
	assert.False(t, n.Deprecated)
	assert.Equal(t, "1.1.0", n.Sunsetting)
}

func TestResolveDeterministic(t *testing.T) {
	a := resolveCatalog(t)
	b := resolveCatalog(t)
	assert.Equal(t, testutil.Outline(a), testutil.Outline(b))

	var bufA, bufB bytes.Buffer
	require.NoError(t, Write(&bufA, a, FormatJSON, WithoutSequence()))
	require.NoError(t, Write(&bufB, b, FormatJSON, WithoutSequence()))
	assert.Equal(t, bufA.String(), bufB.String())
}

func TestResolveErrors(t *testing.T) {
	ctx := context.Background()
	src := MustDir(corpusDir)

	t.Run("no provider", func(t *testing.T) {
		_, err := Resolve(ctx, "catalog")
		assert.ErrorIs(t, err, ErrNoProvider)
	})

	t.Run("missing entry", func(t *testing.T) {
		_, err := Resolve(ctx, "profile", WithProvider(src))
		assert.ErrorIs(t, err, ErrNoEntry)
		assert.ErrorIs(t, err, ErrAssetNotFound)
	})

	t.Run("no root assembly", func(t *testing.T) {
		_, err := Resolve(ctx, "metadata", WithProvider(src))
		assert.ErrorIs(t, err, ErrNoRoot)
	})

	t.Run("explicit root", func(t *testing.T) {
		tree, err := Resolve(ctx, "metadata", WithProvider(src), WithRoot("metadata"))
		require.NoError(t, err)
		assert.Equal(t, "/metadata", tree.Root().Path)
		assert.Equal(t, "1", tree.Root().MinOccurs)
	})

	t.Run("step limit", func(t *testing.T) {
		_, err := Resolve(ctx, "catalog", WithProvider(src), WithStepLimit(5))
		require.ErrorIs(t, err, ErrStepLimit)
		var sle *StepLimitError
		require.True(t, errors.As(err, &sle))
		assert.Equal(t, 5, sle.Limit)
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Resolve(cctx, "catalog", WithProvider(src))
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("failure threshold returns the tree", func(t *testing.T) {
		cfg := model.StrictConfig()
		cfg.FailAt = model.SeverityInfo
		tree, err := Resolve(ctx, "catalog", WithProvider(src), WithDiagnosticConfig(cfg))
		assert.ErrorIs(t, err, ErrDiagnosticThreshold)
		require.NotNil(t, tree)
		assert.NotNil(t, tree.Root())
	})
}

func TestResolveStrictness(t *testing.T) {
	strict := resolveCatalog(t, WithStrictness(model.StrictnessStrict))
	permissive := resolveCatalog(t, WithStrictness(model.StrictnessPermissive))
	silent := resolveCatalog(t, WithStrictness(model.StrictnessSilent))

	assert.Positive(t, diagCodes(strict)[types.DiagConstraintNotEvaluated])
	assert.Zero(t, diagCodes(permissive)[types.DiagConstraintNotEvaluated])
	assert.Empty(t, silent.Diagnostics())

	assert.Equal(t, testutil.Outline(strict), testutil.Outline(silent))
}

func TestResolveContent(t *testing.T) {
	ctx := context.Background()
	content, err := os.ReadFile(filepath.Join(corpusDir, "v1.1.3", "oscal_catalog_metaschema.xml"))
	require.NoError(t, err)

	t.Run("with provider", func(t *testing.T) {
		tree, err := ResolveContent(ctx, content, WithProvider(MustDir(corpusDir)))
		require.NoError(t, err)
		assert.Equal(t, "catalog", tree.Model())
		assert.NotNil(t, tree.Find("/catalog/metadata/title"))
	})

	t.Run("without provider", func(t *testing.T) {
		tree, err := ResolveContent(ctx, content)
		require.NoError(t, err)
		assert.True(t, tree.HasErrors())
		codes := diagCodes(tree)
		assert.Positive(t, codes[types.DiagImportNotFound])
		assert.Positive(t, codes[types.DiagDefinitionNotFound])
		assert.Nil(t, tree.Find("/catalog/metadata"))
		assert.NotNil(t, tree.Find("/catalog/@uuid"))
	})

	t.Run("not a metaschema", func(t *testing.T) {
		_, err := ResolveContent(ctx, []byte(`<catalog/>`))
		assert.ErrorIs(t, err, ErrNoEntry)
	})
}

func TestResolveFS(t *testing.T) {
	fsys := testutil.Files("v1.1.3", map[string]string{
		"widget": testutil.Metaschema{
			ShortName: "widget",
			Imports:   []string{testutil.Href("common")},
			Body: `
  <define-assembly name="widget">
    <root-name>widget</root-name>
    <define-flag name="id" as-type="token" required="yes"/>
    <model>
      <field ref="label" min-occurs="1"/>
    </model>
  </define-assembly>`,
		}.XML(),
		"common": testutil.Metaschema{
			ShortName: "common",
			Body:      `<define-field name="label" as-type="markup-line"/>`,
		}.XML(),
	})

	tree, err := Resolve(context.Background(), "widget", WithProvider(FS("fixtures", fsys)))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"widget assembly [exactly 1]",
		"  @id flag [exactly 1]",
		"  label field [exactly 1]",
	}, testutil.Outline(tree))
}

func TestWriteKeepsOverriddenDocs(t *testing.T) {
	fsys := testutil.Files("v1.1.3", map[string]string{
		"widget": testutil.Metaschema{
			ShortName: "widget",
			Body: `
  <define-assembly name="widget">
    <root-name>widget</root-name>
    <model>
      <field ref="x">
        <description>Reference site text.</description>
      </field>
    </model>
  </define-assembly>
  <define-field name="x">
    <description>Definition <b>"bold"</b> text.</description>
  </define-field>`,
		}.XML(),
	})

	tree, err := Resolve(context.Background(), "widget", WithProvider(FS("fixtures", fsys)))
	require.NoError(t, err)
	x := tree.Find("/widget/x")
	require.NotNil(t, x)
	assert.Equal(t, model.Doc{"Reference site text.", `Definition <b>"bold"</b> text.`}, x.Description)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, tree, FormatJSON))
	var doc struct {
		Nodes struct {
			Children []map[string]any `json:"children"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.Nodes.Children, 1)
	assert.Equal(t, "Reference site text.", doc.Nodes.Children[0]["description"])
	assert.Equal(t, []any{`Definition <b>"bold"</b> text.`}, doc.Nodes.Children[0]["description-history"])
}

func TestResolveAll(t *testing.T) {
	ctx := context.Background()
	src := MustDir(corpusDir)

	trees, err := ResolveAll(ctx, []string{"catalog", "catalog"}, WithProvider(src))
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, testutil.Outline(trees[0]), testutil.Outline(trees[1]))

	trees, err = ResolveAll(ctx, []string{"catalog", "profile", "metadata"}, WithProvider(src))
	require.Error(t, err)
	require.Len(t, trees, 3)
	assert.NotNil(t, trees[0])
	assert.Nil(t, trees[1])
	assert.Nil(t, trees[2])
	assert.ErrorIs(t, err, ErrNoEntry)
	assert.ErrorIs(t, err, ErrNoRoot)
	assert.Contains(t, err.Error(), "profile: ")
	assert.Contains(t, err.Error(), "metadata: ")
}

func TestWriteFile(t *testing.T) {
	tree := resolveCatalog(t)
	dir := t.TempDir()

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			path, err := WriteFile(dir, tree, format)
			require.NoError(t, err)
			assert.Equal(t, "OSCAL_v1.1.3_catalog_metaschema."+string(format), filepath.Base(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(string(data), map[Format]string{
				FormatJSON: "{",
				FormatYAML: "oscal_version: v1.1.3",
			}[format]))
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, "OSCAL_v1.1.3_catalog_metaschema.json"))
	require.NoError(t, err)
	var doc struct {
		Model string `json:"oscal_model"`
		Nodes struct {
			Path string `json:"path"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "catalog", doc.Model)
	assert.Equal(t, "/catalog", doc.Nodes.Path)

	var report bytes.Buffer
	require.NoError(t, WriteReport(&report, tree))
	assert.Contains(t, report.String(), types.DiagConstraintNotEvaluated)
}
