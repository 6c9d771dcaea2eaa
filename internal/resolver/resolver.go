// Package resolver turns a Metaschema document and its imports into a
// single resolved tree.
//
// Resolution transforms the entry document into a fully denormalized model
// where every reference is replaced by its definition, reference-site
// overrides are merged onto the base definition, and self-referential
// structures end in terminal recursive nodes.
//
// # Resolution Phases
//
// The resolver executes the following phases in order:
//
//  1. Document: Parse the entry document and extract its identity
//  2. Imports: Load the import graph, each model once per run
//  3. Definitions: Recursive descent from the root assembly
//  4. Audit: Report import and definition cycles
//
// # Usage
//
//	tree, err := resolver.Resolve(ctx, content, "catalog", fetch, resolver.Options{Version: "v1.1.3"})
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// DefaultStepLimit bounds the number of resolution steps in one run.
const DefaultStepLimit = 250000

// ErrStepLimit is matched by errors.Is when a run exceeds its step limit.
var ErrStepLimit = errors.New("resolution step limit exceeded")

// ErrNoRoot is returned when the entry document declares no root assembly
// and none was requested.
var ErrNoRoot = errors.New("entry document declares no root assembly")

// StepLimitError reports a run aborted by the step ceiling.
type StepLimitError struct {
	Path  string // path being resolved when the ceiling was hit
	Steps int
	Limit int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("%s at %s (%d steps, limit %d)", ErrStepLimit, e.Path, e.Steps, e.Limit)
}

func (e *StepLimitError) Is(target error) bool { return target == ErrStepLimit }

// Options configures one resolution run.
type Options struct {
	// Version is the target schema version, e.g. "v1.1.3".
	Version string

	// StepLimit caps resolution steps; 0 means DefaultStepLimit.
	StepLimit int

	// Root overrides the root assembly definition name.
	Root string

	// Logger receives structured logs; nil disables logging.
	Logger *slog.Logger

	// Diagnostics filters the diagnostics kept on the tree.
	Diagnostics model.DiagnosticConfig
}

// Resolve resolves the entry document content. key names the entry for
// import deduplication; it is usually the model being resolved. Imports are
// loaded through fetch.
//
// Only context cancellation, an unreadable entry document, and the step
// ceiling are returned as errors. Everything else degrades the affected
// subtree and is recorded as a diagnostic on the tree.
func Resolve(ctx context.Context, content []byte, key string, fetch document.FetchFunc, opts Options) (*model.Tree, error) {
	r := newRunContext(ctx, opts)

	r.Log(slog.LevelDebug, "starting phase", slog.String("phase", "document"))
	entry, err := document.Parse(content, key, r.version, r.q)
	if err != nil {
		return nil, err
	}
	if key == "" {
		entry.Key = entry.Model
	}
	r.builder.SetEntry(entry.Model, entry.SchemaName)
	r.Log(slog.LevelDebug, "phase complete", slog.String("phase", "document"),
		slog.String("model", entry.Model),
		slog.Bool("root", entry.IsRoot))

	r.Log(slog.LevelDebug, "starting phase", slog.String("phase", "imports"))
	im := document.NewImporter(fetch, r.version, r.q, r.L, r.report)
	if err := im.ResolveImports(ctx, entry); err != nil {
		return nil, err
	}
	r.Log(slog.LevelDebug, "phase complete", slog.String("phase", "imports"),
		slog.Int("documents", len(im.Documents())))

	rootName := opts.Root
	if rootName == "" {
		rootName = entry.RootAssembly
	}
	if rootName == "" {
		return nil, fmt.Errorf("%s: %w", entry.Model, ErrNoRoot)
	}

	r.Log(slog.LevelDebug, "starting phase", slog.String("phase", "definitions"))
	root, err := r.resolve(rootName, model.KindDefineAssembly, "", false, entry, nil, true)
	if err != nil {
		r.Log(slog.LevelError, "resolution aborted",
			slog.String("error", err.Error()),
			slog.Int("steps", r.steps))
		return nil, err
	}
	r.builder.SetRoot(root)
	r.builder.SetSteps(r.steps)
	r.Log(slog.LevelDebug, "phase complete", slog.String("phase", "definitions"),
		slog.Int("steps", r.steps),
		slog.Int("nodes", r.seq),
		slog.Int("queries", r.q.Queries()))

	r.Log(slog.LevelDebug, "starting phase", slog.String("phase", "audit"))
	importCycles := im.ReportCycles()
	defCycles := r.reportDefinitionCycles()
	r.Log(slog.LevelDebug, "phase complete", slog.String("phase", "audit"),
		slog.Int("import_cycles", importCycles),
		slog.Int("definition_cycles", defCycles))

	byKey := make(map[string]*document.Document)
	for _, d := range im.Documents() {
		byKey[d.Key] = d
	}
	for _, k := range im.Order() {
		r.builder.AddDocument(byKey[k].Info())
	}

	if root == nil {
		r.Log(slog.LevelWarn, "root definition not resolved", slog.String("root", rootName))
	}
	r.Log(slog.LevelInfo, "resolution complete",
		slog.String("model", entry.Model),
		slog.String("version", r.version),
		slog.Int("nodes", r.seq),
		slog.Int("diagnostics", r.builder.DiagnosticCount()))

	return r.builder.Tree(), nil
}

// NormalizeVersion returns v with a leading "v".
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// newQuerier is split out so tests can share the error wiring.
func newQuerier(r *runContext) *xmlq.Querier {
	return xmlq.New(r.L, func(expr string, err error) {
		r.diag(model.SeverityError, types.DiagXPathError, nil, "", 0, expr,
			fmt.Sprintf("query %q: %v", expr, err))
	})
}
