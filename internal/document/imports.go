package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golangoscal/metaschema/internal/graph"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// FetchFunc returns the raw content of a metaschema document for a
// (version, model) pair. Absence is reported with an error wrapping
// fs.ErrNotExist.
type FetchFunc func(ctx context.Context, version, model string) ([]byte, error)

// ReportFunc receives diagnostics raised while loading documents.
type ReportFunc func(model.Diagnostic)

// Importer loads the import graph reachable from an entry document. Each
// model is fetched and parsed at most once per Importer, so one Importer
// belongs to exactly one resolution run.
type Importer struct {
	types.Logger
	fetch   FetchFunc
	version string
	q       *xmlq.Querier
	report  ReportFunc

	loaded map[string]*Document
	order  []*Document
	graph  *graph.Graph
}

// NewImporter creates an Importer for one run targeting version.
func NewImporter(fetch FetchFunc, version string, q *xmlq.Querier, logger *slog.Logger, report ReportFunc) *Importer {
	return &Importer{
		Logger:  types.Logger{L: types.Component(logger, "imports")},
		fetch:   fetch,
		version: version,
		q:       q,
		report:  report,
		loaded:  make(map[string]*Document),
		graph:   graph.New(),
	}
}

// Register records a document that was obtained outside the importer,
// normally the entry document, so later imports of it are not refetched.
func (im *Importer) Register(doc *Document) {
	if _, ok := im.loaded[doc.Key]; ok {
		return
	}
	im.loaded[doc.Key] = doc
	im.order = append(im.order, doc)
	im.graph.AddNode(graph.DocumentSymbol(doc.Key))
}

// Documents returns every document of the run in load order.
func (im *Importer) Documents() []*Document {
	return im.order
}

// Lookup returns the loaded document registered under key.
func (im *Importer) Lookup(key string) (*Document, bool) {
	d, ok := im.loaded[key]
	return d, ok
}

// Order returns document keys with imported documents before their
// importers. Documents on an import cycle are appended last.
func (im *Importer) Order() []string {
	order, cycles := im.graph.ResolutionOrder()
	keys := make([]string, 0, len(im.loaded))
	for _, sym := range order {
		keys = append(keys, sym.Document)
	}
	for _, cycle := range cycles {
		for _, sym := range cycle {
			keys = append(keys, sym.Document)
		}
	}
	return keys
}

// ResolveImports walks doc's import directives depth-first. A model that
// is already loaded is linked into doc.Imports without being fetched or
// walked again. Missing or malformed imports are reported and left out;
// only context cancellation is returned as an error.
func (im *Importer) ResolveImports(ctx context.Context, doc *Document) error {
	im.Register(doc)

	for _, href := range doc.Hrefs {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := ModelNameFromHref(href)
		im.graph.AddEdge(graph.DocumentSymbol(doc.Key), graph.DocumentSymbol(key))

		if existing, ok := im.loaded[key]; ok {
			if im.TraceEnabled() {
				im.Trace("import already loaded",
					slog.String("document", doc.Key),
					slog.String("import", key))
			}
			if existing.Valid() && doc.Import(key) == nil {
				doc.Imports = append(doc.Imports, existing)
			}
			continue
		}

		imp, err := im.load(ctx, doc, href, key)
		if err != nil {
			return err
		}
		if imp == nil {
			continue
		}
		if err := im.ResolveImports(ctx, imp); err != nil {
			return err
		}
		doc.Imports = append(doc.Imports, imp)
	}
	return nil
}

// load fetches and parses one import. It returns nil, nil when the import
// is unavailable or malformed; the failure is reported and the key is
// marked loaded so it is not retried within the run.
func (im *Importer) load(ctx context.Context, from *Document, href, key string) (*Document, error) {
	im.Log(slog.LevelDebug, "fetching import",
		slog.String("document", from.Key),
		slog.String("href", href),
		slog.String("model", key))

	content, err := im.fetch(ctx, im.version, key)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		msg := fmt.Sprintf("import %q (model %s, version %s) unavailable", href, key, im.version)
		if !errors.Is(err, fs.ErrNotExist) {
			msg += ": " + err.Error()
		}
		im.diag(model.SeverityError, types.DiagImportNotFound, from.Model, msg)
		im.Register(Invalid(key, im.version))
		return nil, nil
	}

	imp, err := Parse(content, key, im.version, im.q)
	if err != nil {
		code := types.DiagXMLParseError
		if errors.Is(err, ErrNotMetaschema) {
			code = types.DiagImportInvalid
		}
		im.diag(model.SeverityError, code, from.Model,
			fmt.Sprintf("import %q: %v", href, err))
		im.Register(Invalid(key, im.version))
		return nil, nil
	}
	im.Register(imp)

	if im.TraceEnabled() {
		im.Trace("import loaded",
			slog.String("model", imp.Model),
			slog.String("key", key),
			slog.Int("hrefs", len(imp.Hrefs)))
	}
	return imp, nil
}

// ReportCycles emits one import-cycle diagnostic per strongly connected
// component of the import graph.
func (im *Importer) ReportCycles() int {
	cycles := im.graph.FindCycles()
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, sym := range cycle {
			names[i] = sym.Document
		}
		im.diag(model.SeverityInfo, types.DiagImportCycle, names[0],
			"documents import each other: "+strings.Join(names, ", "))
	}
	return len(cycles)
}

func (im *Importer) diag(sev model.Severity, code, doc, msg string) {
	im.Log(types.SlogLevel(int(sev)), msg, slog.String("code", code))
	if im.report != nil {
		im.report(model.Diagnostic{
			Severity: sev,
			Code:     code,
			Message:  msg,
			Document: doc,
		})
	}
}
