package resolver

import (
	"context"
	"log/slog"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/graph"
	"github.com/golangoscal/metaschema/internal/types"
	"github.com/golangoscal/metaschema/internal/xmlq"
	"github.com/golangoscal/metaschema/model"
)

// ctxCheckInterval is how many steps pass between context checks.
const ctxCheckInterval = 256

// runContext holds all mutable state of one resolution run. Nothing in it
// is shared between runs, so concurrent runs never interfere.
type runContext struct {
	types.Logger
	ctx        context.Context
	q          *xmlq.Querier
	builder    *model.Builder
	version    string
	diagConfig model.DiagnosticConfig

	stepLimit int
	steps     int
	seq       int

	// stack holds the definitions on the current descent path; active
	// counts them for constant-time re-entry checks.
	stack  []graph.Symbol
	active map[graph.Symbol]int

	// defs records every definition-to-definition edge walked.
	defs *graph.Graph

	// models maps document keys to model names for reporting.
	models map[string]string
}

func newRunContext(ctx context.Context, opts Options) *runContext {
	limit := opts.StepLimit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	version := NormalizeVersion(opts.Version)
	r := &runContext{
		Logger:     types.Logger{L: types.Component(opts.Logger, "resolver")},
		ctx:        ctx,
		builder:    model.NewBuilder(version),
		version:    version,
		diagConfig: opts.Diagnostics,
		stepLimit:  limit,
		active:     make(map[graph.Symbol]int),
		defs:       graph.New(),
		models:     make(map[string]string),
	}
	r.q = newQuerier(r)
	return r
}

// step counts one unit of work and enforces the ceiling and cancellation.
func (r *runContext) step(path string) error {
	r.steps++
	if r.steps > r.stepLimit {
		r.diag(model.SeverityFatal, types.DiagStepLimit, nil, path, 0, "",
			"resolution step limit exceeded")
		return &StepLimitError{Path: path, Steps: r.steps, Limit: r.stepLimit}
	}
	if r.steps%ctxCheckInterval == 0 {
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *runContext) nextSeq() int {
	r.seq++
	return r.seq
}

// enter pushes a definition onto the descent path.
func (r *runContext) enter(sym graph.Symbol) {
	r.stack = append(r.stack, sym)
	r.active[sym]++
}

// leave pops the most recent definition.
func (r *runContext) leave() {
	sym := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	if r.active[sym]--; r.active[sym] == 0 {
		delete(r.active, sym)
	}
}

// link records an edge from the enclosing definition to sym.
func (r *runContext) link(sym graph.Symbol) {
	if len(r.stack) == 0 {
		r.defs.AddNode(sym)
		return
	}
	r.defs.AddEdge(r.stack[len(r.stack)-1], sym)
}

// report is the document loader's diagnostic sink.
func (r *runContext) report(d model.Diagnostic) {
	r.emit(d)
}

// diag records a diagnostic raised while resolving.
func (r *runContext) diag(sev model.Severity, code string, doc *document.Document, path string, kind model.Kind, construct, msg string) {
	d := model.Diagnostic{
		Severity:  sev,
		Code:      code,
		Message:   msg,
		Path:      path,
		Kind:      kind,
		Construct: construct,
	}
	if doc != nil {
		d.Document = doc.Model
	}
	r.Log(types.SlogLevel(int(sev)), msg,
		slog.String("code", code),
		slog.String("path", path))
	r.emit(d)
}

func (r *runContext) emit(d model.Diagnostic) {
	if !r.diagConfig.ShouldReport(d.Code, d.Severity) {
		return
	}
	d.Severity = r.diagConfig.Effective(d.Code, d.Severity)
	r.builder.AddDiagnostic(d)
}
