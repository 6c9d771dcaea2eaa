// Package metaschema resolves modular OSCAL Metaschema definitions into a
// single denormalized tree per model.
//
// A resolution run fetches the entry document for a model, loads its
// imports, and expands every reference from the root assembly down,
// merging reference-site overrides onto the shared definitions. The
// result is a [Tree] whose nodes carry cardinality, datatype,
// documentation, flags, and children, plus a diagnostics report.
//
// Example:
//
//	tree, err := metaschema.Resolve(ctx, "catalog",
//	    metaschema.WithProvider(metaschema.MustDir("/srv/oscal")),
//	    metaschema.WithVersion("v1.1.3"),
//	)
package metaschema

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/golangoscal/metaschema/internal/resolver"
	"github.com/golangoscal/metaschema/model"
)

// DefaultVersion is the schema version resolved when none is given.
const DefaultVersion = "v1.1.3"

// DefaultStepLimit bounds the resolution steps of one run.
const DefaultStepLimit = resolver.DefaultStepLimit

// LevelTrace is a custom log level more verbose than Debug.
// Use for per-item iteration logging (queries, resolved nodes, imports).
// Enable with: &slog.HandlerOptions{Level: slog.Level(-8)}
const LevelTrace = slog.Level(-8)

var (
	// ErrNoProvider is returned when a model is requested but no provider
	// was configured or discovered.
	ErrNoProvider = errors.New("no asset provider configured")

	// ErrNoEntry is returned when the entry document of a run is missing
	// or is not a metaschema document.
	ErrNoEntry = errors.New("entry document unavailable")

	// ErrAssetNotFound marks an asset absent from a provider.
	ErrAssetNotFound = fs.ErrNotExist

	// ErrStepLimit is matched by errors.Is when a run exceeds its step
	// ceiling.
	ErrStepLimit = resolver.ErrStepLimit

	// ErrNoRoot is returned when the entry document declares no root
	// assembly and WithRoot was not used.
	ErrNoRoot = resolver.ErrNoRoot

	// ErrDiagnosticThreshold is returned, together with the tree, when a
	// diagnostic reaches the configured FailAt severity.
	ErrDiagnosticThreshold = errors.New("diagnostic reached failure threshold")
)

// StepLimitError reports a run aborted by the step ceiling.
type StepLimitError = resolver.StepLimitError

// Option configures Resolve, ResolveContent, and ResolveAll.
type Option func(*config)

type config struct {
	provider    Provider
	version     string
	logger      *slog.Logger
	stepLimit   int
	diagConfig  model.DiagnosticConfig
	root        string
	systemPaths bool
}

func newConfig(opts []Option) config {
	cfg := config{
		version:    DefaultVersion,
		diagConfig: model.StrictConfig(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.version = normalizeVersion(cfg.version)
	return cfg
}

// WithProvider sets where schema documents come from. Use Multi to
// combine providers.
func WithProvider(p Provider) Option {
	return func(c *config) { c.provider = p }
}

// WithVersion sets the target schema version. A missing leading "v" is
// added.
func WithVersion(version string) Option {
	return func(c *config) { c.version = version }
}

// WithLogger sets the logger for debug/trace output.
// If not set, no logging occurs (zero overhead).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithStepLimit caps resolution steps per run. Zero selects
// DefaultStepLimit.
func WithStepLimit(n int) Option {
	return func(c *config) { c.stepLimit = n }
}

// WithDiagnosticConfig sets the diagnostic filter and failure threshold.
// The default reports everything and fails only on Fatal.
func WithDiagnosticConfig(cfg model.DiagnosticConfig) Option {
	return func(c *config) { c.diagConfig = cfg }
}

// WithStrictness selects a preset diagnostic configuration.
func WithStrictness(level model.StrictnessLevel) Option {
	return func(c *config) { c.diagConfig = model.ConfigFor(level) }
}

// WithRoot overrides the root assembly of the entry document.
func WithRoot(name string) Option {
	return func(c *config) { c.root = name }
}

// WithSystemPaths appends directories discovered from METASCHEMA_PATH and
// the user cache directory after any explicit provider, serving as
// fallback. When no provider is set, system paths alone are sufficient.
func WithSystemPaths() Option {
	return func(c *config) { c.systemPaths = true }
}

func normalizeVersion(v string) string {
	return resolver.NormalizeVersion(v)
}
