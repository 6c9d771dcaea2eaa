package metaschema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/golangoscal/metaschema/internal/document"
	"github.com/golangoscal/metaschema/internal/resolver"
	"github.com/golangoscal/metaschema/internal/types"
)

// Resolve fetches the entry document for modelName from the configured
// provider and resolves it.
//
// Document-local problems never fail the run; they are recorded on the
// tree. Errors are returned for a missing provider or entry document,
// context cancellation, the step ceiling, and diagnostics at or above the
// configured FailAt severity (in which case the tree is returned too).
func Resolve(ctx context.Context, modelName string, opts ...Option) (*Tree, error) {
	cfg := newConfig(opts)
	provider, err := cfg.resolveProvider()
	if err != nil {
		return nil, err
	}
	return resolveModel(ctx, provider, modelName, cfg)
}

// ResolveContent resolves an entry document supplied as raw XML. Imports
// are fetched from the configured provider, if any; without one every
// import is reported as not found.
func ResolveContent(ctx context.Context, content []byte, opts ...Option) (*Tree, error) {
	cfg := newConfig(opts)
	provider, err := cfg.resolveProvider()
	if errors.Is(err, ErrNoProvider) {
		provider, err = Multi(), nil
	}
	if err != nil {
		return nil, err
	}
	return run(ctx, content, "", provider, cfg)
}

// ResolveAll resolves several models concurrently. Each run has its own
// state; fetched documents are shared through a Memo provider. Trees are
// returned in input order, with nil entries for failed runs, and the
// errors of all failed runs are joined.
func ResolveAll(ctx context.Context, models []string, opts ...Option) ([]*Tree, error) {
	cfg := newConfig(opts)
	provider, err := cfg.resolveProvider()
	if err != nil {
		return nil, err
	}
	provider = Memo(provider)

	logger := types.Logger{L: cfg.logger}
	if logger.Enabled(slog.LevelInfo) {
		logger.Log(slog.LevelInfo, "parallel resolution", slog.Int("models", len(models)))
	}

	trees := make([]*Tree, len(models))
	errs := make([]error, len(models))

	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))
	for i, name := range models {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return
			case sem <- struct{}{}:
			}
			defer func() { <-sem }()

			tree, err := resolveModel(ctx, provider, name, cfg)
			trees[i] = tree
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", name, err)
			}
		}()
	}
	wg.Wait()

	return trees, errors.Join(errs...)
}

func (c config) resolveProvider() (Provider, error) {
	var providers []Provider
	if c.provider != nil {
		providers = append(providers, c.provider)
	}
	if c.systemPaths {
		providers = append(providers, discoverSystemProviders(types.Logger{L: c.logger})...)
	}
	switch len(providers) {
	case 0:
		return nil, ErrNoProvider
	case 1:
		return providers[0], nil
	default:
		return Multi(providers...), nil
	}
}

func resolveModel(ctx context.Context, provider Provider, modelName string, cfg config) (*Tree, error) {
	content, err := provider.Fetch(ctx, cfg.version, modelName, AssetMetaschema)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s: %w", ErrNoEntry, cfg.version, modelName, err)
	}
	return run(ctx, content, modelName, provider, cfg)
}

func run(ctx context.Context, content []byte, key string, provider Provider, cfg config) (*Tree, error) {
	logger := types.Logger{L: cfg.logger}
	start := time.Now()

	fetch := func(ctx context.Context, version, name string) ([]byte, error) {
		return provider.Fetch(ctx, version, name, AssetMetaschema)
	}
	tree, err := resolver.Resolve(ctx, content, key, document.FetchFunc(fetch), resolver.Options{
		Version:     cfg.version,
		StepLimit:   cfg.stepLimit,
		Root:        cfg.root,
		Logger:      types.Component(cfg.logger, "resolver"),
		Diagnostics: cfg.diagConfig,
	})
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
			errors.Is(err, ErrStepLimit), errors.Is(err, ErrNoRoot):
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNoEntry, err)
	}

	if logger.Enabled(slog.LevelInfo) {
		logger.Log(slog.LevelInfo, "resolution complete",
			slog.String("model", tree.Model()),
			slog.String("version", tree.Version()),
			slog.Int("nodes", tree.NodeCount()),
			slog.Int("diagnostics", len(tree.Diagnostics())),
			slog.Duration("elapsed", time.Since(start)))
	}

	for _, d := range tree.Diagnostics() {
		if cfg.diagConfig.ShouldFail(d.Severity) {
			return tree, fmt.Errorf("%w: %s [%s] %s", ErrDiagnosticThreshold, d.Severity, d.Code, d.Message)
		}
	}
	return tree, nil
}
