package metaschema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/golangoscal/metaschema/internal/assetstore"
	"github.com/golangoscal/metaschema/internal/types"
)

// CacheProvider serves assets from a local SQLite store and fills misses
// from an optional upstream provider.
type CacheProvider struct {
	types.Logger
	store    *assetstore.Store
	upstream Provider
}

// CacheVersion describes a release recorded in the cache.
type CacheVersion = assetstore.Version

// SyncResult summarizes one release copied into the cache.
type SyncResult struct {
	Version string
	Stored  int
	Failed  []string
}

// Cache opens (or creates) the asset cache in dir. An empty dir selects
// <UserCacheDir>/metaschema. upstream may be nil for offline use. The
// caller must Close the provider.
func Cache(dir string, upstream Provider, logger *slog.Logger) (*CacheProvider, error) {
	store, err := assetstore.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	return &CacheProvider{
		Logger:   types.Logger{L: types.Component(logger, "cache")},
		store:    store,
		upstream: upstream,
	}, nil
}

// Close releases the underlying database.
func (c *CacheProvider) Close() error {
	return c.store.Close()
}

// Path returns the database file path.
func (c *CacheProvider) Path() string {
	return c.store.Path()
}

func (c *CacheProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	names := []string{model}
	if alias, ok := modelAliases[model]; ok {
		names = append(names, alias)
	}
	for _, name := range names {
		data, err := c.store.Asset(ctx, version, name, string(kind))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if c.upstream == nil {
		return nil, notFound(version, model, kind)
	}

	data, err := c.upstream.Fetch(ctx, version, model, kind)
	if err != nil {
		return nil, err
	}
	_, err = c.store.PutAsset(ctx, assetstore.Asset{
		Version:  version,
		Model:    model,
		Kind:     string(kind),
		Filename: candidateNames(model, kind)[0],
		Content:  data,
	})
	if err != nil {
		c.Log(slog.LevelWarn, "cache write failed",
			slog.String("model", model), slog.String("error", err.Error()))
	} else {
		c.Log(slog.LevelDebug, "cached asset",
			slog.String("version", version), slog.String("model", model), slog.String("kind", string(kind)))
	}
	return data, nil
}

// Models lists cached metaschema models for version, falling back to the
// upstream provider when nothing is cached.
func (c *CacheProvider) Models(ctx context.Context, version string) ([]string, error) {
	models, err := c.store.Models(ctx, version, string(AssetMetaschema))
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		if l, ok := c.upstream.(Lister); ok {
			return l.Models(ctx, version)
		}
	}
	return models, nil
}

// Versions lists the releases recorded in the cache, newest first.
func (c *CacheProvider) Versions(ctx context.Context) ([]CacheVersion, error) {
	return c.store.Versions(ctx)
}

// Sync replaces the cached copy of version with the assets published in
// the release feed. kinds limits the asset kinds copied; empty means all.
func (c *CacheProvider) Sync(ctx context.Context, feed *GitHubReleaseProvider, version string, kinds ...AssetKind) (SyncResult, error) {
	version = normalizeVersion(version)
	rel, err := feed.release(ctx, version)
	if err != nil {
		return SyncResult{Version: version}, err
	}
	var names []string
	for _, k := range kinds {
		names = append(names, string(k))
	}
	res, err := feed.client.Sync(ctx, c.store, rel, names...)
	if err != nil {
		return SyncResult{Version: version}, fmt.Errorf("sync %s: %w", version, err)
	}
	return SyncResult{Version: res.Tag, Stored: res.Stored, Failed: res.Failed}, nil
}
