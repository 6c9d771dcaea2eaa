package release

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/golangoscal/metaschema/internal/assetstore"
)

// Store receives synchronized releases. *assetstore.Store implements it.
type Store interface {
	ClearVersion(ctx context.Context, tag string) error
	PutVersion(ctx context.Context, v assetstore.Version) error
	PutAsset(ctx context.Context, a assetstore.Asset) (string, error)
	MarkComplete(ctx context.Context, tag string, successful bool) error
}

var _ Store = (*assetstore.Store)(nil)

// SyncResult summarizes one synchronized release.
type SyncResult struct {
	Tag    string
	Stored int
	Failed []string
}

// Sync replaces everything stored for r with a fresh copy of its assets.
// Kinds limits the asset kinds downloaded; empty means all. A failed
// download is recorded in the result and marks the version incomplete.
func (c *Client) Sync(ctx context.Context, store Store, r Release, kinds ...string) (SyncResult, error) {
	res := SyncResult{Tag: r.Tag}
	if err := store.ClearVersion(ctx, r.Tag); err != nil {
		return res, err
	}
	err := store.PutVersion(ctx, assetstore.Version{
		Tag:                   r.Tag,
		Title:                 r.Title,
		Released:              r.Published,
		GitHubLocation:        r.HTMLURL,
		DocumentationLocation: r.DocumentationURL(),
	})
	if err != nil {
		return res, err
	}

	for _, a := range r.Assets {
		if len(kinds) > 0 && !slices.Contains(kinds, a.Kind) {
			continue
		}
		content, err := c.Download(ctx, a)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			c.Log(slog.LevelWarn, "asset download failed",
				slog.String("name", a.Name), slog.String("error", err.Error()))
			res.Failed = append(res.Failed, a.Name)
			continue
		}
		_, err = store.PutAsset(ctx, assetstore.Asset{
			Version:          r.Tag,
			Model:            a.Model,
			Kind:             a.Kind,
			Filename:         a.Name,
			OriginalLocation: a.DownloadURL,
			Content:          content,
		})
		if err != nil {
			return res, fmt.Errorf("storing %s: %w", a.Name, err)
		}
		res.Stored++
	}

	if err := store.MarkComplete(ctx, r.Tag, len(res.Failed) == 0); err != nil {
		return res, err
	}
	c.Log(slog.LevelInfo, "release synchronized",
		slog.String("tag", r.Tag),
		slog.Int("stored", res.Stored),
		slog.Int("failed", len(res.Failed)))
	return res, nil
}
