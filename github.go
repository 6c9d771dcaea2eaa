package metaschema

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/time/rate"

	"github.com/golangoscal/metaschema/internal/release"
)

// GitHubOptions configures the release-feed provider.
type GitHubOptions struct {
	// Owner and Repo name the release repository; they default to
	// usnistgov/OSCAL.
	Owner string
	Repo  string

	// Token authenticates API requests. Empty means anonymous access,
	// which GitHub limits to 60 requests per hour.
	Token string

	// HTTPClient and BaseURL override the transport and endpoint.
	HTTPClient *http.Client
	BaseURL    string

	// RequestsPerSecond throttles API calls; zero selects the default.
	RequestsPerSecond float64

	Logger *slog.Logger
}

// GitHubReleaseProvider fetches assets attached to OSCAL releases.
// Release metadata is looked up once per version and reused.
type GitHubReleaseProvider struct {
	client *release.Client

	mu       sync.Mutex
	releases map[string]release.Release
}

// GitHubRelease creates a provider for the release feed.
func GitHubRelease(ctx context.Context, opts GitHubOptions) (*GitHubReleaseProvider, error) {
	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	client, err := release.New(ctx, release.Options{
		Owner:      opts.Owner,
		Repo:       opts.Repo,
		Token:      opts.Token,
		HTTPClient: opts.HTTPClient,
		BaseURL:    opts.BaseURL,
		Limiter:    limiter,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &GitHubReleaseProvider{client: client, releases: make(map[string]release.Release)}, nil
}

func (p *GitHubReleaseProvider) release(ctx context.Context, version string) (release.Release, error) {
	p.mu.Lock()
	rel, ok := p.releases[version]
	p.mu.Unlock()
	if ok {
		return rel, nil
	}
	rel, err := p.client.Release(ctx, version)
	if err != nil {
		return release.Release{}, err
	}
	p.mu.Lock()
	p.releases[version] = rel
	p.mu.Unlock()
	return rel, nil
}

func (p *GitHubReleaseProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	rel, err := p.release(ctx, version)
	if err != nil {
		return nil, err
	}
	names := []string{model}
	if alias, ok := modelAliases[model]; ok {
		names = append(names, alias)
	}
	for _, a := range rel.Assets {
		if a.Kind != string(kind) {
			continue
		}
		for _, name := range names {
			if a.Model == name {
				return p.client.Download(ctx, a)
			}
		}
	}
	return nil, notFound(version, model, kind)
}

// Models lists the models with a metaschema asset in the release.
func (p *GitHubReleaseProvider) Models(ctx context.Context, version string) ([]string, error) {
	rel, err := p.release(ctx, version)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, a := range rel.Assets {
		if a.Kind == string(AssetMetaschema) {
			names = append(names, a.Model)
		}
	}
	return sortedUnique(names), nil
}

// Versions lists published release tags in feed order.
func (p *GitHubReleaseProvider) Versions(ctx context.Context) ([]string, error) {
	releases, err := p.client.Releases(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing releases of %s: %w", p.client.Repository(), err)
	}
	tags := make([]string, 0, len(releases))
	p.mu.Lock()
	for _, r := range releases {
		tags = append(tags, r.Tag)
		p.releases[r.Tag] = r
	}
	p.mu.Unlock()
	return tags, nil
}
