// Package release reads the OSCAL release feed on GitHub: it lists
// published releases, classifies their support-file assets by model and
// kind, and downloads asset content.
package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/golangoscal/metaschema/internal/types"
)

const (
	DefaultOwner = "usnistgov"
	DefaultRepo  = "OSCAL"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the proactive request rate (requests per second).
	DefaultRate = 1.2

	// DocumentationRoot prefixes per-version model documentation links.
	DocumentationRoot = "https://pages.nist.gov/OSCAL-Reference/models"
)

// Asset kinds, named after the file each support pattern selects.
const (
	KindMetaschema = "metaschema"
	KindXMLSchema  = "xml-schema"
	KindJSONSchema = "json-schema"
	KindXMLToJSON  = "xml-to-json"
	KindJSONToXML  = "json-to-xml"
)

// ExcludedTags are pre-release tags that never carried a usable asset set.
var ExcludedTags = []string{
	"v1.0.0-rc1",
	"v1.0.0-rc2",
	"v1.0.0-milestone1",
	"v1.0.0-milestone2",
	"v1.0.0-milestone3",
}

// SupportPatterns maps asset file-name suffixes to asset kinds.
var SupportPatterns = []struct {
	Suffix string
	Kind   string
}{
	{"_metaschema_RESOLVED.xml", KindMetaschema},
	{"_schema.xsd", KindXMLSchema},
	{"_schema.json", KindJSONSchema},
	{"_xml-to-json-converter.xsl", KindXMLToJSON},
	{"_json-to-xml-converter.xsl", KindJSONToXML},
}

// modelAliases expands the short asset names used by the feed.
var modelAliases = map[string]string{
	"ssp":  "system-security-plan",
	"poam": "plan-of-action-and-milestones",
}

// Release is one published, non-draft release.
type Release struct {
	Tag       string
	Title     string
	Published time.Time
	HTMLURL   string
	Assets    []Asset
}

// DocumentationURL returns the model reference documentation for the
// release.
func (r Release) DocumentationURL() string {
	return DocumentationRoot + "/" + r.Tag
}

// Asset is a classified support file attached to a release.
type Asset struct {
	ID          int64
	Name        string
	Model       string
	Kind        string
	Size        int
	DownloadURL string
}

// Classify maps an asset file name to its model and kind. Names that match
// no support pattern report ok=false.
func Classify(name string) (model, kind string, ok bool) {
	for _, p := range SupportPatterns {
		base, found := strings.CutSuffix(name, p.Suffix)
		if !found {
			continue
		}
		model = strings.TrimPrefix(base, "oscal_")
		if alias, ok := modelAliases[model]; ok {
			model = alias
		}
		return model, p.Kind, true
	}
	return "", "", false
}

// IsExcluded reports whether tag is one of ExcludedTags.
func IsExcluded(tag string) bool {
	return slices.Contains(ExcludedTags, strings.ToLower(tag))
}

// Options configures a Client.
type Options struct {
	Owner string
	Repo  string

	// Token authenticates requests. Empty means anonymous access.
	Token string

	// HTTPClient overrides the transport. Ignored when Token is set.
	HTTPClient *http.Client

	// BaseURL overrides the API endpoint, e.g. for GitHub Enterprise.
	BaseURL string

	// Limiter throttles requests. Nil selects DefaultRate.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// Client wraps the go-github client for one release repository.
type Client struct {
	types.Logger
	gh      *gh.Client
	http    *http.Client
	limiter *rate.Limiter
	owner   string
	repo    string
}

// New creates a Client.
func New(ctx context.Context, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	c := &Client{
		Logger:  types.Logger{L: types.Component(opts.Logger, "release")},
		gh:      gh.NewClient(hc),
		http:    hc,
		limiter: opts.Limiter,
		owner:   opts.Owner,
		repo:    opts.Repo,
	}
	if c.owner == "" {
		c.owner = DefaultOwner
	}
	if c.repo == "" {
		c.repo = DefaultRepo
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Limit(DefaultRate), 1)
	}
	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing base url: %w", err)
		}
		c.gh.BaseURL = u
	}
	return c, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// Releases lists every published release, skipping drafts and
// ExcludedTags, in feed order.
func (c *Client) Releases(ctx context.Context) ([]Release, error) {
	opts := &gh.ListOptions{PerPage: 100}
	var out []Release
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		page, resp, err := c.gh.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, wrapError(err, "list releases")
		}
		for _, r := range page {
			if r.GetDraft() {
				continue
			}
			tag := strings.ToLower(r.GetTagName())
			if IsExcluded(tag) {
				c.Log(slog.LevelDebug, "skipping excluded release", slog.String("tag", tag))
				continue
			}
			out = append(out, convert(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	c.Log(slog.LevelDebug, "releases listed",
		slog.String("repository", c.Repository()),
		slog.Int("count", len(out)))
	return out, nil
}

// Release returns the release tagged tag. A missing tag yields an error
// wrapping fs.ErrNotExist.
func (c *Client) Release(ctx context.Context, tag string) (Release, error) {
	if IsExcluded(tag) {
		return Release{}, fmt.Errorf("release %s is excluded: %w", tag, fs.ErrNotExist)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Release{}, fmt.Errorf("rate limit wait: %w", err)
	}
	r, _, err := c.gh.Repositories.GetReleaseByTag(ctx, c.owner, c.repo, tag)
	if err != nil {
		return Release{}, wrapError(err, "get release "+tag)
	}
	if r.GetDraft() {
		return Release{}, fmt.Errorf("release %s is a draft: %w", tag, fs.ErrNotExist)
	}
	return convert(r), nil
}

// Download fetches the content of an asset.
func (c *Client) Download(ctx context.Context, a Asset) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	rc, _, err := c.gh.Repositories.DownloadReleaseAsset(ctx, c.owner, c.repo, a.ID, c.http)
	if err != nil {
		return nil, wrapError(err, "download "+a.Name)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", a.Name, err)
	}
	if c.TraceEnabled() {
		c.Trace("asset downloaded", slog.String("name", a.Name), slog.Int("bytes", len(content)))
	}
	return content, nil
}

func convert(r *gh.RepositoryRelease) Release {
	out := Release{
		Tag:     strings.ToLower(r.GetTagName()),
		Title:   r.GetName(),
		HTMLURL: r.GetHTMLURL(),
	}
	if r.PublishedAt != nil {
		out.Published = r.PublishedAt.Time
	}
	for _, a := range r.Assets {
		model, kind, ok := Classify(a.GetName())
		if !ok {
			continue
		}
		out.Assets = append(out.Assets, Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			Model:       model,
			Kind:        kind,
			Size:        a.GetSize(),
			DownloadURL: a.GetBrowserDownloadURL(),
		})
	}
	return out
}

// wrapError maps a 404 onto fs.ErrNotExist and prefixes the operation.
func wrapError(err error, operation string) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", operation, fs.ErrNotExist)
	}
	return fmt.Errorf("%s: %w", operation, err)
}
