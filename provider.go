package metaschema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/golangoscal/metaschema/internal/document"
)

// AssetKind names a kind of support file published with a schema version.
type AssetKind string

const (
	AssetMetaschema AssetKind = "metaschema"
	AssetXMLSchema  AssetKind = "xml-schema"
	AssetJSONSchema AssetKind = "json-schema"
	AssetXMLToJSON  AssetKind = "xml-to-json"
	AssetJSONToXML  AssetKind = "json-to-xml"
)

// Provider supplies raw schema assets by version, model, and kind.
// A missing asset is reported with an error wrapping ErrAssetNotFound.
// Implementations must be safe for concurrent use when passed to
// ResolveAll.
type Provider interface {
	Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error)
}

// Lister is implemented by providers that can enumerate the models they
// hold for a version.
type Lister interface {
	Models(ctx context.Context, version string) ([]string, error)
}

// modelAliases pairs the short and long names the release feed uses for
// the same model.
var modelAliases = map[string]string{
	"ssp":                           "system-security-plan",
	"system-security-plan":          "ssp",
	"poam":                          "plan-of-action-and-milestones",
	"plan-of-action-and-milestones": "poam",
}

// assetSuffixes lists the file-name suffixes tried per kind, best first.
var assetSuffixes = map[AssetKind][]string{
	AssetMetaschema: {"_metaschema_RESOLVED.xml", "_metaschema.xml"},
	AssetXMLSchema:  {"_schema.xsd"},
	AssetJSONSchema: {"_schema.json"},
	AssetXMLToJSON:  {"_xml-to-json-converter.xsl"},
	AssetJSONToXML:  {"_json-to-xml-converter.xsl"},
}

// candidateNames returns the file names that may hold (model, kind), in
// lookup order.
func candidateNames(model string, kind AssetKind) []string {
	names := []string{model}
	if alias, ok := modelAliases[model]; ok {
		names = append(names, alias)
	}
	var out []string
	for _, m := range names {
		for _, suffix := range assetSuffixes[kind] {
			out = append(out, "oscal_"+m+suffix)
		}
		if kind == AssetMetaschema {
			out = append(out, m+"_metaschema.xml", m+".xml")
		}
	}
	return out
}

// isMetaschemaFile reports whether a file name looks like a metaschema
// document for listing purposes.
func isMetaschemaFile(name string) bool {
	return strings.HasSuffix(name, "_metaschema.xml") || strings.HasSuffix(name, "_metaschema_RESOLVED.xml")
}

func notFound(version, model string, kind AssetKind) error {
	return fmt.Errorf("%s %s %s: %w", version, model, kind, ErrAssetNotFound)
}

// --- Dir Provider (single directory, lazy) ---

type dirProvider struct {
	path string
}

// Dir creates a Provider that looks in path/<version>/ and then path/.
// Files are looked up lazily on each Fetch call.
func Dir(path string) (Provider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	return &dirProvider{path: path}, nil
}

// MustDir is like Dir but panics on error.
func MustDir(path string) Provider {
	p, err := Dir(path)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *dirProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, dir := range []string{filepath.Join(p.path, version), p.path} {
		for _, name := range candidateNames(model, kind) {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}
	return nil, notFound(version, model, kind)
}

func (p *dirProvider) Models(ctx context.Context, version string) ([]string, error) {
	var names []string
	for _, dir := range []string{filepath.Join(p.path, version), p.path} {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && isMetaschemaFile(e.Name()) {
				names = append(names, document.ModelNameFromHref(e.Name()))
			}
		}
	}
	return sortedUnique(names), nil
}

// --- DirTree Provider (recursive directory, indexed) ---

type treeProvider struct {
	index map[string][]string // file name -> paths in walk order
}

// DirTree creates a Provider that recursively indexes a directory tree.
// It walks the tree once at construction. When a file name occurs more
// than once, a copy inside a directory named after the requested version
// wins, otherwise the first in walk order.
func DirTree(root string) (Provider, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: root, Err: os.ErrInvalid}
	}

	index := make(map[string][]string)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !hasAssetExtension(d.Name()) {
			return nil
		}
		index[d.Name()] = append(index[d.Name()], path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &treeProvider{index: index}, nil
}

// MustDirTree is like DirTree but panics on error.
func MustDirTree(root string) Provider {
	p, err := DirTree(root)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *treeProvider) lookup(version, name string) (string, bool) {
	paths := p.index[name]
	if len(paths) == 0 {
		return "", false
	}
	for _, candidate := range paths {
		if filepath.Base(filepath.Dir(candidate)) == version {
			return candidate, true
		}
	}
	return paths[0], true
}

func (p *treeProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, name := range candidateNames(model, kind) {
		if path, ok := p.lookup(version, name); ok {
			return os.ReadFile(path)
		}
	}
	return nil, notFound(version, model, kind)
}

func (p *treeProvider) Models(ctx context.Context, version string) ([]string, error) {
	var names []string
	for name := range p.index {
		if isMetaschemaFile(name) {
			names = append(names, document.ModelNameFromHref(name))
		}
	}
	return sortedUnique(names), nil
}

// --- FS Provider (for embed.FS, testing) ---

type fsProvider struct {
	name string
	fsys fs.FS
}

// FS creates a Provider backed by an fs.FS (e.g., embed.FS) with the same
// <version>/ then root layout as Dir. The name is used in error messages.
func FS(name string, fsys fs.FS) Provider {
	return &fsProvider{name: name, fsys: fsys}
}

func (p *fsProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, dir := range []string{version, "."} {
		for _, name := range candidateNames(model, kind) {
			data, err := fs.ReadFile(p.fsys, path.Join(dir, name))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
		}
	}
	return nil, fmt.Errorf("%s: %w", p.name, notFound(version, model, kind))
}

func (p *fsProvider) Models(ctx context.Context, version string) ([]string, error) {
	var names []string
	for _, dir := range []string{version, "."} {
		entries, err := fs.ReadDir(p.fsys, dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		for _, e := range entries {
			if !e.IsDir() && isMetaschemaFile(e.Name()) {
				names = append(names, document.ModelNameFromHref(e.Name()))
			}
		}
	}
	return sortedUnique(names), nil
}

// --- Multi Provider (combines multiple providers) ---

type multiProvider struct {
	providers []Provider
}

// Multi combines providers. Fetch tries each in order and returns the
// first match; an error other than absence stops the search.
func Multi(providers ...Provider) Provider {
	return &multiProvider{providers: providers}
}

func (p *multiProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	for _, src := range p.providers {
		data, err := src.Fetch(ctx, version, model, kind)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, notFound(version, model, kind)
}

func (p *multiProvider) Models(ctx context.Context, version string) ([]string, error) {
	var names []string
	for _, src := range p.providers {
		l, ok := src.(Lister)
		if !ok {
			continue
		}
		m, err := l.Models(ctx, version)
		if err != nil {
			return nil, err
		}
		names = append(names, m...)
	}
	return sortedUnique(names), nil
}

// --- Memo Provider (shared, deduplicated fetches) ---

type memoKey struct {
	version string
	model   string
	kind    AssetKind
}

type memoEntry struct {
	done chan struct{}
	data []byte
	err  error
}

type memoProvider struct {
	upstream Provider

	mu      sync.Mutex
	entries map[memoKey]*memoEntry
}

// Memo wraps a provider so each (version, model, kind) is fetched at most
// once. Concurrent callers for the same key wait for the one in-flight
// fetch. Failures other than absence are not memoized, and a waiter whose
// context is still live fetches again when the in-flight caller was
// cancelled.
func Memo(p Provider) Provider {
	if m, ok := p.(*memoProvider); ok {
		return m
	}
	return &memoProvider{upstream: p, entries: make(map[memoKey]*memoEntry)}
}

func (p *memoProvider) Fetch(ctx context.Context, version, model string, kind AssetKind) ([]byte, error) {
	key := memoKey{version, model, kind}

	for {
		p.mu.Lock()
		e, ok := p.entries[key]
		if !ok {
			e = &memoEntry{done: make(chan struct{})}
			p.entries[key] = e
			p.mu.Unlock()

			e.data, e.err = p.upstream.Fetch(ctx, version, model, kind)
			if e.err != nil && !errors.Is(e.err, fs.ErrNotExist) {
				p.mu.Lock()
				delete(p.entries, key)
				p.mu.Unlock()
			}
			close(e.done)
			return e.data, e.err
		}
		p.mu.Unlock()

		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// The fetch was abandoned by its own caller, not by this one.
		if isContextError(e.err) && ctx.Err() == nil {
			continue
		}
		return e.data, e.err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *memoProvider) Models(ctx context.Context, version string) ([]string, error) {
	if l, ok := p.upstream.(Lister); ok {
		return l.Models(ctx, version)
	}
	return nil, nil
}

// ListModels returns the models p holds for version, or an error if p
// cannot enumerate them.
func ListModels(ctx context.Context, p Provider, version string) ([]string, error) {
	l, ok := p.(Lister)
	if !ok {
		return nil, fmt.Errorf("provider %T cannot list models", p)
	}
	return l.Models(ctx, normalizeVersion(version))
}

var assetExtensions = []string{".xml", ".xsd", ".json", ".xsl"}

func hasAssetExtension(name string) bool {
	return slices.Contains(assetExtensions, strings.ToLower(filepath.Ext(name)))
}

func sortedUnique(names []string) []string {
	slices.Sort(names)
	return slices.Compact(names)
}
