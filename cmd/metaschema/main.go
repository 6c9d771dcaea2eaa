// Command metaschema resolves OSCAL Metaschema definitions into
// denormalized model trees.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
	"github.com/golangoscal/metaschema/cmd/internal/cliutil"
	"github.com/golangoscal/metaschema/internal/config"
)

// Exit codes.
const (
	exitOK          = 0 // success
	exitError       = 1 // user error or processing failure
	exitDiagnostics = 2 // resolution produced error diagnostics
)

// exitCodeError carries a non-default exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

var version = "(devel)"

// cli holds the global flags and the configuration they override.
type cli struct {
	verbose       int
	paths         []string
	configPath    string
	cacheDir      string
	offline       bool
	schemaVersion string

	cfg    *config.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.err != nil {
			cliutil.PrintError(stderr, "%v", ec.err)
		}
		return ec.code
	}
	cliutil.PrintError(stderr, "%v", err)
	return exitError
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "metaschema",
		Short: "Resolve OSCAL Metaschema definitions",
		Long: `metaschema resolves modular OSCAL Metaschema documents into one
denormalized tree per model, listing every element and attribute with its
cardinality, datatype, and documentation.

Schema documents are looked up in the -p paths (or METASCHEMA_PATH and the
user cache when none are given), then in the local asset cache, which is
filled from the usnistgov/OSCAL release feed unless --offline is set.`,
		Example: `  metaschema resolve catalog profile
  metaschema dump -f yaml catalog
  metaschema diag -p ./schemas catalog
  metaschema outline --depth 3 catalog
  metaschema fetch v1.1.3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringArrayVarP(&c.paths, "path", "p", nil, "add schema search path (repeatable)")
	pf.CountVarP(&c.verbose, "verbose", "v", "increase log verbosity (-v debug, -vv trace)")
	pf.StringVar(&c.configPath, "config", "", "configuration file (.yaml or .toml)")
	pf.StringVar(&c.cacheDir, "cache-dir", "", "asset cache directory")
	pf.BoolVar(&c.offline, "offline", false, "never contact the release feed")
	pf.StringVar(&c.schemaVersion, "schema-version", "", "schema version to resolve (default from config, v1.1.3)")

	root.AddCommand(
		c.newResolveCmd(),
		c.newDumpCmd(),
		c.newDiagCmd(),
		c.newOutlineCmd(),
		c.newModelsCmd(),
		c.newFetchCmd(),
		c.newWatchCmd(),
		c.newPathsCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig reads the configuration file and applies flag overrides.
func (c *cli) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("path") {
		cfg.Paths = c.paths
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = c.cacheDir
	}
	if flags.Changed("offline") {
		cfg.GitHub.Offline = c.offline
	}
	if flags.Changed("schema-version") {
		cfg.Version = c.schemaVersion
	}
	if cfg.GitHub.Token == "" {
		cfg.GitHub.Token = os.Getenv("GITHUB_TOKEN")
	}
	c.cfg = cfg
	c.log = c.newLogger()
	return nil
}

func (c *cli) newLogger() *slog.Logger {
	level, _ := config.ParseLogLevel(c.cfg.LogLevel)
	switch {
	case c.verbose >= 2:
		level = metaschema.LevelTrace
	case c.verbose == 1:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
}

// provider composes the search paths with the asset cache. When no paths
// are configured, useSystem asks for search-path discovery. The returned
// close function releases the cache.
func (c *cli) provider(ctx context.Context) (p metaschema.Provider, useSystem bool, closeFn func() error, err error) {
	var sources []metaschema.Provider
	if len(c.cfg.Paths) > 0 {
		for _, path := range c.cfg.Paths {
			src, err := metaschema.DirTree(path)
			if err != nil {
				fmt.Fprintf(c.stderr, "warning: cannot access path %s: %v\n", path, err)
				continue
			}
			sources = append(sources, src)
		}
		if len(sources) == 0 {
			return nil, false, nil, metaschema.ErrNoProvider
		}
	} else {
		useSystem = true
	}

	var upstream metaschema.Provider
	if !c.cfg.GitHub.Offline {
		feed, err := c.feed(ctx)
		if err != nil {
			return nil, false, nil, err
		}
		upstream = feed
	}
	cache, err := metaschema.Cache(c.cfg.CacheDir, upstream, c.log)
	if err != nil {
		return nil, false, nil, fmt.Errorf("opening asset cache: %w", err)
	}
	sources = append(sources, cache)
	return metaschema.Multi(sources...), useSystem, cache.Close, nil
}

func (c *cli) feed(ctx context.Context) (*metaschema.GitHubReleaseProvider, error) {
	return metaschema.GitHubRelease(ctx, metaschema.GitHubOptions{
		Owner:  c.cfg.GitHub.Owner,
		Repo:   c.cfg.GitHub.Repo,
		Token:  c.cfg.GitHub.Token,
		Logger: c.log,
	})
}

// resolveOptions returns the options shared by every resolving command.
func (c *cli) resolveOptions(ctx context.Context) ([]metaschema.Option, func() error, error) {
	p, useSystem, closeFn, err := c.provider(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := []metaschema.Option{
		metaschema.WithProvider(p),
		metaschema.WithVersion(c.cfg.Version),
		metaschema.WithLogger(c.log),
		metaschema.WithStepLimit(c.cfg.StepLimit),
		metaschema.WithStrictness(c.cfg.StrictnessLevel()),
	}
	if useSystem {
		opts = append(opts, metaschema.WithSystemPaths())
	}
	return opts, closeFn, nil
}

// resolveOne resolves a single model. A tree that crossed the diagnostic
// threshold is still returned, with a warning.
func (c *cli) resolveOne(ctx context.Context, modelName string, extra ...metaschema.Option) (*metaschema.Tree, error) {
	opts, closeFn, err := c.resolveOptions(ctx)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	tree, err := metaschema.Resolve(ctx, modelName, append(opts, extra...)...)
	if err != nil && tree == nil {
		return nil, err
	}
	if err != nil {
		fmt.Fprintf(c.stderr, "warning: %v\n", err)
	}
	return tree, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			v := version
			if info, ok := debug.ReadBuildInfo(); ok && v == "(devel)" && info.Main.Version != "" {
				v = info.Main.Version
			}
			cmd.Printf("metaschema %s (default schema %s)\n", v, metaschema.DefaultVersion)
		},
	}
}
