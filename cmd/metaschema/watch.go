package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
)

const defaultDebounce = 300 * time.Millisecond

func (c *cli) newWatchCmd() *cobra.Command {
	var (
		outDir   string
		format   string
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch MODEL...",
		Short: "Re-resolve models whenever schema files change",
		Long: `Resolves each MODEL, writes the output files, and repeats whenever a
metaschema document under the search paths is created, written, removed, or
renamed. Stops on interrupt.`,
		Args:    cobra.MinimumNArgs(1),
		Example: `  metaschema watch -p ./schemas -o out catalog profile`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("out") {
				outDir = c.cfg.OutputDir
			}
			if !cmd.Flags().Changed("format") {
				format = c.cfg.Format
			}
			f, err := metaschema.ParseFormat(format)
			if err != nil {
				return err
			}

			dirs := c.cfg.Paths
			if len(dirs) == 0 {
				dirs = metaschema.SystemPaths()
			}
			if len(dirs) == 0 {
				return errors.New("no search paths to watch")
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()
			for _, d := range dirs {
				if err := addTree(watcher, d); err != nil {
					return fmt.Errorf("watching %s: %w", d, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			rebuild := func() {
				if err := c.resolveAndWrite(ctx, cmd, args, outDir, f); err != nil {
					cmd.PrintErrf("error: %v\n", err)
				}
			}
			rebuild()
			cmd.Printf("watching %d directories\n", len(watcher.WatchList()))
			return watchLoop(ctx, watcher, debounce, func(changed []string) {
				cmd.Printf("changed: %s\n", strings.Join(changed, ", "))
				rebuild()
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&outDir, "out", "o", ".", "output directory")
	fl.StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	fl.DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before re-resolving")
	return cmd
}

func (c *cli) resolveAndWrite(ctx context.Context, cmd *cobra.Command, models []string, outDir string, f metaschema.Format) error {
	opts, closeFn, err := c.resolveOptions(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	trees, resolveErr := metaschema.ResolveAll(ctx, models, opts...)
	for _, tree := range trees {
		if tree == nil {
			continue
		}
		path, err := metaschema.WriteFile(outDir, tree, f)
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d nodes -> %s\n", tree.Model(), tree.NodeCount(), path)
	}
	return resolveErr
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// relevant reports whether an event should trigger a rebuild.
func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return strings.EqualFold(filepath.Ext(base), ".xml")
}

// watchLoop calls rebuild with the changed files once no relevant event
// has arrived for the debounce period. New directories are watched as they
// appear. It returns when ctx is done or the watcher closes.
func watchLoop(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, rebuild func(changed []string)) error {
	timer := time.NewTimer(debounce)
	timer.Stop()
	pending := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = addTree(w, ev.Name)
					continue
				}
			}
			if !relevant(ev) {
				continue
			}
			pending[ev.Name] = true
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, filepath.Base(name))
			}
			clear(pending)
			slices.Sort(changed)
			rebuild(changed)
		}
	}
}
