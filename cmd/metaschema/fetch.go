package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
)

func (c *cli) newFetchCmd() *cobra.Command {
	var (
		kinds  []string
		list   bool
		cached bool
	)
	cmd := &cobra.Command{
		Use:   "fetch [VERSION...]",
		Short: "Copy release assets into the local cache",
		Long: `Downloads the support files of each VERSION from the release feed into
the asset cache, replacing anything cached for that version before. With
--list, prints the versions published in the feed instead; with --cached,
prints the versions already in the cache.`,
		Example: `  metaschema fetch v1.1.3
  metaschema fetch --kind metaschema v1.1.2 v1.1.3
  metaschema fetch --list
  metaschema fetch --cached`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cache, err := metaschema.Cache(c.cfg.CacheDir, nil, c.log)
			if err != nil {
				return fmt.Errorf("opening asset cache: %w", err)
			}
			defer cache.Close()

			if cached {
				versions, err := cache.Versions(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tRELEASED\tACQUIRED\tCOMPLETE")
				for _, v := range versions {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", v.Tag,
						v.Released.Format(time.DateOnly), v.Acquired.Format(time.DateTime), v.Successful)
				}
				return tw.Flush()
			}

			if c.cfg.GitHub.Offline {
				return errors.New("fetch needs the release feed; drop --offline")
			}
			feed, err := c.feed(ctx)
			if err != nil {
				return err
			}

			if list {
				tags, err := feed.Versions(ctx)
				if err != nil {
					return err
				}
				for _, t := range tags {
					cmd.Println(t)
				}
				return nil
			}

			versions := args
			if len(versions) == 0 {
				versions = []string{c.cfg.Version}
			}
			var assetKinds []metaschema.AssetKind
			for _, k := range kinds {
				assetKinds = append(assetKinds, metaschema.AssetKind(k))
			}

			var errs []error
			for _, v := range versions {
				res, err := cache.Sync(ctx, feed, v, assetKinds...)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				cmd.Printf("%s: %d assets stored", res.Version, res.Stored)
				if len(res.Failed) > 0 {
					cmd.Printf(", %d failed: %v", len(res.Failed), res.Failed)
				}
				cmd.Println()
			}
			cmd.Printf("cache: %s\n", cache.Path())
			return errors.Join(errs...)
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVar(&kinds, "kind", nil, "asset kind to fetch: metaschema, xml-schema, json-schema, xml-to-json, json-to-xml (repeatable)")
	fl.BoolVar(&list, "list", false, "list versions published in the release feed")
	fl.BoolVar(&cached, "cached", false, "list versions held in the cache")
	return cmd
}
