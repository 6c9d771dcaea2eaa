package main

import (
	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
)

func (c *cli) newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available for the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, useSystem, closeFn, err := c.provider(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			if useSystem {
				var sources []metaschema.Provider
				for _, dir := range metaschema.SystemPaths() {
					if src, err := metaschema.Dir(dir); err == nil {
						sources = append(sources, src)
					}
				}
				p = metaschema.Multi(append(sources, p)...)
			}

			models, err := metaschema.ListModels(ctx, p, c.cfg.Version)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				cmd.PrintErrln("no models found")
				return nil
			}
			for _, m := range models {
				cmd.Println(m)
			}
			return nil
		},
	}
}

func (c *cli) newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show schema search paths",
		Long: `Shows the schema search paths that would be used. When -p paths are
given, shows those. Otherwise shows the directories discovered from
METASCHEMA_PATH and the user cache.`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			paths := c.cfg.Paths
			if len(paths) == 0 {
				paths = metaschema.SystemPaths()
			}
			if len(paths) == 0 {
				cmd.PrintErrln("no search paths found")
				return
			}
			for _, p := range paths {
				cmd.Println(p)
			}
		},
	}
}
