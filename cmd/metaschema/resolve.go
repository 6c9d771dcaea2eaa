package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
	"github.com/golangoscal/metaschema/cmd/internal/cliutil"
)

func (c *cli) newResolveCmd() *cobra.Command {
	var (
		outDir     string
		format     string
		noSequence bool
		root       string
	)
	cmd := &cobra.Command{
		Use:   "resolve [MODEL...]",
		Short: "Resolve models and write one file per model",
		Long: `Resolves each MODEL and writes OSCAL_<version>_<model>_metaschema.<format>
into the output directory. With no arguments the models listed in the
configuration file are resolved.`,
		Example: `  metaschema resolve catalog
  metaschema resolve -o out -f yaml catalog profile
  metaschema resolve --schema-version v1.0.0 catalog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("out") {
				outDir = c.cfg.OutputDir
			}
			if !cmd.Flags().Changed("format") {
				format = c.cfg.Format
			}
			models := args
			if len(models) == 0 {
				models = c.cfg.Models
			}
			if len(models) == 0 {
				return errors.New("no models specified")
			}
			f, err := metaschema.ParseFormat(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			opts, closeFn, err := c.resolveOptions(ctx)
			if err != nil {
				return err
			}
			defer closeFn()
			if root != "" {
				opts = append(opts, metaschema.WithRoot(root))
			}

			var writeOpts []metaschema.WriteOption
			if noSequence {
				writeOpts = append(writeOpts, metaschema.WithoutSequence())
			}

			trees, resolveErr := metaschema.ResolveAll(ctx, models, opts...)
			for _, tree := range trees {
				if tree == nil {
					continue
				}
				path, err := metaschema.WriteFile(outDir, tree, f, writeOpts...)
				if err != nil {
					return err
				}
				cmd.Printf("%s: %d nodes, %d diagnostics -> %s\n",
					tree.Model(), tree.NodeCount(), len(tree.Diagnostics()), path)
			}
			if resolveErr != nil {
				return fmt.Errorf("resolve: %w", resolveErr)
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&outDir, "out", "o", ".", "output directory")
	fl.StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	fl.BoolVar(&noSequence, "no-sequence", false, "omit node sequence numbers")
	fl.StringVar(&root, "root", "", "override the root assembly")
	return cmd
}

func (c *cli) newDumpCmd() *cobra.Command {
	var (
		format     string
		output     string
		noSequence bool
		root       string
	)
	cmd := &cobra.Command{
		Use:   "dump MODEL",
		Short: "Write a resolved tree to stdout",
		Args:  cobra.ExactArgs(1),
		Example: `  metaschema dump catalog
  metaschema dump -f yaml --no-sequence catalog > catalog.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				format = c.cfg.Format
			}
			f, err := metaschema.ParseFormat(format)
			if err != nil {
				return err
			}
			var extra []metaschema.Option
			if root != "" {
				extra = append(extra, metaschema.WithRoot(root))
			}
			tree, err := c.resolveOne(cmd.Context(), args[0], extra...)
			if err != nil {
				return err
			}

			var writeOpts []metaschema.WriteOption
			if noSequence {
				writeOpts = append(writeOpts, metaschema.WithoutSequence())
			}
			w, closeOut, err := cliutil.GetOutput(output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := metaschema.Write(w, tree, f, writeOpts...); err != nil {
				_ = closeOut()
				return err
			}
			return closeOut()
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&format, "format", "f", "json", "output format (json or yaml)")
	fl.StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	fl.BoolVar(&noSequence, "no-sequence", false, "omit node sequence numbers")
	fl.StringVar(&root, "root", "", "override the root assembly")
	return cmd
}
