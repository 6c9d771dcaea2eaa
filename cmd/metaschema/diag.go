package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema"
	"github.com/golangoscal/metaschema/model"
)

func (c *cli) newDiagCmd() *cobra.Command {
	var (
		level  string
		ignore []string
	)
	cmd := &cobra.Command{
		Use:   "diag MODEL",
		Short: "Report diagnostics for a model",
		Long: `Resolves MODEL and prints every diagnostic as an aligned table.

Exit codes:
  0  no error diagnostics
  1  the model could not be resolved
  2  error diagnostics were reported`,
		Args: cobra.ExactArgs(1),
		Example: `  metaschema diag catalog
  metaschema diag --strictness permissive catalog
  metaschema diag --ignore 'unhandled-*' catalog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strictness := c.cfg.StrictnessLevel()
			if cmd.Flags().Changed("strictness") {
				l, ok := model.ParseStrictness(level)
				if !ok {
					return fmt.Errorf("unknown strictness %q", level)
				}
				strictness = l
			}
			cfg := model.ConfigFor(strictness)
			cfg.FailAt = model.SeverityFatal
			cfg.Ignore = append(cfg.Ignore, ignore...)

			tree, err := c.resolveOne(cmd.Context(), args[0], metaschema.WithDiagnosticConfig(cfg))
			if err != nil {
				return err
			}
			if err := metaschema.WriteReport(cmd.OutOrStdout(), tree); err != nil {
				return err
			}
			if tree.HasErrors() {
				return &exitCodeError{
					code: exitDiagnostics,
					err:  errors.New(tree.Model() + ": resolution reported errors"),
				}
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&level, "strictness", "", "strict, normal, permissive, or silent")
	fl.StringArrayVar(&ignore, "ignore", nil, "diagnostic code glob to suppress (repeatable)")
	return cmd
}
