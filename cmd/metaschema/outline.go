package main

import (
	"github.com/spf13/cobra"

	"github.com/golangoscal/metaschema/cmd/internal/cliutil"
)

func (c *cli) newOutlineCmd() *cobra.Command {
	var (
		depth     int
		noFlags   bool
		datatypes bool
		plain     bool
	)
	cmd := &cobra.Command{
		Use:   "outline MODEL",
		Short: "Print a resolved model as an indented outline",
		Args:  cobra.ExactArgs(1),
		Example: `  metaschema outline catalog
  metaschema outline --depth 2 --no-flags catalog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := c.resolveOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			styles := cliutil.DefaultStyles()
			if plain {
				styles = cliutil.PlainStyles()
			}
			return cliutil.WriteOutline(cmd.OutOrStdout(), tree, styles, cliutil.OutlineOptions{
				MaxDepth:  depth,
				Flags:     !noFlags,
				Datatypes: datatypes,
			})
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&depth, "depth", 0, "maximum depth to print (0 for all)")
	fl.BoolVar(&noFlags, "no-flags", false, "omit flags")
	fl.BoolVar(&datatypes, "datatypes", false, "show field and flag datatypes")
	fl.BoolVar(&plain, "plain", false, "disable colours")
	return cmd
}
