package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/josephlewis42/pipesh/core"
	"github.com/spf13/cobra"
)

var builtinNamesOnly bool

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the commands run by the shell itself.",
	Long: `Show the commands run by the shell itself.

Builtins change the shell's own state so they can't be used as a pipeline
stage or redirected. Everything else is looked up on PATH.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if builtinNamesOnly {
			for _, name := range core.BuiltinNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, name := range core.BuiltinNames() {
			fmt.Fprintf(w, "%s\t%s\n", name, core.BuiltinSummary(name))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
	builtinsCmd.Flags().BoolVar(&builtinNamesOnly, "names", false, "print only the names, one per line")
}
