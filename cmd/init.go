package cmd

import (
	"fmt"
	"log"

	"github.com/josephlewis42/pipesh/core/config"
	"github.com/spf13/cobra"
)

var forceInit bool

// initCmd writes the default shell configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default shell configuration to the config path.",
	Long: `Write the default shell configuration to the config path.

The file sets the prompt, the PATH used when the environment has none, the
job and pipeline limits, history sizes and the event log. An existing
configuration is left alone unless --force is given, in which case it's
moved aside with a ` + config.BackupSuffix + ` suffix.`,
	Example: "  pipesh init --config ~/.pipesh\n  pipesh --config ~/.pipesh",
	Args:    cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		logger := log.New(cmd.ErrOrStderr(), "", 0)

		initialize := config.Initialize
		if forceInit {
			initialize = config.Reinitialize
		}

		configuration, err := initialize(cfgPath, logger)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Start the shell with: pipesh --config %s\n", configuration.Dir())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "replace an existing configuration")
}
