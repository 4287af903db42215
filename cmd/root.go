package cmd

import (
	"io"
	"log"
	"os"

	"github.com/josephlewis42/pipesh/core"
	"github.com/josephlewis42/pipesh/core/config"
	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/josephlewis42/pipesh/core/vos"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	command   string
	colorMode string
	verbose   bool

	// exitStatus is the status of the last shell run.
	exitStatus int
)

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.LoadOrDefault(afero.NewOsFs(), cfgPath)
	if err != nil {
		return nil, err
	}

	if colorMode != "" {
		configuration.Color = colorMode
		if err := configuration.Validate(); err != nil {
			return nil, err
		}
	}

	return configuration, nil
}

// openEvents opens the configured event log, the returned closer is never
// nil.
func openEvents(configuration *config.Configuration) (*logger.SessionLogger, io.Closer, error) {
	fd, err := configuration.OpenEventLog()
	switch {
	case err == config.ErrNoEventLog:
		return logger.NewNopLogger().NewSession(), io.NopCloser(nil), nil
	case err != nil:
		return nil, nil, err
	}

	return logger.NewJsonLinesLogRecorder(fd).NewSession(), fd, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipesh",
	Short: "A small pipeline shell",
	Long: `An interactive shell that runs pipelines of up to three commands with
file redirection and background jobs.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		appLog := log.New(io.Discard, "[pipesh] ", 0)
		if verbose {
			appLog.SetOutput(cmd.ErrOrStderr())
		}

		configuration, err := loadConfig()
		if err != nil {
			return err
		}
		appLog.Printf("Using configuration from %s", configuration.Dir())

		events, closer, err := openEvents(configuration)
		if err != nil {
			return err
		}
		defer closer.Close()
		if path := configuration.EventLogPath(); path != "" {
			appLog.Printf("Logging events to %s (session %s)", path, events.SessionID())
		}

		shell, err := core.NewShell(vos.NewOSIO(), vos.OSEnv{}, configuration, events)
		if err != nil {
			return err
		}
		defer shell.Close()
		shell.Log = appLog

		if cmd.Flags().Changed("command") {
			exitStatus = shell.RunCommand(command)
			shell.Jobs.Drain()
			shell.ReportJobs()
			return nil
		}

		exitStatus = shell.Run()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "config path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
	rootCmd.Flags().StringVar(&colorMode, "color", "", "override the color setting: auto, always or never")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log shell internals to stderr")
}
