package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/josephlewis42/pipesh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	eventLogPath string
	eventSession string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Explore the shell event log.",
	Long: `Explore the shell event log.

The log is only written when event_log is set in the configuration. Each
line is a JSON object tagged with the id of the shell session that wrote it.`,
}

var reportCommand = &cobra.Command{
	Use:   "report",
	Short: "Summarize the commands, jobs and errors in the event log.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		fd, err := openEventLogForReading()
		if err != nil {
			return err
		}
		defer fd.Close()

		var report logger.Report
		handler := report.Update
		if eventSession != "" {
			handler = func(le *logger.LogEntry) {
				if le.SessionID == eventSession {
					report.Update(le)
				}
			}
		}
		if err := logger.ReadJSONLinesLog(fd, handler); err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

// openEventLogForReading opens --log if given, otherwise the log named by the
// configuration.
func openEventLogForReading() (io.ReadCloser, error) {
	if eventLogPath != "" {
		return os.Open(eventLogPath)
	}

	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return config.ReadEventLog()
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(reportCommand)

	eventsCmd.PersistentFlags().StringVar(&eventLogPath, "log", "", "read this event log instead of the configured one")
	reportCommand.Flags().StringVar(&eventSession, "session", "", "only count events from the session with this id")
}
