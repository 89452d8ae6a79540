package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/klubi/golem/internal/config"
	"github.com/klubi/golem/internal/eventlog"
)

func newLogsCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Analyze the session event log",
		Long: `Analyze the JSONL event log: per-session step counts, tool usage,
loop-safety interventions, and API errors.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return err
				}
				path = cfg.EventLogPath()
			}
			report, err := eventlog.Analyze(path)
			if err != nil {
				return err
			}
			fmt.Print(report.Render())
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Event log file (default: <data-dir>/events.jsonl)")
	return cmd
}
