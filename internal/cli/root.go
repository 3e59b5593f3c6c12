// Package cli implements the judgeplan command line: offline planning,
// coverage reports and simulations over YAML snapshots.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/judgeflow/pkg/logger"
)

// NewRootCommand builds the judgeplan command tree.
func NewRootCommand() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "judgeplan",
		Short: "Plan judge assignments offline",
		Long: `judgeplan runs the judge assignment engine without a server.

It reads floor snapshots from YAML files, previews what a generation would
hand out, reports review coverage, and simulates whole judging sessions to
check the engine's guarantees.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithFormat(logFormat)); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return logger.SetLevelString(logLevel)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", logger.FormatText, "Log format (text, json)")

	root.AddCommand(newPlanCommand(), newCoverageCommand(), newSimulateCommand())
	return root
}
