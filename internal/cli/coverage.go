package cli

import (
	"github.com/spf13/cobra"

	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/internal/domain/coverage"
)

type coverageOptions struct {
	snapshot string
	floor    string
	limit    int
	json     bool
}

func newCoverageCommand() *cobra.Command {
	opts := &coverageOptions{}
	cmd := &cobra.Command{
		Use:   "coverage",
		Short: "Show how evenly a floor's teams have been reviewed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := repository.LoadSnapshotFile(opts.snapshot)
			if err != nil {
				return err
			}
			report := coverage.Build(snap, opts.floor, coverage.WithLeastReviewedLimit(opts.limit))
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			renderCoverage(cmd.OutOrStdout(), report)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.snapshot, "snapshot", "", "YAML snapshot file")
	f.StringVar(&opts.floor, "floor", "", "Floor to report on")
	f.IntVar(&opts.limit, "limit", 10, "How many least-reviewed teams to list")
	f.BoolVar(&opts.json, "json", false, "Output the report as JSON")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = cmd.MarkFlagRequired("floor")
	return cmd
}
