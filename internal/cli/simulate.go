package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/judgeflow/internal/simulate"
)

func newSimulateCommand() *cobra.Command {
	cfg := simulate.DefaultConfig()
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic judging session and verify every plan",
		Long: `Build a synthetic floor, then repeatedly generate blocks for every idle
judge, verify the plan, commit it and submit random scores. Prints the
review spread after each round and fails if any plan breaks an allocation
guarantee.`,
		Example: `  judgeplan simulate --teams 60 --judges 8 --rounds 12 --seed 7`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := simulate.Run(cmd.Context(), cfg)
			if report.Rounds == nil && err != nil {
				return err
			}
			if asJSON {
				if jerr := writeJSON(cmd.OutOrStdout(), report); jerr != nil {
					return jerr
				}
			} else {
				renderSimulation(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return fmt.Errorf("simulation failed: %w", err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.Teams, "teams", cfg.Teams, "Teams on the floor")
	f.IntVar(&cfg.Judges, "judges", cfg.Judges, "Judges on the floor")
	f.IntVar(&cfg.Rounds, "rounds", cfg.Rounds, "Generate/submit rounds")
	f.IntVar(&cfg.Paused, "paused", cfg.Paused, "Teams paused before the first round")
	f.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	f.IntVar(&cfg.BlockSize, "block-size", cfg.BlockSize, "Teams per block")
	f.IntVar(&cfg.ClosenessCap, "closeness-cap", cfg.ClosenessCap, "Maximum number spread of a block before relaxing")
	f.BoolVar(&asJSON, "json", false, "Output the report as JSON")
	return cmd
}
