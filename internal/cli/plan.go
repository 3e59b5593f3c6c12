package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/model"
)

type planOptions struct {
	snapshot     string
	floor        string
	judges       []string
	blockSize    int
	closenessCap int
	json         bool
}

func newPlanCommand() *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview the blocks a generation would create",
		Long: `Load a snapshot, run the assignment engine for the given judges in order,
and print the resulting plan. Nothing is written back to the snapshot.`,
		Example: `  judgeplan plan --snapshot floor.yaml --floor f1 --judge alice --judge bob
  judgeplan plan --snapshot floor.yaml --floor f1 --judge alice,bob --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.snapshot, "snapshot", "", "YAML snapshot file")
	f.StringVar(&opts.floor, "floor", "", "Floor to generate for")
	f.StringSliceVar(&opts.judges, "judge", nil, "Judge id, repeatable; order is processing order")
	f.IntVar(&opts.blockSize, "block-size", allocation.DefaultBlockSize, "Teams per block")
	f.IntVar(&opts.closenessCap, "closeness-cap", allocation.DefaultClosenessCap, "Maximum number spread of a block before relaxing")
	f.BoolVar(&opts.json, "json", false, "Output the plan as JSON")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = cmd.MarkFlagRequired("floor")
	_ = cmd.MarkFlagRequired("judge")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *planOptions) error {
	snap, err := repository.LoadSnapshotFile(opts.snapshot)
	if err != nil {
		return err
	}

	engine := allocation.New(
		allocation.WithBlockSize(opts.blockSize),
		allocation.WithClosenessCap(opts.closenessCap),
	)
	plan, err := engine.Generate(snap, model.GenerateRequest{FloorID: opts.floor, JudgeIDs: opts.judges})
	if err != nil {
		if errors.Is(err, allocation.ErrInvalidRequest) {
			return fmt.Errorf("cannot plan: %w", err)
		}
		return err
	}

	if opts.json {
		return writeJSON(cmd.OutOrStdout(), plan)
	}
	renderPlan(cmd.OutOrStdout(), plan)
	return nil
}
