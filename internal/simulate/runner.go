package simulate

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"reflect"
	"strconv"
	"time"

	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/coverage"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
)

// simEpoch is the fixed clock of simulated assignments.
var simEpoch = time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)

// RoundStats summarizes one generate/submit cycle.
type RoundStats struct {
	Round      int     `json:"round"`
	Requested  int     `json:"requested"`
	Created    int     `json:"created"`
	Failed     int     `json:"failed"`
	Overlap    bool    `json:"overlap"`
	Reversed   int     `json:"reversed"`
	MinReviews int     `json:"min_reviews"`
	MaxReviews int     `json:"max_reviews"`
	Mean       float64 `json:"mean_reviews"`
	Skew       int     `json:"skew"`
}

// Report is the outcome of a simulation.
type Report struct {
	Config     Config          `json:"config"`
	Rounds     []RoundStats    `json:"rounds"`
	Final      coverage.Report `json:"final"`
	Violations []error         `json:"-"`
	Duration   time.Duration   `json:"duration"`
}

// Err joins every violation, or returns nil for a clean run.
func (r Report) Err() error { return errors.Join(r.Violations...) }

// Run executes cfg.Rounds cycles of snapshot, generate, verify, commit and
// submit against an in-memory store. Violations are collected in the
// report and also returned through the error.
func Run(ctx context.Context, cfg Config) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	start := time.Now()
	log := logger.Get().Named("simulate")

	seq := 0
	store := repository.NewMemoryStore(
		repository.WithClock(func() time.Time { return simEpoch }),
		repository.WithIDGenerator(func() string {
			seq++
			return "sim-" + strconv.Itoa(seq)
		}),
	)
	if err := store.Seed(GenerateFloor(cfg)); err != nil {
		return Report{}, fmt.Errorf("seed floor: %w", err)
	}
	engine := allocation.New(
		allocation.WithBlockSize(cfg.BlockSize),
		allocation.WithClosenessCap(cfg.ClosenessCap),
	)
	rng := newRand(cfg.Seed + 1)

	log.Info(ctx, "starting simulation",
		logger.Int("teams", cfg.Teams),
		logger.Int("judges", cfg.Judges),
		logger.Int("rounds", cfg.Rounds),
		logger.Int("paused", cfg.Paused),
		logger.Any("seed", cfg.Seed),
	)

	report := Report{Config: cfg}
	for round := 1; round <= cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("simulation cancelled in round %d: %w", round, err)
		}

		stats, violations, err := runRound(ctx, store, engine, cfg, rng)
		if err != nil {
			return report, fmt.Errorf("round %d: %w", round, err)
		}
		stats.Round = round
		report.Rounds = append(report.Rounds, stats)
		report.Violations = append(report.Violations, violations...)

		log.Debug(ctx, "round finished",
			logger.Int("round", round),
			logger.Int("created", stats.Created),
			logger.Int("failed", stats.Failed),
			logger.Bool("overlap", stats.Overlap),
			logger.Int("skew", stats.Skew),
		)
	}

	final, err := store.Snapshot(ctx, SimFloorID)
	if err != nil {
		return report, fmt.Errorf("final snapshot: %w", err)
	}
	report.Final = coverage.Build(final, SimFloorID)
	report.Duration = time.Since(start)

	log.Info(ctx, "simulation finished",
		logger.Int("rounds", len(report.Rounds)),
		logger.Int("violations", len(report.Violations)),
		logger.Int("skew", report.Final.Skew),
		logger.Duration("duration", report.Duration),
	)
	return report, report.Err()
}

func runRound(ctx context.Context, store *repository.MemoryStore, engine *allocation.Engine, cfg Config, rng *rand.Rand) (RoundStats, []error, error) {
	snap, err := store.Snapshot(ctx, SimFloorID)
	if err != nil {
		return RoundStats{}, nil, err
	}
	req := model.GenerateRequest{FloorID: SimFloorID, JudgeIDs: judgeOrder(snap, rng)}
	if len(req.JudgeIDs) == 0 {
		return RoundStats{}, nil, nil
	}

	plan, err := engine.Generate(snap, req)
	if err != nil {
		return RoundStats{}, nil, err
	}

	var violations []error
	if verr := Verify(snap, plan, WithBlockSize(cfg.BlockSize)); verr != nil {
		violations = append(violations, unjoin(verr)...)
	}
	again, err := engine.Generate(snap, req)
	if err != nil {
		return RoundStats{}, nil, err
	}
	if !reflect.DeepEqual(plan, again) {
		violations = append(violations, &Violation{Property: PropDeterminism, Detail: "two runs over one snapshot disagree"})
	}

	created, err := store.Commit(ctx, plan)
	if err != nil {
		return RoundStats{}, violations, fmt.Errorf("commit: %w", err)
	}
	for _, a := range created {
		if _, err := store.Submit(ctx, a.ID, scores(a.TeamIDs, rng)); err != nil {
			return RoundStats{}, violations, fmt.Errorf("submit %s: %w", a.ID, err)
		}
	}

	after, err := store.Snapshot(ctx, SimFloorID)
	if err != nil {
		return RoundStats{}, violations, err
	}
	cov := coverage.Build(after, SimFloorID)
	return RoundStats{
		Requested:  plan.Summary.Requested,
		Created:    plan.Summary.Created,
		Failed:     plan.Summary.Failed,
		Overlap:    plan.Summary.OverlapMode,
		Reversed:   plan.Summary.Reversed,
		MinReviews: cov.MinReviews,
		MaxReviews: cov.MaxReviews,
		Mean:       cov.MeanReviews,
		Skew:       cov.Skew,
	}, violations, nil
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
