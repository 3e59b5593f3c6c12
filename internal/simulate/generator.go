package simulate

import (
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/judgeflow/internal/domain/model"
)

// namespace scopes the name-based ids minted for synthetic entities.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://judgeflow/simulate"))

// stableID returns the same uuid for the same seed, kind and index.
func stableID(seed int64, kind string, i int) string {
	return uuid.NewSHA1(namespace, []byte(fmt.Sprintf("%d/%s/%d", seed, kind, i))).String()
}

// newRand returns the deterministic source for seed.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// GenerateFloor builds the starting snapshot: cfg.Teams teams numbered from
// 1, cfg.Judges idle judges, and cfg.Paused randomly paused teams.
func GenerateFloor(cfg Config) model.Snapshot {
	rng := newRand(cfg.Seed)

	snap := model.Snapshot{
		Teams:  make([]model.Team, cfg.Teams),
		Judges: make([]model.Judge, cfg.Judges),
	}
	for i := range snap.Teams {
		snap.Teams[i] = model.Team{
			ID:      stableID(cfg.Seed, "team", i),
			Name:    fmt.Sprintf("Team %d", i+1),
			Number:  i + 1,
			FloorID: SimFloorID,
		}
	}
	for _, i := range rng.Perm(cfg.Teams)[:cfg.Paused] {
		snap.Teams[i].IsPaused = true
	}
	for i := range snap.Judges {
		snap.Judges[i] = model.Judge{
			ID:      stableID(cfg.Seed, "judge", i),
			Name:    fmt.Sprintf("Judge %d", i+1),
			FloorID: SimFloorID,
		}
	}
	return snap
}

// judgeOrder returns the idle judges of snap in a seeded random order.
func judgeOrder(snap model.Snapshot, rng *rand.Rand) []string {
	var ids []string
	for _, j := range snap.Judges {
		if !j.Busy() {
			ids = append(ids, j.ID)
		}
	}
	rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })
	return ids
}

// scores draws a 1..10 score for every team of a block.
func scores(teamIDs []string, rng *rand.Rand) map[string]int {
	out := make(map[string]int, len(teamIDs))
	for _, id := range teamIDs {
		out[id] = 1 + rng.IntN(10)
	}
	return out
}
