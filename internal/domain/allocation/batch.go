package allocation

import (
	"slices"
	"sort"
	"strings"

	"github.com/okian/judgeflow/internal/domain/model"
)

// batch is the mutable state shared by every judge of one Generate call.
type batch struct {
	overlap bool
	// pressure starts at each team's review count; overlap mode bumps it.
	pressure map[string]int
	// locked starts as the snapshot locks; exclusive mode extends it.
	locked map[string]struct{}
	// signatures maps each team-set fingerprint handed out so far to whether
	// its most recent holder walks it in reverse.
	signatures map[string]bool
}

func newBatch(p *pool, overlap bool) *batch {
	b := &batch{
		overlap:    overlap,
		pressure:   make(map[string]int, len(p.teamsOnFloor)),
		locked:     make(map[string]struct{}, len(p.locked)),
		signatures: make(map[string]bool),
	}
	for _, t := range p.teamsOnFloor {
		b.pressure[t.ID] = t.ReviewCount()
	}
	for id := range p.locked {
		b.locked[id] = struct{}{}
	}
	return b
}

// allocate runs the candidate filter and window scorer for one judge and
// records the chosen block in the batch.
func (e *Engine) allocate(p *pool, b *batch, judge model.Judge) (model.PlannedAssignment, error) {
	cands, err := e.candidates(p, b, judge)
	if err != nil {
		return model.PlannedAssignment{}, err
	}
	w, err := e.bestWindow(cands, b.pressure)
	if err != nil {
		return model.PlannedAssignment{}, err
	}

	ordered := slices.Clone(w.teams)
	sig := signature(ordered)
	reversed := false
	if last, dup := b.signatures[sig]; dup {
		// Same tables as the previous holder: walk them the other way round.
		reversed = !last
		if reversed {
			slices.Reverse(ordered)
		}
	}
	b.signatures[sig] = reversed

	b.take(ordered)

	return plannedAssignment(judge, ordered, w, reversed), nil
}

// take makes the block less attractive (overlap) or unavailable (exclusive)
// to the judges that follow.
func (b *batch) take(teams []model.Team) {
	for _, t := range teams {
		if b.overlap {
			b.pressure[t.ID]++
		} else {
			b.locked[t.ID] = struct{}{}
		}
	}
}

// signature is the canonical fingerprint of a team set.
func signature(teams []model.Team) string {
	ids := make([]string, len(teams))
	for i, t := range teams {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

func plannedAssignment(judge model.Judge, teams []model.Team, w window, reversed bool) model.PlannedAssignment {
	pa := model.PlannedAssignment{
		JudgeID:     judge.ID,
		JudgeName:   judge.DisplayName(),
		TeamIDs:     make([]string, len(teams)),
		TeamNumbers: make([]int, len(teams)),
		Pressure:    w.pressure,
		Closeness:   w.closeness,
		Relaxed:     w.relaxed,
		Reversed:    reversed,
	}
	for i, t := range teams {
		pa.TeamIDs[i] = t.ID
		pa.TeamNumbers[i] = t.Number
	}
	return pa
}
