package repository

import (
	"fmt"

	"github.com/okian/judgeflow/internal/domain/model"
)

// ValidateSnapshot checks a seed snapshot for missing or duplicate ids and
// for assignments that reference unknown judges or teams.
func ValidateSnapshot(snap model.Snapshot) error {
	teams := make(map[string]struct{}, len(snap.Teams))
	for i, t := range snap.Teams {
		if t.ID == "" {
			return fmt.Errorf("%w: team #%d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := teams[t.ID]; dup {
			return fmt.Errorf("%w: duplicate team id %q", ErrInvalidSnapshot, t.ID)
		}
		teams[t.ID] = struct{}{}
	}

	judges := make(map[string]struct{}, len(snap.Judges))
	for i, j := range snap.Judges {
		if j.ID == "" {
			return fmt.Errorf("%w: judge #%d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := judges[j.ID]; dup {
			return fmt.Errorf("%w: duplicate judge id %q", ErrInvalidSnapshot, j.ID)
		}
		judges[j.ID] = struct{}{}
	}

	assignments := make(map[string]struct{}, len(snap.Assignments))
	for i, a := range snap.Assignments {
		if a.ID == "" {
			return fmt.Errorf("%w: assignment #%d has no id", ErrInvalidSnapshot, i)
		}
		if _, dup := assignments[a.ID]; dup {
			return fmt.Errorf("%w: duplicate assignment id %q", ErrInvalidSnapshot, a.ID)
		}
		assignments[a.ID] = struct{}{}
		if _, ok := judges[a.JudgeID]; !ok {
			return fmt.Errorf("%w: assignment %q references unknown judge %q", ErrInvalidSnapshot, a.ID, a.JudgeID)
		}
		for _, id := range a.TeamIDs {
			if _, ok := teams[id]; !ok {
				return fmt.Errorf("%w: assignment %q references unknown team %q", ErrInvalidSnapshot, a.ID, id)
			}
		}
	}
	return nil
}

// planConflict reports the first reason the plan can no longer be applied.
// locked holds team ids of assignments that are active right now; blocks in
// the same plan may share teams (overlap mode) and do not conflict with each
// other.
func planConflict(
	plan model.GeneratePlan,
	team func(id string) (model.Team, bool),
	judge func(id string) (model.Judge, bool),
	locked map[string]struct{},
) error {
	for _, c := range plan.Created {
		j, ok := judge(c.JudgeID)
		if !ok {
			return fmt.Errorf("%w: judge %q no longer exists", ErrCommitConflict, c.JudgeID)
		}
		if j.Busy() {
			return fmt.Errorf("%w: judge %q already has assignment %q", ErrCommitConflict, c.JudgeID, j.CurrentAssignmentID)
		}
		for _, id := range c.TeamIDs {
			t, ok := team(id)
			if !ok {
				return fmt.Errorf("%w: team %q no longer exists", ErrCommitConflict, id)
			}
			if t.IsPaused {
				return fmt.Errorf("%w: team %q is paused", ErrCommitConflict, id)
			}
			if _, isLocked := locked[id]; isLocked {
				return fmt.Errorf("%w: team %q is locked", ErrCommitConflict, id)
			}
		}
	}

	// One judge twice in a plan would leave an orphaned active assignment.
	seen := make(map[string]struct{}, len(plan.Created))
	for _, c := range plan.Created {
		if _, dup := seen[c.JudgeID]; dup {
			return fmt.Errorf("%w: judge %q planned twice", ErrCommitConflict, c.JudgeID)
		}
		seen[c.JudgeID] = struct{}{}
	}
	return nil
}
