// Package model contains domain models passed between layers.
package model

import "time"

// Review is one completed review of a team.
type Review struct {
	JudgeID string `json:"judge_id" yaml:"judge_id"`
	Score   int    `json:"score" yaml:"score"`
}

// Team is a project table on a floor. Number defines physical locality:
// adjacent numbers sit next to each other.
type Team struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Number     int      `json:"number" yaml:"number"`
	FloorID    string   `json:"floor_id" yaml:"floor_id"`
	ReviewedBy []Review `json:"reviewed_by,omitempty" yaml:"reviewed_by,omitempty"`
	IsPaused   bool     `json:"is_paused" yaml:"is_paused"`
}

// ReviewCount returns how many completed reviews the team has.
func (t Team) ReviewCount() int { return len(t.ReviewedBy) }

// ReviewedByJudge reports whether judgeID appears in the team's reviews.
func (t Team) ReviewedByJudge(judgeID string) bool {
	for _, r := range t.ReviewedBy {
		if r.JudgeID == judgeID {
			return true
		}
	}
	return false
}

// Judge reviews teams in blocks. A judge holding a CurrentAssignmentID is
// busy and cannot receive a new block.
type Judge struct {
	ID                   string `json:"id" yaml:"id"`
	Name                 string `json:"name" yaml:"name"`
	FloorID              string `json:"floor_id" yaml:"floor_id"`
	HasSwitchedFloors    bool   `json:"has_switched_floors" yaml:"has_switched_floors"`
	CurrentAssignmentID  string `json:"current_assignment_id,omitempty" yaml:"current_assignment_id,omitempty"`
	CompletedAssignments int    `json:"completed_assignments" yaml:"completed_assignments"`
}

// Busy reports whether the judge holds an active assignment.
func (j Judge) Busy() bool { return j.CurrentAssignmentID != "" }

// DisplayName falls back to the id when the judge has no name.
func (j Judge) DisplayName() string {
	if j.Name != "" {
		return j.Name
	}
	return j.ID
}

// Assignment is an ordered block of teams handed to one judge. While
// Submitted is false every team in TeamIDs is locked for allocation.
type Assignment struct {
	ID        string    `json:"id" yaml:"id"`
	JudgeID   string    `json:"judge_id" yaml:"judge_id"`
	TeamIDs   []string  `json:"team_ids" yaml:"team_ids"`
	Submitted bool      `json:"submitted" yaml:"submitted"`
	FloorID   string    `json:"floor_id" yaml:"floor_id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Active reports whether the assignment still locks its teams.
func (a Assignment) Active() bool { return !a.Submitted }

// Snapshot is an immutable view of teams, judges and assignments read once
// at the start of a generation.
type Snapshot struct {
	Teams       []Team       `json:"teams" yaml:"teams"`
	Judges      []Judge      `json:"judges" yaml:"judges"`
	Assignments []Assignment `json:"assignments" yaml:"assignments"`
}

// Judge looks up a judge by id.
func (s Snapshot) Judge(id string) (Judge, bool) {
	for _, j := range s.Judges {
		if j.ID == id {
			return j, true
		}
	}
	return Judge{}, false
}

// Team looks up a team by id.
func (s Snapshot) Team(id string) (Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

// LockedTeamIDs returns the union of team ids across active assignments.
func (s Snapshot) LockedTeamIDs() map[string]struct{} {
	locked := make(map[string]struct{})
	for _, a := range s.Assignments {
		if !a.Active() {
			continue
		}
		for _, id := range a.TeamIDs {
			locked[id] = struct{}{}
		}
	}
	return locked
}
