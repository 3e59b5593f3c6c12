package model

import (
	"strconv"
	"strings"
)

// GenerateRequest asks for new blocks for the listed judges on one floor.
// JudgeIDs order is the processing order.
type GenerateRequest struct {
	FloorID  string   `json:"floor_id"`
	JudgeIDs []string `json:"judge_ids"`
}

// PlannedAssignment is one block the persistence layer should create.
type PlannedAssignment struct {
	JudgeID     string   `json:"judge_id"`
	JudgeName   string   `json:"judge_name"`
	TeamIDs     []string `json:"team_ids"`
	TeamNumbers []int    `json:"team_numbers"`
	Pressure    int      `json:"pressure"`
	Closeness   int      `json:"closeness"`
	Relaxed     bool     `json:"relaxed"`
	Reversed    bool     `json:"reversed"`
}

// Failure explains why a judge received no block.
type Failure struct {
	JudgeID   string `json:"judge_id"`
	JudgeName string `json:"judge_name"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
	Err       error  `json:"-"`
}

// Summary counts the outcome of one generation.
type Summary struct {
	Requested      int  `json:"requested"`
	Processed      int  `json:"processed"`
	Created        int  `json:"created"`
	Failed         int  `json:"failed"`
	AvailableTeams int  `json:"available_teams"`
	OverlapMode    bool `json:"overlap_mode"`
	Reversed       int  `json:"reversed"`
}

// GeneratePlan is the engine's output, applied atomically by a store.
type GeneratePlan struct {
	FloorID  string              `json:"floor_id"`
	Created  []PlannedAssignment `json:"created"`
	Failures []Failure           `json:"failures"`
	Summary  Summary             `json:"summary"`
}

// TeamIDs returns every team id referenced by the plan, in plan order,
// without duplicates.
func (p GeneratePlan) TeamIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range p.Created {
		for _, id := range c.TeamIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// Message renders the user-facing summary, e.g.
// "2 assignments created. Could not assign: Alice (not enough free teams available)".
func (p GeneratePlan) Message() string {
	var b strings.Builder
	n := len(p.Created)
	b.WriteString(strconv.Itoa(n))
	if n == 1 {
		b.WriteString(" assignment created.")
	} else {
		b.WriteString(" assignments created.")
	}
	if len(p.Failures) == 0 {
		return b.String()
	}
	b.WriteString(" Could not assign: ")
	for i, f := range p.Failures {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(f.JudgeName)
		b.WriteString(" (")
		b.WriteString(f.Reason)
		b.WriteString(")")
	}
	return b.String()
}
