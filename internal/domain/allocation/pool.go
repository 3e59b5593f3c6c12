package allocation

import (
	"sort"
	"strings"

	"github.com/okian/judgeflow/internal/domain/model"
)

// queuedJudge is a judge to process together with its request position.
type queuedJudge struct {
	index int
	judge model.Judge
}

// rejection is a judge dropped before allocation.
type rejection struct {
	index int
	judge model.Judge
	err   error
}

// pool is the eligible view of one floor at the start of a batch.
type pool struct {
	floorID string

	// teamsOnFloor holds unpaused teams of the floor sorted by number.
	teamsOnFloor []model.Team
	// locked holds teams of every active assignment in the snapshot.
	locked map[string]struct{}
	// available is teamsOnFloor minus locked.
	available []model.Team

	judges   []queuedJudge
	rejected []rejection
	// history maps judge id to the team ids that judge already reviewed.
	history   map[string]map[string]struct{}
	requested int
}

// buildPool filters the snapshot into the eligible team set and the ordered
// judge list. It does not modify snap.
func buildPool(snap model.Snapshot, req model.GenerateRequest) *pool {
	p := &pool{
		floorID: req.FloorID,
		locked:  snap.LockedTeamIDs(),
		history: make(map[string]map[string]struct{}),
	}

	for _, t := range snap.Teams {
		if t.FloorID != req.FloorID || t.IsPaused {
			continue
		}
		p.teamsOnFloor = append(p.teamsOnFloor, t)
	}
	sort.SliceStable(p.teamsOnFloor, func(i, j int) bool {
		a, b := p.teamsOnFloor[i], p.teamsOnFloor[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		return a.ID < b.ID
	})

	for _, t := range p.teamsOnFloor {
		if _, ok := p.locked[t.ID]; !ok {
			p.available = append(p.available, t)
		}
	}

	seen := make(map[string]struct{}, len(req.JudgeIDs))
	for _, raw := range req.JudgeIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		index := p.requested
		p.requested++

		judge, ok := snap.Judge(id)
		switch {
		case !ok:
			p.reject(index, model.Judge{ID: id}, newJudgeError(ErrJudgeNotFound, ReasonJudgeNotFound))
		case judge.Busy():
			p.reject(index, judge, newJudgeError(ErrJudgeBusy, ReasonJudgeBusy))
		case judge.FloorID != "" && judge.FloorID != req.FloorID:
			p.reject(index, judge, newJudgeError(ErrJudgeOffFloor, ReasonJudgeOffFloor))
		default:
			p.judges = append(p.judges, queuedJudge{index: index, judge: judge})
			p.history[judge.ID] = judgedTeams(snap, judge.ID)
		}
	}

	return p
}

func (p *pool) reject(index int, judge model.Judge, err error) {
	p.rejected = append(p.rejected, rejection{index: index, judge: judge, err: err})
}

// judgedTeams collects the teams judgeID reviewed, from submitted
// assignments and from team review history.
func judgedTeams(snap model.Snapshot, judgeID string) map[string]struct{} {
	judged := make(map[string]struct{})
	for _, a := range snap.Assignments {
		if !a.Submitted || a.JudgeID != judgeID {
			continue
		}
		for _, id := range a.TeamIDs {
			judged[id] = struct{}{}
		}
	}
	for _, t := range snap.Teams {
		if t.ReviewedByJudge(judgeID) {
			judged[t.ID] = struct{}{}
		}
	}
	return judged
}
