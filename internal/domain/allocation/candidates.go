package allocation

import "github.com/okian/judgeflow/internal/domain/model"

// candidates narrows the floor to teams judge has not reviewed and that are
// not locked in the current batch, keeping number order.
func (e *Engine) candidates(p *pool, b *batch, judge model.Judge) ([]model.Team, error) {
	judged := p.history[judge.ID]

	var (
		out           []model.Team
		unjudged      int
		judgedOnFloor int
	)
	for _, t := range p.teamsOnFloor {
		if _, ok := judged[t.ID]; ok {
			judgedOnFloor++
			continue
		}
		unjudged++
		if _, ok := b.locked[t.ID]; ok {
			continue
		}
		out = append(out, t)
	}

	if len(out) < e.blockSize {
		if judgedOnFloor > 0 && unjudged < e.blockSize {
			return nil, newJudgeError(ErrInsufficientCandidates, ReasonJudgedNearlyAll)
		}
		return nil, newJudgeError(ErrInsufficientCandidates, ReasonNoFreeTeams)
	}
	return out, nil
}
