package allocation

import "github.com/okian/judgeflow/internal/domain/model"

// window is a run of blockSize consecutive candidates.
type window struct {
	start     int
	teams     []model.Team
	closeness int
	pressure  int
	relaxed   bool
}

// bestWindow picks the lowest-pressure window among those within the
// closeness cap, and only when none qualifies, among all windows. Ties go to
// the first window in number order.
func (e *Engine) bestWindow(cands []model.Team, pressure map[string]int) (window, error) {
	if w, ok := e.scan(cands, pressure, true); ok {
		return w, nil
	}
	if w, ok := e.scan(cands, pressure, false); ok {
		w.relaxed = true
		return w, nil
	}
	return window{}, newJudgeError(ErrNoSuitableWindow, ReasonNoWindow)
}

func (e *Engine) scan(cands []model.Team, pressure map[string]int, capped bool) (window, bool) {
	var (
		best  window
		found bool
	)
	for i := 0; i+e.blockSize <= len(cands); i++ {
		block := cands[i : i+e.blockSize]
		c := closeness(block)
		if capped && c > e.closenessCap {
			continue
		}
		p := windowPressure(block, pressure)
		if !found || p < best.pressure {
			best = window{start: i, teams: block, closeness: c, pressure: p}
			found = true
		}
	}
	return best, found
}

// closeness is the number spread between the first and last team.
func closeness(block []model.Team) int {
	if len(block) == 0 {
		return 0
	}
	return block[len(block)-1].Number - block[0].Number
}

func windowPressure(block []model.Team, pressure map[string]int) int {
	sum := 0
	for _, t := range block {
		sum += pressure[t.ID]
	}
	return sum
}
