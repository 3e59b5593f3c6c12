package allocation

import (
	"sort"

	"github.com/okian/judgeflow/internal/domain/model"
)

type indexedFailure struct {
	index   int
	failure model.Failure
}

// emitter collects successes and failures into a GeneratePlan.
type emitter struct {
	p        *pool
	overlap  bool
	created  []model.PlannedAssignment
	failures []indexedFailure
}

func newEmitter(p *pool, overlap bool) *emitter {
	em := &emitter{
		p:       p,
		overlap: overlap,
		created: make([]model.PlannedAssignment, 0, len(p.judges)),
	}
	for _, r := range p.rejected {
		em.fail(r.index, r.judge, r.err)
	}
	return em
}

func (em *emitter) add(pa model.PlannedAssignment) {
	em.created = append(em.created, pa)
}

func (em *emitter) fail(index int, judge model.Judge, err error) {
	em.failures = append(em.failures, indexedFailure{
		index: index,
		failure: model.Failure{
			JudgeID:   judge.ID,
			JudgeName: judge.DisplayName(),
			Kind:      Kind(err),
			Reason:    Reason(err),
			Err:       err,
		},
	})
}

func (em *emitter) plan() model.GeneratePlan {
	// Failures are reported in request order.
	sort.SliceStable(em.failures, func(i, j int) bool {
		return em.failures[i].index < em.failures[j].index
	})
	failures := make([]model.Failure, len(em.failures))
	for i, f := range em.failures {
		failures[i] = f.failure
	}

	reversed := 0
	for _, c := range em.created {
		if c.Reversed {
			reversed++
		}
	}

	return model.GeneratePlan{
		FloorID:  em.p.floorID,
		Created:  em.created,
		Failures: failures,
		Summary: model.Summary{
			Requested:      em.p.requested,
			Processed:      len(em.p.judges),
			Created:        len(em.created),
			Failed:         len(failures),
			AvailableTeams: len(em.p.available),
			OverlapMode:    em.overlap,
			Reversed:       reversed,
		},
	}
}
