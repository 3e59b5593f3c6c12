// Package allocation decides which teams each judge reviews next.
//
// Generate is a pure function of a snapshot and a request. Judges are
// processed strictly in request order because each allocation changes the
// locks and pressure seen by the judges after it. All batch state lives in a
// value created per call, so an Engine is safe for concurrent use.
package allocation

import (
	"fmt"
	"strings"

	"github.com/okian/judgeflow/internal/domain/model"
)

// Engine allocates blocks of teams to judges.
type Engine struct {
	blockSize    int
	closenessCap int
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		blockSize:    DefaultBlockSize,
		closenessCap: DefaultClosenessCap,
	}

	// Apply all options
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// BlockSize returns the number of teams per assignment.
func (e *Engine) BlockSize() int { return e.blockSize }

// ClosenessCap returns the strict-pass number spread limit.
func (e *Engine) ClosenessCap() int { return e.closenessCap }

// Generate builds a plan for req against snap. It returns ErrInvalidRequest
// when no floor or no judge is given; every other problem is reported per
// judge in the plan's failures and does not stop the batch.
func (e *Engine) Generate(snap model.Snapshot, req model.GenerateRequest) (model.GeneratePlan, error) {
	if err := validate(req); err != nil {
		return model.GeneratePlan{}, err
	}

	p := buildPool(snap, req)
	overlap := overlapMode(len(p.available), len(p.judges), e.blockSize)
	b := newBatch(p, overlap)

	out := newEmitter(p, overlap)
	for _, qj := range p.judges {
		block, err := e.allocate(p, b, qj.judge)
		if err != nil {
			out.fail(qj.index, qj.judge, err)
			continue
		}
		out.add(block)
	}

	return out.plan(), nil
}

func validate(req model.GenerateRequest) error {
	if strings.TrimSpace(req.FloorID) == "" {
		return fmt.Errorf("%w: no floor selected", ErrInvalidRequest)
	}
	for _, id := range req.JudgeIDs {
		if strings.TrimSpace(id) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: no judges selected", ErrInvalidRequest)
}
