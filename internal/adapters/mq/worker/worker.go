// Package worker runs generation jobs, one goroutine per floor shard.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/judgeflow/internal/adapters/mq/queue"
	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
	"github.com/okian/judgeflow/pkg/metrics"
)

const workerShutdownTimeout = 5 * time.Second

// Store reads a floor and applies a plan.
type Store interface {
	Snapshot(ctx context.Context, floorID string) (model.Snapshot, error)
	Commit(ctx context.Context, plan model.GeneratePlan) ([]model.Assignment, error)
}

// Planner turns a snapshot and a request into a plan.
type Planner interface {
	Generate(snap model.Snapshot, req model.GenerateRequest) (model.GeneratePlan, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan *queue.Job
}

// Worker processes jobs from one queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker owns one shard: it drains its queue sequentially, so two
// jobs for the same floor never overlap.
type InMemoryWorker struct {
	queue   Queue
	store   Store
	planner Planner
	name    string

	inflight func(n int)

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, store Store, planner Planner, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		store:    store,
		planner:  planner,
		name:     "worker",
		inflight: func(int) {},
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named("worker")
	}
	w.logger = w.logger.With(logger.String("worker", w.name))

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			w.reject(jobs)
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.inflight(1)
			job.Complete(w.process(ctx, job))
			w.inflight(0)
		}
	}
}

// reject answers whatever is still queued after ctx ended.
func (w *InMemoryWorker) reject(jobs <-chan *queue.Job) {
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			job.Complete(queue.Result{Err: queue.ErrStopped})
		default:
			return
		}
	}
}

// Shutdown waits for the worker loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process snapshots the floor, plans, and commits the plan when it creates
// anything.
func (w *InMemoryWorker) process(ctx context.Context, job *queue.Job) queue.Result {
	start := time.Now()
	req := job.Request
	log := w.logger.With(logger.String("request_id", job.RequestID), logger.String("floor", req.FloorID))

	snapStart := time.Now()
	snap, err := w.store.Snapshot(ctx, req.FloorID)
	metrics.RecordStoreLatency("snapshot", msSince(snapStart))
	if err != nil {
		metrics.RecordGeneration(metrics.ModeExclusive, metrics.OutcomeError)
		metrics.RecordErrorByComponent("worker", "snapshot_error")
		log.Error(ctx, "snapshot failed", logger.Error(err))
		return queue.Result{Err: fmt.Errorf("snapshot floor %s: %w", req.FloorID, err)}
	}

	plan, err := w.planner.Generate(snap, req)
	if err != nil {
		metrics.RecordGeneration(metrics.ModeExclusive, metrics.OutcomeError)
		log.Warn(ctx, "generation rejected", logger.Error(err))
		return queue.Result{Err: err}
	}
	mode := metrics.Mode(plan.Summary.OverlapMode)

	var created []model.Assignment
	if len(plan.Created) > 0 {
		commitStart := time.Now()
		created, err = w.store.Commit(ctx, plan)
		metrics.RecordStoreLatency("commit", msSince(commitStart))
		if err != nil {
			outcome := metrics.OutcomeError
			if errors.Is(err, repository.ErrCommitConflict) {
				outcome = metrics.OutcomeConflict
				metrics.RecordCommitConflict()
			} else {
				metrics.RecordErrorByComponent("worker", "commit_error")
			}
			metrics.RecordGeneration(mode, outcome)
			log.Error(ctx, "commit failed", logger.Error(err))
			return queue.Result{Plan: plan, Err: err}
		}
	}

	recordPlan(plan, mode)
	metrics.RecordGenerationLatency(mode, msSince(start))
	log.Info(ctx, "plan committed",
		logger.Int("created", plan.Summary.Created),
		logger.Int("failed", plan.Summary.Failed),
		logger.Bool("overlap", plan.Summary.OverlapMode),
		logger.Duration("took", time.Since(start)),
	)
	return queue.Result{Plan: plan, Assignments: created}
}

func recordPlan(plan model.GeneratePlan, mode string) {
	outcome := metrics.OutcomeCreated
	switch {
	case len(plan.Created) == 0:
		outcome = metrics.OutcomeNone
	case len(plan.Failures) > 0:
		outcome = metrics.OutcomePartial
	}
	metrics.RecordGeneration(mode, outcome)
	metrics.RecordAssignmentsCreated(len(plan.Created))
	metrics.RecordReversedBlocks(plan.Summary.Reversed)

	relaxed := 0
	for _, c := range plan.Created {
		if c.Relaxed {
			relaxed++
		}
	}
	metrics.RecordRelaxedWindows(relaxed)
	for _, f := range plan.Failures {
		metrics.RecordJudgeFailure(f.Kind)
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
