// Package service wires the allocation engine to storage, the floor-sharded
// worker pool, request dedupe and notifications, and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/judgeflow/internal/adapters/mq/queue"
	workerpool "github.com/okian/judgeflow/internal/adapters/mq/worker"
	"github.com/okian/judgeflow/internal/adapters/notify"
	"github.com/okian/judgeflow/internal/adapters/repository"
	"github.com/okian/judgeflow/internal/domain/allocation"
	"github.com/okian/judgeflow/internal/domain/coverage"
	"github.com/okian/judgeflow/internal/domain/dedupe"
	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/logger"
	"github.com/okian/judgeflow/pkg/metrics"
)

const minSweepInterval = time.Second

// GenerateResult is the outcome of a committed generation.
type GenerateResult struct {
	RequestID   string             `json:"request_id"`
	Plan        model.GeneratePlan `json:"plan"`
	Assignments []model.Assignment `json:"assignments"`
	Message     string             `json:"message"`
}

// Service implements the API dependencies for the allocation system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	engine    *allocation.Engine
	deduper   dedupe.Deduper
	pool      *workerpool.Pool
	publisher notify.Publisher

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	dedupeTTL       time.Duration
	generateTimeout time.Duration
	blockSize       int
	closenessCap    int

	// State
	started bool
	stopCh  chan struct{}
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1024,
		dedupeSize:      10_000,
		dedupeTTL:       10 * time.Minute,
		generateTimeout: 10 * time.Second,
		blockSize:       allocation.DefaultBlockSize,
		closenessCap:    allocation.DefaultClosenessCap,
		publisher:       notify.Nop{},
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.engine = allocation.New(
		allocation.WithBlockSize(s.blockSize),
		allocation.WithClosenessCap(s.closenessCap),
	)
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting allocation service")

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
		dedupe.WithTTL(s.dedupeTTL),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.store, s.engine,
		workerpool.WithQueueCapacity(s.queueSize),
		workerpool.WithPoolLogger(s.logger.Named("worker-pool")),
	)

	// Workers outlive the caller's ctx; Stop ends them.
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.pool.Start(runCtx)
	go s.sweepDedupe(runCtx, s.stopCh)

	s.started = true
	s.logger.Info(ctx, "allocation service started",
		logger.Int("shards", s.pool.ShardCount()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("block_size", s.blockSize),
		logger.Int("closeness_cap", s.closenessCap),
	)
	return nil
}

// Stop drains queued generations and releases resources.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping allocation service")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("worker pool: %w", err))
	}
	close(s.stopCh)
	s.cancel()
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("publisher: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "allocation service stopped")
	return errors.Join(errs...)
}

func (s *Service) sweepDedupe(ctx context.Context, stop <-chan struct{}) {
	sweeper, ok := s.deduper.(dedupe.Sweeper)
	if !ok {
		return
	}
	interval := s.dedupeTTL / 2
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if n := sweeper.Sweep(ctx); n > 0 {
				s.logger.Debug(ctx, "expired request ids dropped", logger.Int("count", n))
			}
		}
	}
}

// Generate plans and commits new assignments for req on the floor's shard.
//
// A non-empty requestID makes the call idempotent for the dedupe TTL: a
// repeat returns ErrDuplicateRequest. A request that commits nothing
// because of an error is forgotten so the caller can retry it.
func (s *Service) Generate(ctx context.Context, requestID string, req model.GenerateRequest) (GenerateResult, error) {
	s.mu.RLock()
	started, pool, deduper := s.started, s.pool, s.deduper
	s.mu.RUnlock()
	if !started {
		return GenerateResult{}, ErrNotStarted
	}

	tracked := requestID != ""
	if !tracked {
		requestID = uuid.NewString()
	}
	if tracked && deduper.SeenAndRecord(ctx, requestID) {
		metrics.RecordDuplicateRequest()
		s.logger.Info(ctx, "duplicate generate request skipped", logger.String("request_id", requestID))
		return GenerateResult{RequestID: requestID}, ErrDuplicateRequest
	}
	forget := func() {
		if tracked {
			deduper.Unrecord(ctx, requestID)
		}
	}

	if s.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
		defer cancel()
	}

	job := queue.NewJob(requestID, req)
	if err := pool.Submit(ctx, job); err != nil {
		forget()
		if errors.Is(err, queue.ErrFull) {
			return GenerateResult{RequestID: requestID}, fmt.Errorf("%w: floor %s", ErrBackpressure, req.FloorID)
		}
		return GenerateResult{RequestID: requestID}, err
	}

	// A caller that stops waiting does not withdraw the job; the id stays
	// recorded so a retry cannot allocate twice.
	res, err := job.Wait(ctx)
	if err != nil {
		return GenerateResult{RequestID: requestID}, err
	}
	if res.Err != nil {
		forget()
		return GenerateResult{RequestID: requestID, Plan: res.Plan}, res.Err
	}

	out := GenerateResult{
		RequestID:   requestID,
		Plan:        res.Plan,
		Assignments: res.Assignments,
		Message:     res.Plan.Message(),
	}
	if len(res.Assignments) > 0 {
		s.publish(ctx, out)
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, res GenerateResult) {
	ev := notify.PlanEvent{
		FloorID:     res.Plan.FloorID,
		RequestID:   res.RequestID,
		Assignments: res.Assignments,
		Failures:    res.Plan.Failures,
		Summary:     res.Plan.Summary,
		Message:     res.Message,
	}
	if err := s.publisher.PublishPlan(context.WithoutCancel(ctx), ev); err != nil {
		metrics.RecordErrorByComponent("notify", "publish_error")
		s.logger.Warn(ctx, "plan notification failed",
			logger.String("request_id", res.RequestID),
			logger.String("floor", res.Plan.FloorID),
			logger.Error(err),
		)
	}
}

// Preview runs the engine on a fresh snapshot without committing.
func (s *Service) Preview(ctx context.Context, req model.GenerateRequest) (model.GeneratePlan, error) {
	snap, err := s.snapshot(ctx, req.FloorID)
	if err != nil {
		return model.GeneratePlan{}, err
	}
	return s.engine.Generate(snap, req)
}

// Coverage reports how evenly the floor's teams have been reviewed.
func (s *Service) Coverage(ctx context.Context, floorID string) (coverage.Report, error) {
	if floorID == "" {
		return coverage.Report{}, fmt.Errorf("%w: no floor selected", allocation.ErrInvalidRequest)
	}
	snap, err := s.snapshot(ctx, floorID)
	if err != nil {
		return coverage.Report{}, err
	}
	return coverage.Build(snap, floorID), nil
}

func (s *Service) snapshot(ctx context.Context, floorID string) (model.Snapshot, error) {
	start := time.Now()
	snap, err := s.store.Snapshot(ctx, floorID)
	metrics.RecordStoreLatency("snapshot", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("snapshot floor %s: %w", floorID, err)
	}
	return snap, nil
}

// Submit records scores for an assignment and frees its judge.
func (s *Service) Submit(ctx context.Context, assignmentID string, scores map[string]int) (model.Assignment, error) {
	start := time.Now()
	a, err := s.store.Submit(ctx, assignmentID, scores)
	metrics.RecordStoreLatency("submit", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return model.Assignment{}, err
	}
	metrics.RecordAssignmentSubmitted()
	s.logger.Info(ctx, "assignment submitted",
		logger.String("assignment_id", a.ID),
		logger.String("judge_id", a.JudgeID),
		logger.Strings("team_ids", a.TeamIDs),
	)
	return a, nil
}

// Cancel removes an unsubmitted assignment and frees its judge.
func (s *Service) Cancel(ctx context.Context, assignmentID string) error {
	start := time.Now()
	err := s.store.Cancel(ctx, assignmentID)
	metrics.RecordStoreLatency("cancel", float64(time.Since(start).Microseconds())/1000)
	if err != nil {
		return err
	}
	metrics.RecordAssignmentCancelled()
	s.logger.Info(ctx, "assignment cancelled", logger.String("assignment_id", assignmentID))
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"blockSize":    s.blockSize,
		"closenessCap": s.closenessCap,
	}

	if s.started {
		queueLen := s.pool.Len()
		stats["queueLength"] = queueLen
		stats["queueCapacity"] = s.pool.Capacity()
		stats["shards"] = s.pool.ShardCount()
		stats["seenRequests"] = s.deduper.Size()
		metrics.UpdateQueueSize(queueLen)
	}
	if counter, ok := s.store.(interface{ Count() (int, int, int) }); ok {
		teams, judges, assignments := counter.Count()
		stats["teams"] = teams
		stats["judges"] = judges
		stats["assignments"] = assignments
	}

	return stats
}

// Store returns the persistence backend.
func (s *Service) Store() repository.Store {
	return s.store
}
