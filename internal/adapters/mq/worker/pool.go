package worker

import (
	"context"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/okian/judgeflow/internal/adapters/mq/queue"
	"github.com/okian/judgeflow/pkg/logger"
	"github.com/okian/judgeflow/pkg/metrics"
)

const (
	metricsUpdateInterval = time.Second
	poolShutdownTimeout   = 30 * time.Second
	defaultShardCapacity  = 1024
)

type shard struct {
	queue  *queue.InMemoryQueue
	worker *InMemoryWorker
}

// Pool routes jobs to floor shards. A floor always hashes to the same shard,
// and each shard runs exactly one worker.
type Pool struct {
	shards        []shard
	queueCapacity int

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	shutdown  chan struct{}

	logger logger.Logger
}

// NewPool creates a pool of shardCount shards. shardCount < 1 means one
// shard per CPU.
func NewPool(shardCount int, store Store, planner Planner, opts ...PoolOption) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}

	p := &Pool{
		shards:        make([]shard, shardCount),
		queueCapacity: defaultShardCapacity,
		shutdown:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("worker-pool")
	}

	for i := range p.shards {
		name := "shard-" + strconv.Itoa(i)
		label := strconv.Itoa(i)
		q := queue.NewInMemoryQueue(queue.WithCapacity(p.queueCapacity), queue.WithName(name))
		p.shards[i] = shard{
			queue: q,
			worker: NewInMemoryWorker(q, store, planner,
				WithName(name),
				WithLogger(p.logger),
				withInflight(func(n int) { metrics.UpdateShardInflight(label, n) }),
			),
		}
	}

	metrics.UpdateWorkerCount(shardCount)
	metrics.UpdateQueueCapacity(shardCount * p.queueCapacity)
	metrics.UpdateQueueSize(0)

	return p
}

func withInflight(fn func(n int)) Option {
	return func(w *InMemoryWorker) {
		w.inflight = fn
	}
}

// ShardFor returns the shard index a floor is routed to.
func (p *Pool) ShardFor(floorID string) int {
	return int(xxh3.HashString(floorID) % uint64(len(p.shards)))
}

// ShardCount returns the number of shards.
func (p *Pool) ShardCount() int {
	return len(p.shards)
}

// Submit queues job on its floor's shard. It never blocks: a full shard
// returns queue.ErrFull and a stopped pool returns queue.ErrStopped.
func (p *Pool) Submit(ctx context.Context, job *queue.Job) error {
	select {
	case <-p.shutdown:
		return queue.ErrStopped
	default:
	}

	q := p.shards[p.ShardFor(job.Request.FloorID)].queue
	if q.Enqueue(ctx, job) {
		metrics.UpdateQueueSize(p.Len())
		return nil
	}
	if q.IsClosed() {
		return queue.ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return queue.ErrFull
}

// Len returns the number of jobs waiting across all shards.
func (p *Pool) Len() int {
	n := 0
	for _, s := range p.shards {
		n += s.queue.Len(context.Background())
	}
	return n
}

// Capacity returns the total queue capacity across shards.
func (p *Pool) Capacity() int {
	return len(p.shards) * p.queueCapacity
}

// Start starts one worker per shard.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.started.Store(true)
		for _, s := range p.shards {
			go s.worker.Run(ctx)
		}
		go p.startMetricsUpdater(ctx)
		p.logger.Info(ctx, "worker pool started", logger.Int("shards", len(p.shards)), logger.Int("shard_capacity", p.queueCapacity))
	})
}

// startMetricsUpdater keeps the queue size gauge current.
func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.C:
			metrics.UpdateQueueSize(p.Len())
		}
	}
}

// Shutdown closes every shard queue and waits for workers to finish the
// jobs already queued.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.shutdown)
		for _, s := range p.shards {
			if err := s.queue.Close(); err != nil {
				p.logger.Error(ctx, "error closing shard queue", logger.String("queue", s.queue.Name()), logger.Error(err))
			}
		}
	})

	if !p.started.Load() {
		for _, s := range p.shards {
			s.worker.reject(s.queue.Dequeue(ctx))
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, s := range p.shards {
		wctx, wcancel := context.WithTimeout(shutdownCtx, workerShutdownTimeout)
		err := s.worker.Shutdown(wctx)
		wcancel()
		if err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("shard", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateQueueSize(0)
	return firstErr
}
