// Package queue holds generation jobs waiting for their floor shard.
//
// Each shard owns one bounded queue and drains it with a single goroutine,
// so jobs for the same floor run one at a time in arrival order.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/judgeflow/internal/domain/model"
	"github.com/okian/judgeflow/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Result is what a shard hands back for one job.
type Result struct {
	Plan        model.GeneratePlan
	Assignments []model.Assignment
	Err         error
}

// Job is one generate request waiting to be planned and committed.
type Job struct {
	RequestID  string
	Request    model.GenerateRequest
	EnqueuedAt time.Time

	// done is buffered so a shard never blocks on a caller that gave up.
	done chan Result
}

// NewJob creates a job with a one-slot reply channel.
func NewJob(requestID string, req model.GenerateRequest) *Job {
	return &Job{
		RequestID:  requestID,
		Request:    req,
		EnqueuedAt: time.Now(),
		done:       make(chan Result, 1),
	}
}

// Complete delivers the result. Only the first call has an effect.
func (j *Job) Complete(r Result) {
	select {
	case j.done <- r:
	default:
	}
}

// Wait blocks until the job completes or ctx ends.
func (j *Job) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-j.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j *Job) bool

	// Dequeue returns the channel jobs are read from.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan *Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs. Jobs already queued stay readable.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan *Job
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
		name:     "queue",
	}

	for _, opt := range opts {
		opt(q)
	}

	q.jobs = make(chan *Job, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j *Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	}

	select {
	case q.jobs <- j:
		return true
	default:
		metrics.RecordQueueEnqueueError("full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the job channel.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan *Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.jobs)
}

// Capacity returns the configured capacity.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Name returns the queue label.
func (q *InMemoryQueue) Name() string {
	return q.name
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
