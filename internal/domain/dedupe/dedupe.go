// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Default deduper configuration constants.
const (
	defaultMaxSize = 10_000
	defaultTTL     = 10 * time.Minute
)

// Deduper records seen generation request IDs so a retried request is not
// allocated twice.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID so the request can be retried. Used when a
	// request was recorded but its generation was rejected (backpressure,
	// commit conflict).
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// Sweeper drops expired entries.
type Sweeper interface {
	Sweep(ctx context.Context) int
}

// inMemoryDeduper keeps request IDs with their first-seen time.
// Entries older than ttl count as unseen. When maxSize > 0 the oldest entry
// is evicted on overflow.
type inMemoryDeduper struct {
	seen    *xsync.Map[string, time.Time]
	mu      sync.Mutex // serializes expiry replacement and eviction
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen:    xsync.NewMap[string, time.Time](),
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	now := d.now()
	prev, loaded := d.seen.LoadOrStore(id, now)
	if !loaded {
		if d.maxSize > 0 && d.seen.Size() > d.maxSize {
			d.evictOldest(id)
		}
		return false
	}
	if !d.expired(prev, now) {
		return true
	}

	// Expired entry: replace it under the lock so two callers cannot both
	// treat it as new.
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.seen.Load(id)
	if ok && !d.expired(current, now) {
		return true
	}
	d.seen.Store(id, now)
	return false
}

// Unrecord removes an ID from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Delete(id)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return int64(d.seen.Size())
}

// Sweep removes expired entries and returns how many were dropped.
func (d *inMemoryDeduper) Sweep(_ context.Context) int {
	if d.ttl <= 0 {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	var stale []string
	d.seen.Range(func(id string, at time.Time) bool {
		if d.expired(at, now) {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		d.seen.Delete(id)
	}
	return len(stale)
}

func (d *inMemoryDeduper) expired(at, now time.Time) bool {
	return d.ttl > 0 && now.Sub(at) >= d.ttl
}

// evictOldest removes the entry with the earliest timestamp, never keep.
func (d *inMemoryDeduper) evictOldest(keep string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		oldestID string
		oldestAt time.Time
		found    bool
	)
	d.seen.Range(func(id string, at time.Time) bool {
		if id == keep {
			return true
		}
		if !found || at.Before(oldestAt) {
			oldestID, oldestAt, found = id, at, true
		}
		return true
	})
	if found {
		d.seen.Delete(oldestID)
	}
}
