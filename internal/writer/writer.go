// Package writer implements the single-actor owner of the SQL handle and
// the vector index, grounded on original_source's storage/database.py
// DatabaseWorker: one background loop draining a queue, batching by
// size-or-age, flushing to both sinks. The Python version blocks on
// queue.Queue.get(timeout=1.0) inside a daemon thread; this actor instead
// polls a mutex-protected slice on a ticker so the bounded-queue
// "drop the oldest unstarted event" backpressure policy of spec.md §4.4
// (absent from the original, which uses an unbounded queue.Queue) can be
// expressed without blocking producers.
package writer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/baikal/syswatch/internal/event"
	"github.com/baikal/syswatch/internal/logging"
)

// BatchMaxSize and BatchMaxAge implement spec.md §4.4's batch policy:
// flush when either threshold is crossed.
const (
	BatchMaxSize = 50
	BatchMaxAge  = 3 * time.Second

	pollInterval  = 100 * time.Millisecond
	drainDeadline = 5 * time.Second

	// DefaultQueueCapacity bounds the in-memory backlog before the
	// oldest-unstarted-event drop policy kicks in.
	DefaultQueueCapacity = 5000
)

// sqlSink narrows *SQLStore to what Writer needs, so tests can supply a
// fake without an actual Postgres connection — the same CommandRunner-
// style testability seam the collector package uses.
type sqlSink interface {
	InsertBatch(ctx context.Context, events []event.UnifiedEvent) error
	GetRecentEvents(ctx context.Context, eventType event.Type, limit int) ([]map[string]any, error)
}

// vectorSink narrows *VectorSink likewise.
type vectorSink interface {
	WriteBatch(ctx context.Context, events []event.UnifiedEvent) error
}

// Writer is the sole owner of the SQL store and vector sink; collectors
// and RPC handlers never touch either directly (spec.md §3 "Ownership").
type Writer struct {
	sql    sqlSink
	vector vectorSink

	capacity int
	mu       sync.Mutex
	buf      []event.UnifiedEvent
	dropped  int64

	doneCh chan struct{}
}

func New(sql sqlSink, vector vectorSink, capacity int) *Writer {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Writer{
		sql:      sql,
		vector:   vector,
		capacity: capacity,
		doneCh:   make(chan struct{}),
	}
}

// DroppedCount reports how many events have been discarded under
// backpressure since startup.
func (w *Writer) DroppedCount() int64 {
	return atomic.LoadInt64(&w.dropped)
}

// Enqueue appends one event to the backlog. Never blocks: under full-
// queue pressure the oldest unstarted event is dropped to make room,
// per spec.md §4.4 ("collection is more valuable than full retention").
// A producer-level schema violation (unknown type) is rejected here —
// the writer boundary spec.md §3 names.
func (w *Writer) Enqueue(e event.UnifiedEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	if len(w.buf) >= w.capacity {
		w.buf = w.buf[1:]
		atomic.AddInt64(&w.dropped, 1)
	}
	w.buf = append(w.buf, e)
	w.mu.Unlock()
	return nil
}

// Run drives the batching loop until ctx is cancelled, then drains the
// remaining backlog for up to drainDeadline before returning.
func (w *Writer) Run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log := logging.WithComponent("writer")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("writer draining before shutdown")
			w.drain(drainDeadline)
			return
		case <-ticker.C:
			w.flushIfReady(ctx)
		}
	}
}

// Done reports when the writer's Run loop has fully returned, for callers
// that want to wait out the drain deadline before closing handles.
func (w *Writer) Done() <-chan struct{} {
	return w.doneCh
}

func (w *Writer) flushIfReady(ctx context.Context) {
	batch := w.takeBatchIfReady()
	if len(batch) == 0 {
		return
	}
	w.writeBatch(ctx, batch)
}

// takeBatchIfReady pops the whole backlog once either threshold is met,
// preserving enqueue order within the returned batch (spec.md §4.4
// "Ordering").
func (w *Writer) takeBatchIfReady() []event.UnifiedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) == 0 {
		return nil
	}
	ready := len(w.buf) >= BatchMaxSize || time.Since(w.buf[0].Timestamp) > BatchMaxAge
	if !ready {
		return nil
	}

	batch := w.buf
	w.buf = nil
	return batch
}

// drain flushes whatever remains in the backlog, polling until empty or
// the deadline elapses — spec.md §5's "drains the queue up to a deadline".
func (w *Writer) drain(deadline time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		w.mu.Lock()
		remaining := len(w.buf)
		w.mu.Unlock()
		if remaining == 0 {
			return
		}

		select {
		case <-ctx.Done():
			w.flushAll(context.Background())
			return
		case <-ticker.C:
			w.flushAll(ctx)
		}
	}
}

// flushAll writes the entire current backlog regardless of batch
// thresholds, used only during shutdown drain.
func (w *Writer) flushAll(ctx context.Context) {
	w.mu.Lock()
	batch := w.buf
	w.buf = nil
	w.mu.Unlock()

	if len(batch) > 0 {
		w.writeBatch(ctx, batch)
	}
}

// writeBatch commits one batch to SQL in a single transaction, then
// independently projects and pushes it to the vector index. A SQL
// failure drops the batch (transient-per-batch, spec.md §7); a vector
// failure never affects the SQL outcome.
func (w *Writer) writeBatch(ctx context.Context, batch []event.UnifiedEvent) {
	log := logging.WithComponent("writer")

	if err := w.sql.InsertBatch(ctx, batch); err != nil {
		log.Error().Err(err).Int("batch_size", len(batch)).Msg("sql batch insert failed, dropping batch")
		return
	}

	if w.vector == nil {
		return
	}
	if err := w.vector.WriteBatch(ctx, batch); err != nil {
		log.Warn().Err(err).Int("batch_size", len(batch)).Msg("vector index batch write failed")
	}
}

// GetRecentEvents delegates to the SQL store's read-only query API —
// the only path the RPC layer has into persisted events (spec.md §3
// "RPC layer is a read-only consumer of the writer's query API").
func (w *Writer) GetRecentEvents(ctx context.Context, eventType event.Type, limit int) ([]map[string]any, error) {
	return w.sql.GetRecentEvents(ctx, eventType, limit)
}
