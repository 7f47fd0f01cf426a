package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/baikal/syswatch/internal/event"
)

type fakeSQL struct {
	mu    sync.Mutex
	rows  []event.UnifiedEvent
	fail  bool
}

func (f *fakeSQL) InsertBatch(_ context.Context, events []event.UnifiedEvent) error {
	if f.fail {
		return errFakeInsert{}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, events...)
	return nil
}

func (f *fakeSQL) GetRecentEvents(_ context.Context, eventType event.Type, limit int) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for i := len(f.rows) - 1; i >= 0 && len(out) < limit; i-- {
		if f.rows[i].Type == eventType {
			out = append(out, map[string]any{"pid": f.rows[i].Details["pid"]})
		}
	}
	return out, nil
}

type errFakeInsert struct{}

func (errFakeInsert) Error() string { return "fake insert failure" }

type fakeVector struct {
	mu    sync.Mutex
	count int
}

func (f *fakeVector) WriteBatch(_ context.Context, events []event.UnifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count += len(events)
	return nil
}

func testEvent(pid int) event.UnifiedEvent {
	return event.UnifiedEvent{
		Timestamp: time.Now().UTC(),
		Type:      event.TypeProcess,
		Details:   map[string]any{"pid": pid, "name": "x"},
		Metadata:  map[string]string{"os": "linux"},
	}
}

func TestEnqueueRejectsInvalidEvent(t *testing.T) {
	w := New(&fakeSQL{}, &fakeVector{}, 100)
	err := w.Enqueue(event.UnifiedEvent{})
	if err == nil {
		t.Fatal("expected validation error for zero-value event")
	}
}

func TestEnqueueDropsOldestUnderPressure(t *testing.T) {
	w := New(&fakeSQL{}, &fakeVector{}, 2)
	for i := 0; i < 5; i++ {
		if err := w.Enqueue(testEvent(i)); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if w.DroppedCount() != 3 {
		t.Fatalf("expected 3 dropped, got %d", w.DroppedCount())
	}
	if len(w.buf) != 2 {
		t.Fatalf("expected 2 buffered, got %d", len(w.buf))
	}
}

func TestTakeBatchIfReadyWaitsForThreshold(t *testing.T) {
	w := New(&fakeSQL{}, &fakeVector{}, 100)
	w.Enqueue(testEvent(1))
	if batch := w.takeBatchIfReady(); batch != nil {
		t.Fatalf("expected no batch before threshold, got %d events", len(batch))
	}
}

func TestTakeBatchIfReadyFiresOnSize(t *testing.T) {
	w := New(&fakeSQL{}, &fakeVector{}, 1000)
	for i := 0; i < BatchMaxSize; i++ {
		w.Enqueue(testEvent(i))
	}
	batch := w.takeBatchIfReady()
	if len(batch) != BatchMaxSize {
		t.Fatalf("expected %d events, got %d", BatchMaxSize, len(batch))
	}
}

func TestRunDrainsOnCancel(t *testing.T) {
	sql := &fakeSQL{}
	vec := &fakeVector{}
	w := New(sql, vec, 1000)
	w.Enqueue(testEvent(1))
	w.Enqueue(testEvent(2))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not shut down in time")
	}

	sql.mu.Lock()
	got := len(sql.rows)
	sql.mu.Unlock()
	if got != 2 {
		t.Fatalf("expected 2 rows drained to sql, got %d", got)
	}
}
