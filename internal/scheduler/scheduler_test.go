package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/baikal/syswatch/internal/event"
)

type fakeCollector struct {
	mu            sync.Mutex
	processCalls  int
	serviceCalls  int
	hardwareCalls int
	malwareCalls  int

	processErr error
	networkErr error

	networkCh chan event.UnifiedEvent
}

func (f *fakeCollector) CollectProcessEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	f.mu.Lock()
	f.processCalls++
	err := f.processErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return []event.UnifiedEvent{testEvent()}, nil
}

func (f *fakeCollector) CollectServiceEvents(ctx context.Context, limit int) ([]event.UnifiedEvent, error) {
	f.mu.Lock()
	f.serviceCalls++
	f.mu.Unlock()
	return []event.UnifiedEvent{testEvent()}, nil
}

func (f *fakeCollector) CollectNetworkEvents(ctx context.Context) (<-chan event.UnifiedEvent, error) {
	f.mu.Lock()
	err := f.networkErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if f.networkCh == nil {
		f.networkCh = make(chan event.UnifiedEvent)
		close(f.networkCh)
	}
	return f.networkCh, nil
}

func (f *fakeCollector) CollectHardwareEvents(ctx context.Context, cpuThreshold, memThreshold float64) ([]event.UnifiedEvent, error) {
	f.mu.Lock()
	f.hardwareCalls++
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeCollector) CollectMalwareEvents(ctx context.Context) ([]event.UnifiedEvent, error) {
	f.mu.Lock()
	f.malwareCalls++
	f.mu.Unlock()
	return nil, nil
}

func (f *fakeCollector) calls() (process, service, hardware, malware int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.processCalls, f.serviceCalls, f.hardwareCalls, f.malwareCalls
}

type fakeSink struct {
	mu     sync.Mutex
	events []event.UnifiedEvent
}

func (f *fakeSink) Enqueue(e event.UnifiedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func testEvent() event.UnifiedEvent {
	return event.UnifiedEvent{
		Timestamp: time.Now().UTC(),
		Type:      event.TypeProcess,
		Details:   map[string]any{"pid": 1},
	}
}

func TestSchedulerRunsEachTaskAtLeastOnceImmediately(t *testing.T) {
	fc := &fakeCollector{}
	fs := &fakeSink{}
	s := New(fc, fs)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	process, service, hardware, malware := fc.calls()
	if process == 0 || service == 0 || hardware == 0 || malware == 0 {
		t.Fatalf("expected all four tasks to run at least once, got process=%d service=%d hardware=%d malware=%d",
			process, service, hardware, malware)
	}
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := New(&fakeCollector{}, &fakeSink{})
	s.Start(context.Background())
	s.Stop()
	s.Stop() // must not panic on double-close
}

func TestSchedulerSurvivesProcessCollectorError(t *testing.T) {
	fc := &fakeCollector{processErr: errors.New("boom")}
	fs := &fakeSink{}
	s := New(fc, fs)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	_, service, hardware, _ := fc.calls()
	if service == 0 || hardware == 0 {
		t.Fatal("a failing process monitor must not stop the other tasks")
	}
}

func TestSchedulerRetriesNetworkCaptureOnOpenFailure(t *testing.T) {
	fc := &fakeCollector{networkErr: errors.New("no devices")}
	s := New(fc, &fakeSink{})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	s.Stop()
	// No assertion beyond "did not deadlock or panic": the retry backoff
	// (ProcessInterval) is long relative to the test, so we only verify
	// clean shutdown while a capture is permanently failing.
}

func TestSchedulerEnqueuesCollectedEvents(t *testing.T) {
	fc := &fakeCollector{}
	fs := &fakeSink{}
	s := New(fc, fs)

	s.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if fs.count() == 0 {
		t.Fatal("expected at least one event to reach the sink")
	}
}
