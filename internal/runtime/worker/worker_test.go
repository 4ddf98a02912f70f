package worker

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/service"
)

type fakeService struct {
	name     string
	periodMs int
	running  atomic.Bool
	box      *inbox.Inbox

	steps      atomic.Int64
	stepErr    error
	panicStep  bool
	cleanupErr error
	stopped    atomic.Bool
}

func newFakeService(name string, periodMs int) *fakeService {
	s := &fakeService{name: name, periodMs: periodMs, box: inbox.New(8, nil)}
	s.running.Store(true)
	return s
}

func (s *fakeService) Name() string         { return s.name }
func (s *fakeService) PeriodMs() int        { return s.periodMs }
func (s *fakeService) Running() bool        { return s.running.Load() }
func (s *fakeService) Inbox() *inbox.Inbox  { return s.box }
func (s *fakeService) Setup() error         { return nil }
func (s *fakeService) Stop()                { s.running.Store(false); s.stopped.Store(true) }
func (s *fakeService) Cleanup() error       { return s.cleanupErr }
func (s *fakeService) IsComplete() bool     { return !s.running.Load() }

func (s *fakeService) WorkStep() error {
	s.steps.Add(1)
	if s.panicStep {
		panic("boom")
	}
	return s.stepErr
}

var _ service.Service = (*fakeService)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestAddAndRemoveService(t *testing.T) {
	w := New(0, discardLogger())
	s := newFakeService("a", 10)
	w.AddService(s)

	if w.Count() != 1 {
		t.Fatalf("expected count 1, got %d", w.Count())
	}

	w.RemoveService(s)
	if w.Count() != 0 {
		t.Errorf("expected count 0 after removal, got %d", w.Count())
	}
	if !s.stopped.Load() {
		t.Errorf("expected RemoveService to stop the service")
	}
}

func TestRemoveUnknownServiceIsNoop(t *testing.T) {
	w := New(0, discardLogger())
	s := newFakeService("ghost", 10)
	w.RemoveService(s)
	if w.Count() != 0 {
		t.Errorf("expected count to remain 0")
	}
}

func TestTickRunsDueServicesOnly(t *testing.T) {
	w := New(0, discardLogger())
	var now int64 = 2_000_000 // 2ms, comfortably past the fast service's first due time
	w.nowFn = func() int64 { return now }

	fast := newFakeService("fast", 1) // 1ms period -> due every tick
	slow := newFakeService("slow", 1000000)
	w.AddService(fast)
	w.AddService(slow)

	w.tick()
	if fast.steps.Load() != 1 {
		t.Errorf("expected fast service to step once, got %d", fast.steps.Load())
	}
	if slow.steps.Load() != 1 {
		t.Errorf("expected never-run slow service to step on the first tick, got %d steps", slow.steps.Load())
	}

	now += int64(time.Millisecond)
	w.tick()
	if fast.steps.Load() != 2 {
		t.Errorf("expected fast service to step twice, got %d", fast.steps.Load())
	}
	if slow.steps.Load() != 1 {
		t.Errorf("expected slow service not due again yet, got %d steps", slow.steps.Load())
	}
}

func TestAutoQuarantineAfterConsecutiveErrors(t *testing.T) {
	w := New(0, discardLogger())
	w.SetErrorThreshold(2)

	var now int64 = 2_000_000
	w.nowFn = func() int64 { return now }

	failing := newFakeService("failing", 1)
	failing.stepErr = errors.New("boom")
	w.AddService(failing)

	w.tick()
	if !failing.Running() {
		t.Fatalf("expected service to still be running after first failure")
	}

	now += int64(time.Millisecond)
	w.tick()
	if failing.Running() {
		t.Errorf("expected service to be quarantined (stopped) after reaching the error threshold")
	}
}

func TestPanicInWorkStepIsContained(t *testing.T) {
	w := New(0, discardLogger())
	var now int64 = 2_000_000
	w.nowFn = func() int64 { return now }

	panicky := newFakeService("panicky", 1)
	panicky.panicStep = true
	w.AddService(panicky)

	w.tick() // must not panic the test

	metrics := w.SnapshotMetrics()
	snap, ok := metrics["panicky"]
	if !ok {
		t.Fatalf("expected metrics entry for panicky service")
	}
	if snap.ErrorCount != 1 {
		t.Errorf("expected a panic to be recorded as an error, got %d", snap.ErrorCount)
	}
}

func TestSetTickPeriodMsRejectsNonPositive(t *testing.T) {
	w := New(0, discardLogger())
	w.SetTickPeriodMs(25)
	w.SetTickPeriodMs(0)
	if w.TickPeriodMs() != 25 {
		t.Errorf("expected non-positive value to be rejected, got %d", w.TickPeriodMs())
	}
}

func TestStartAndStopWorker(t *testing.T) {
	w := New(0, discardLogger())
	s := newFakeService("svc", 5)
	w.AddService(s)

	w.Start()
	if !w.Running() {
		t.Fatalf("expected worker to be running after Start")
	}

	time.Sleep(30 * time.Millisecond)
	w.StopWorker()
	w.Join()

	if w.Running() {
		t.Errorf("expected worker to report not running after StopWorker+Join")
	}
	if s.steps.Load() == 0 {
		t.Errorf("expected at least one step to have run before shutdown")
	}
}
