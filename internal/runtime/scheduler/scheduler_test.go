package scheduler

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type stubMessage struct{ kind string }

func (m stubMessage) Type() string { return m.kind }

type fakeService struct {
	name     string
	periodMs int
	running  atomic.Bool
	box      *inbox.Inbox
	steps    atomic.Int64
	oneShot  bool
}

func newFakeService(name string, periodMs int) *fakeService {
	s := &fakeService{name: name, periodMs: periodMs, box: inbox.New(8, nil)}
	s.running.Store(true)
	return s
}

func (s *fakeService) Name() string        { return s.name }
func (s *fakeService) PeriodMs() int       { return s.periodMs }
func (s *fakeService) Running() bool       { return s.running.Load() }
func (s *fakeService) Inbox() *inbox.Inbox { return s.box }
func (s *fakeService) Setup() error        { return nil }
func (s *fakeService) Stop()               { s.running.Store(false) }
func (s *fakeService) Cleanup() error      { return nil }
func (s *fakeService) IsComplete() bool    { return !s.running.Load() }
func (s *fakeService) WorkStep() error {
	s.steps.Add(1)
	if s.oneShot {
		s.Stop()
	}
	return nil
}

var _ service.Service = (*fakeService)(nil)

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	sched := New(2, discardLogger())
	a := newFakeService("svc", 10)
	b := newFakeService("svc", 10)

	if err := sched.Register(a, NoPreference); err != nil {
		t.Fatalf("unexpected error registering first service: %v", err)
	}
	if err := sched.Register(b, NoPreference); err == nil {
		t.Fatalf("expected duplicate name registration to fail")
	}
}

func TestRegisterHonorsPinnedWorker(t *testing.T) {
	sched := New(3, discardLogger())
	s := newFakeService("svc", 10)
	if err := sched.Register(s, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.Worker(2).Count() != 1 {
		t.Errorf("expected pinned worker 2 to own the service")
	}
	if sched.Worker(0).Count() != 0 || sched.Worker(1).Count() != 0 {
		t.Errorf("expected only worker 2 to own a service")
	}
}

func TestRegisterPlacesOnLeastLoadedWorker(t *testing.T) {
	sched := New(2, discardLogger())
	for i := 0; i < 3; i++ {
		s := newFakeService(namesuffix(i), 10)
		if err := sched.Register(s, NoPreference); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	c0 := sched.Worker(0).Count()
	c1 := sched.Worker(1).Count()
	if c0+c1 != 3 {
		t.Fatalf("expected 3 services total across workers, got %d", c0+c1)
	}
	if c0 == 0 || c1 == 0 {
		t.Errorf("expected services balanced across both workers, got %d and %d", c0, c1)
	}
}

func namesuffix(i int) string {
	return "svc-" + string(rune('a'+i))
}

func TestSendRoutesToRegisteredService(t *testing.T) {
	sched := New(1, discardLogger())
	s := newFakeService("target", 10)
	if err := sched.Register(s, NoPreference); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sched.Send("target", stubMessage{"hi"}) {
		t.Fatalf("expected send to succeed")
	}
	if s.box.IsEmpty() {
		t.Errorf("expected message to land in target's inbox")
	}
}

func TestSendFailsForUnknownTarget(t *testing.T) {
	sched := New(1, discardLogger())
	if sched.Send("nope", stubMessage{"hi"}) {
		t.Errorf("expected send to an unknown target to fail")
	}
}

func TestSendFailsForNilMessage(t *testing.T) {
	sched := New(1, discardLogger())
	s := newFakeService("target", 10)
	sched.Register(s, NoPreference)
	if sched.Send("target", nil) {
		t.Errorf("expected send of a nil message to fail")
	}
}

func TestReapCompletedRemovesStoppedServices(t *testing.T) {
	sched := New(1, discardLogger())
	s := newFakeService("oneshot", 10)
	sched.Register(s, NoPreference)

	s.Stop() // simulate the worker quarantining/completing it
	sched.ReapCompleted()

	if _, err := sched.Get("oneshot"); err == nil {
		t.Errorf("expected reaped service to be removed from the directory")
	}
}

func TestStartAllAndStopAll(t *testing.T) {
	sched := New(2, discardLogger())
	s := newFakeService("svc", 5)
	sched.Register(s, NoPreference)

	sched.StartAll()
	time.Sleep(30 * time.Millisecond)
	sched.StopAll()

	if s.steps.Load() == 0 {
		t.Errorf("expected the service to have stepped at least once before shutdown")
	}
}

func TestSnapshotReflectsRegisteredServices(t *testing.T) {
	sched := New(1, discardLogger())
	s := newFakeService("svc", 10)
	sched.Register(s, NoPreference)

	snap := sched.Snapshot()
	if snap.WorkerCount != 1 {
		t.Fatalf("expected worker count 1, got %d", snap.WorkerCount)
	}
	if len(snap.Workers[0].Services) != 1 || snap.Workers[0].Services[0] != "svc" {
		t.Errorf("expected snapshot to list the registered service, got %+v", snap.Workers[0].Services)
	}
}
