package service

import (
	"errors"
	"testing"

	"svcrunner/internal/runtime/inbox"
)

type stubMessage struct{ kind string }

func (m stubMessage) Type() string { return m.kind }

func TestNewBaseAppliesDefaults(t *testing.T) {
	b := NewBase("svc", 0, 0, nil)
	if b.PeriodMs() != DefaultPeriodMs {
		t.Errorf("expected default period %d, got %d", DefaultPeriodMs, b.PeriodMs())
	}
	if !b.Running() {
		t.Errorf("expected a freshly constructed service to be running")
	}
	if b.IsComplete() {
		t.Errorf("expected a running service to not be complete")
	}
}

func TestStopMarksComplete(t *testing.T) {
	b := NewBase("svc", 10, 0, nil)
	b.Stop()
	if b.Running() {
		t.Errorf("expected Stop to clear the running flag")
	}
	if !b.IsComplete() {
		t.Errorf("expected a stopped service to be complete")
	}
}

var errHandlerFailed = errors.New("handler failed")

type recordingHandler struct {
	handled []string
	failOn  string
}

func (h *recordingHandler) Handle(msg inbox.Message) error {
	h.handled = append(h.handled, msg.Type())
	if msg.Type() == h.failOn {
		return errHandlerFailed
	}
	return nil
}

func TestWorkStepDrainsInboxUntilEmpty(t *testing.T) {
	b := NewBase("svc", 10, 4, nil)
	h := &recordingHandler{}
	b.BindHandler(h)

	b.Inbox().Offer(stubMessage{"a"})
	b.Inbox().Offer(stubMessage{"b"})

	if err := b.WorkStep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.handled) != 2 {
		t.Errorf("expected 2 messages handled, got %d", len(h.handled))
	}
	if !b.Inbox().IsEmpty() {
		t.Errorf("expected inbox drained")
	}
}

func TestWorkStepStopsOnHandlerError(t *testing.T) {
	b := NewBase("svc", 10, 4, nil)
	h := &recordingHandler{failOn: "bad"}
	b.BindHandler(h)

	b.Inbox().Offer(stubMessage{"bad"})
	b.Inbox().Offer(stubMessage{"unreached"})

	if err := b.WorkStep(); err == nil {
		t.Fatalf("expected handler error to propagate")
	}
	if len(h.handled) != 1 {
		t.Errorf("expected only the failing message to be handled, got %d", len(h.handled))
	}
}

func TestWorkStepWithoutHandlerIsNoop(t *testing.T) {
	b := NewBase("svc", 10, 4, nil)
	b.Inbox().Offer(stubMessage{"a"})
	if err := b.WorkStep(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Inbox().IsEmpty() {
		t.Errorf("expected message to remain queued when no handler is bound")
	}
}

func TestSendWithoutSenderReturnsFalse(t *testing.T) {
	b := NewBase("svc", 10, 4, nil)
	if b.Send("other", stubMessage{"a"}) {
		t.Errorf("expected Send without a configured sender to return false")
	}
}
