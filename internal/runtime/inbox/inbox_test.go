package inbox

import "testing"

type stubMessage struct{ kind string }

func (s stubMessage) Type() string { return s.kind }

func TestOfferAndPoll(t *testing.T) {
	ib := New(2, nil)

	if !ib.Offer(stubMessage{"a"}) {
		t.Fatalf("expected offer to succeed on empty inbox")
	}
	if ib.Size() != 1 {
		t.Errorf("expected size 1, got %d", ib.Size())
	}

	msg, ok := ib.Poll()
	if !ok {
		t.Fatalf("expected poll to return a message")
	}
	if msg.Type() != "a" {
		t.Errorf("expected type a, got %s", msg.Type())
	}
	if !ib.IsEmpty() {
		t.Errorf("expected inbox to be empty after poll")
	}
}

func TestOfferRejectsNil(t *testing.T) {
	ib := New(1, nil)
	if ib.Offer(nil) {
		t.Errorf("expected nil message to be rejected")
	}
}

func TestOfferRejectsWhenFull(t *testing.T) {
	ib := New(1, nil)
	if !ib.Offer(stubMessage{"a"}) {
		t.Fatalf("expected first offer to succeed")
	}
	if ib.Offer(stubMessage{"b"}) {
		t.Errorf("expected second offer to fail on a full inbox")
	}
}

func TestPollOnEmptyReturnsFalse(t *testing.T) {
	ib := New(1, nil)
	if _, ok := ib.Poll(); ok {
		t.Errorf("expected poll on empty inbox to return false")
	}
}

func TestNonPositiveCapacityDefaults(t *testing.T) {
	ib := New(0, nil)
	if ib.Capacity() != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, ib.Capacity())
	}
}
