// Package service defines the lifecycle contract every unit of user code
// registered with the Scheduler must satisfy, plus a BaseService embed that
// supplies the default, message-driven implementation of that contract.
package service

import (
	"sync/atomic"
	"time"

	"svcrunner/internal/runtime/inbox"
)

// DefaultPeriodMs is substituted for any non-positive requested period.
const DefaultPeriodMs = 10

// Sender is the only capability a Service may use on its owning Scheduler.
// It exists to break the Service <-> Scheduler reference cycle by ownership:
// the Scheduler owns services outright, while a service's handle back to the
// Scheduler is this narrow, non-owning interface.
type Sender interface {
	Send(name string, msg inbox.Message) bool
}

// Service is the lifecycle contract of spec §3/§4.2. Concrete services
// normally embed *BaseService and only override WorkStep (or Handle, for
// the common message-driven case) and Cleanup.
type Service interface {
	Name() string
	PeriodMs() int
	Running() bool
	Inbox() *inbox.Inbox

	Setup() error
	WorkStep() error
	Stop()
	Cleanup() error
	IsComplete() bool
}

// Handler is implemented by services that want the BaseService default
// WorkStep: it drains the inbox, invoking Handle once per dequeued message
// until the inbox is empty or the service stops running.
type Handler interface {
	Handle(msg inbox.Message) error
}

// BaseService supplies the running flag, the inbox, and the default
// drain-loop WorkStep described in spec §4.2. Embed it in a concrete
// service and override WorkStep directly for non-message-driven work, or
// implement Handler for the default drain loop to call into.
type BaseService struct {
	name     string
	periodMs int
	running  atomic.Bool
	box      *inbox.Inbox
	sender   Sender

	// handler is consulted by the default WorkStep; nil means WorkStep must
	// be overridden by the embedding type.
	handler Handler
}

// NewBase constructs a BaseService. periodMs <= 0 is replaced by
// DefaultPeriodMs. inboxCapacity <= 0 is replaced by inbox.DefaultCapacity
// (enforced inside inbox.New).
func NewBase(name string, periodMs int, inboxCapacity int, sender Sender) *BaseService {
	if periodMs <= 0 {
		periodMs = DefaultPeriodMs
	}
	b := &BaseService{
		name:     name,
		periodMs: periodMs,
		box:      inbox.New(inboxCapacity, nil),
		sender:   sender,
	}
	b.running.Store(true)
	return b
}

// BindHandler registers the Handler the default WorkStep drains into. Call
// this from a concrete service's constructor when it implements Handler on
// itself (not on the embedded BaseService).
func (b *BaseService) BindHandler(h Handler) {
	b.handler = h
}

func (b *BaseService) Name() string          { return b.name }
func (b *BaseService) PeriodMs() int         { return b.periodMs }
func (b *BaseService) Running() bool         { return b.running.Load() }
func (b *BaseService) Inbox() *inbox.Inbox    { return b.box }
func (b *BaseService) Setup() error          { return nil }
func (b *BaseService) Cleanup() error        { return nil }
func (b *BaseService) IsComplete() bool      { return !b.running.Load() }
func (b *BaseService) Stop()                 { b.running.Store(false) }

// Send forwards to the owning Scheduler. Safe to call from WorkStep/Handle.
func (b *BaseService) Send(name string, msg inbox.Message) bool {
	if b.sender == nil {
		return false
	}
	return b.sender.Send(name, msg)
}

// WorkStep is the default, message-driven work step: drain the inbox,
// invoking the bound Handler per message, stopping early if the service is
// told to stop mid-drain. A concrete service that isn't message-driven
// should override WorkStep entirely rather than calling this one.
func (b *BaseService) WorkStep() error {
	if b.handler == nil {
		return nil
	}
	for {
		if !b.running.Load() {
			return nil
		}
		msg, ok := b.box.Poll()
		if !ok {
			return nil
		}
		if err := b.handler.Handle(msg); err != nil {
			return err
		}
	}
}

// TimestampedMessage holds a message's creation time in CreatedAt; concrete
// message types may embed it to carry a timestamp without repeating the
// field. inbox.Message itself does not require a timestamp.
type TimestampedMessage struct {
	CreatedAt time.Time
}

// Stamp returns the current time for a newly constructed message.
func Stamp() time.Time { return time.Now() }
