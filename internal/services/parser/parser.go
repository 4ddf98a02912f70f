// Package parser implements a small message-driven demo service: it drains
// raw text messages from its inbox, turns each into a message.Parsed, and
// forwards the result to a downstream service by name. It exists to exercise
// the routing half of the scheduler (Service.Send / Scheduler.Send) the way
// the teacher's internal/messages pipeline hands a message from one stage to
// the next.
package parser

import (
	"fmt"
	"log/slog"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/message"
	"svcrunner/internal/runtime/service"
)

// Service parses Raw messages into Parsed messages and forwards them.
type Service struct {
	*service.BaseService
	logger   *slog.Logger
	nextName string
}

// New builds a parser Service named name, draining its own inbox on each
// work step and forwarding parsed output to the service registered as
// nextName.
func New(name string, periodMs, inboxCapacity int, sender service.Sender, nextName string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		BaseService: service.NewBase(name, periodMs, inboxCapacity, sender),
		logger:      logger,
		nextName:    nextName,
	}
	s.BindHandler(s)
	return s
}

// Handle implements service.Handler: it expects message.Raw and forwards a
// message.Parsed derived from it. Any other message type is logged and
// dropped rather than erroring the work step — a handler surprise isn't a
// service fault.
func (s *Service) Handle(msg inbox.Message) error {
	raw, ok := msg.(message.Raw)
	if !ok {
		s.logger.Warn("parser: dropping unexpected message type", "service", s.Name(), "type", msg.Type())
		return nil
	}

	parsed := message.Parsed{
		ID:        raw.ID,
		Body:      fmt.Sprintf("%s!", raw.Body),
		CreatedAt: service.Stamp(),
	}

	if s.nextName == "" {
		return nil
	}
	if !s.Send(s.nextName, parsed) {
		s.logger.Warn("parser: failed to forward parsed message", "service", s.Name(), "target", s.nextName, "id", raw.ID)
	}
	return nil
}
