// Package ingress implements a demo service that bridges an external NATS
// subject into the scheduler's message fabric: a subscription callback
// offers each inbound payload onto the service's own inbox, and the default
// drain-loop work step forwards it on to a named downstream service. Grounded
// on the teacher's internal/messaging/nats.Queue, which wraps the same
// nats.Connect/Publish calls for its own outbound queue.
package ingress

import (
	"log/slog"

	"github.com/nats-io/nats.go"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/message"
	"svcrunner/internal/runtime/service"
)

// Service subscribes to a NATS subject and forwards every message it
// receives to a downstream service by name.
type Service struct {
	*service.BaseService
	logger  *slog.Logger
	url     string
	subject string
	next    string

	conn *nats.Conn
	sub  *nats.Subscription
}

// New builds an ingress Service. The NATS connection is made in Setup, not
// here, so construction never blocks or fails on a down broker.
func New(name string, periodMs, inboxCapacity int, sender service.Sender, url, subject, next string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		BaseService: service.NewBase(name, periodMs, inboxCapacity, sender),
		logger:      logger,
		url:         url,
		subject:     subject,
		next:        next,
	}
	s.BindHandler(s)
	return s
}

// Setup connects to NATS and subscribes. The subscription callback runs on a
// NATS library goroutine; it only ever offers onto this service's own inbox,
// never touches scheduler state directly, keeping the worker's tick loop the
// sole driver of everything downstream.
func (s *Service) Setup() error {
	conn, err := nats.Connect(s.url)
	if err != nil {
		return err
	}
	s.conn = conn

	sub, err := conn.Subscribe(s.subject, func(m *nats.Msg) {
		raw := message.NewRaw(string(m.Data))
		if !s.Inbox().Offer(raw) {
			s.logger.Warn("ingress: inbox full, dropping message", "service", s.Name(), "subject", s.subject)
		}
	})
	if err != nil {
		conn.Close()
		return err
	}
	s.sub = sub
	return nil
}

// Handle forwards an already-Raw message on to the configured downstream
// service.
func (s *Service) Handle(msg inbox.Message) error {
	if s.next == "" {
		return nil
	}
	if !s.Send(s.next, msg) {
		s.logger.Warn("ingress: failed to forward message", "service", s.Name(), "target", s.next)
	}
	return nil
}

// Cleanup unsubscribes and closes the NATS connection.
func (s *Service) Cleanup() error {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}
