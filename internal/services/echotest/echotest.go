// Package echotest implements the smallest possible self-terminating
// service: it runs one work step that always succeeds, then marks itself
// stopped so the next Scheduler.ReapCompleted sweep removes it. It exists to
// exercise the completion-sweep path spec §4.4/§8 describes, the way the
// teacher's test suite uses small throwaway workers to exercise pool
// bookkeeping.
package echotest

import (
	"log/slog"

	"svcrunner/internal/runtime/service"
)

// Service runs exactly one step and then completes.
type Service struct {
	*service.BaseService
	logger *slog.Logger
	ran    bool
}

// New builds an echotest Service.
func New(name string, periodMs int, sender service.Sender, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		BaseService: service.NewBase(name, periodMs, 0, sender),
		logger:      logger,
	}
}

// WorkStep runs once, logs, and stops the service so it is reaped on the
// next sweep. Overrides BaseService's default drain loop since this service
// isn't message-driven.
func (s *Service) WorkStep() error {
	if s.ran {
		return nil
	}
	s.ran = true
	s.logger.Info("echotest: single step complete", "service", s.Name())
	s.Stop()
	return nil
}
