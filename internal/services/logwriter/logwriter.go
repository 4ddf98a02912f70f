// Package logwriter implements a demo service that appends every
// message.Parsed it receives to a file as structured JSON, using the same zap JSON-encoder
// config the teacher's internal/observability/logging.go builds for stdout —
// just pointed at a file path instead.
package logwriter

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"svcrunner/internal/runtime/inbox"
	"svcrunner/internal/runtime/message"
	"svcrunner/internal/runtime/service"
)

// Service appends every message.Parsed it receives to a JSON log file.
type Service struct {
	*service.BaseService
	logger *slog.Logger
	path   string
	writer *zap.Logger
}

// New builds a logwriter Service that writes to path. The file is opened in
// Setup, matching spec §4.2's "resources are acquired in Setup, not the
// constructor" contract.
func New(name string, periodMs, inboxCapacity int, sender service.Sender, path string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		BaseService: service.NewBase(name, periodMs, inboxCapacity, sender),
		logger:      logger,
		path:        path,
	}
	s.BindHandler(s)
	return s
}

// Setup opens (creating/appending to) the log file.
func (s *Service) Setup() error {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{s.path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	w, err := cfg.Build()
	if err != nil {
		return err
	}
	s.writer = w
	return nil
}

// Handle writes one message.Parsed as a structured log line.
func (s *Service) Handle(msg inbox.Message) error {
	parsed, ok := msg.(message.Parsed)
	if !ok {
		s.logger.Warn("logwriter: dropping unexpected message type", "service", s.Name(), "type", msg.Type())
		return nil
	}
	s.writer.Info("message",
		zap.String("id", parsed.ID.String()),
		zap.String("body", parsed.Body),
		zap.Time("created_at", parsed.CreatedAt),
	)
	return nil
}

// Cleanup flushes buffered log lines to the file. The file handle opened in
// Setup is not closed.
func (s *Service) Cleanup() error {
	if s.writer == nil {
		return nil
	}
	// Sync on a closed/console-backed fd routinely errors on some platforms;
	// the teacher's own cmd/worker/main.go discards this error too.
	_ = s.writer.Sync()
	return nil
}
