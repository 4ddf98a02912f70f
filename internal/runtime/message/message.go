// Package message defines the inbox.Message types the demo services pass
// between each other, the way the teacher's internal/messages package
// defines the payloads its workers pass through channels. UUIDs are used
// for correlation the way the teacher's internal/messages/message.go stamps
// every inbound SMS with a google/uuid.
package message

import (
	"time"

	"github.com/google/uuid"
)

// Raw is an unprocessed line of text, the kind ingress.Service receives from
// NATS and the ParserService consumes.
type Raw struct {
	ID        uuid.UUID
	Body      string
	CreatedAt time.Time
}

// Type satisfies inbox.Message.
func (Raw) Type() string { return "raw" }

// NewRaw stamps a fresh Raw message with a correlation ID and creation time.
func NewRaw(body string) Raw {
	return Raw{ID: uuid.New(), Body: body, CreatedAt: time.Now()}
}

// Parsed is the ParserService's output, consumed by the LoggerService (and
// usable by any other downstream service named at registration time).
type Parsed struct {
	ID        uuid.UUID
	Body      string
	CreatedAt time.Time
}

// Type satisfies inbox.Message.
func (Parsed) Type() string { return "parsed" }
