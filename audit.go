package authcore

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	auditEventLoginSuccess     = "auth.login.success"
	auditEventLoginFailure     = "auth.login.failure"
	auditEventLoginRateLimited = "auth.login.rate_limited"
	auditEventLoginLocked      = "auth.login.locked"
	auditEventRefreshSuccess   = "auth.refresh.success"
	auditEventRefreshRejected  = "auth.refresh.rejected"
	auditEventLogout           = "auth.logout"
	auditEventLogoutAll        = "auth.logout.all"
)

// AuditEvent is a single security-relevant occurrence. Events are delivered
// asynchronously; a slow or failing sink never blocks the request path.
type AuditEvent struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	EventType   string            `json:"event_type"`
	PrincipalID string            `json:"principal_id,omitempty"`
	Username    string            `json:"username,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Success     bool              `json:"success"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives audit events. Emit must never panic and must not
// return errors to the dispatcher; failures are the sink's own problem.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit implements [AuditSink].
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink forwards events to a Go channel for in-process consumers.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

// Emit implements [AuditSink].
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink appends one JSON line per event to an [io.Writer].
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

// Emit implements [AuditSink].
func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

func newAuditEvent(eventType string, success bool) AuditEvent {
	return AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Success:   success,
	}
}
