package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Type names a security-relevant event.
type Type string

const (
	TypeSessionCreated         Type = "SESSION_CREATED"
	TypeSessionInvalidated     Type = "SESSION_INVALIDATED"
	TypeSessionHijackSuspected Type = "SESSION_HIJACK_SUSPECTED"
	TypeSessionForcedSync      Type = "SESSION_FORCED_SYNC"
	TypeLegacySessionReissued  Type = "SESSION_LEGACY_REISSUED"
	TypeBootstrapRejected      Type = "BOOTSTRAP_REJECTED"
	TypeOnboardingBypass       Type = "ONBOARDING_BYPASS"
	TypeOnboardingForced       Type = "ONBOARDING_FORCE_COMPLETE"
	TypeOnboardingReset        Type = "ONBOARDING_RESET"
	TypeTenantMembershipAbsent Type = "TENANT_MEMBERSHIP_MISSING"
	TypeTenantPathMismatch     Type = "TENANT_PATH_MISMATCH"
)

// Event is the canonical audit record.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      Type              `json:"event_type"`
	SubjectID string            `json:"subject_id,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// Emitter is what producers depend on. *Dispatcher and every Sink satisfy it.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
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

// ZerologSink writes each event as a structured log line at warn level.
type ZerologSink struct {
	logger zerolog.Logger
}

func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return &ZerologSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *ZerologSink) Emit(_ context.Context, event Event) {
	ev := s.logger.Warn().
		Time("event_time", event.Timestamp).
		Str("event_type", string(event.Type))
	if event.SubjectID != "" {
		ev = ev.Str("subject_id", event.SubjectID)
	}
	if event.TenantID != "" {
		ev = ev.Str("tenant_id", event.TenantID)
	}
	if event.SessionID != "" {
		ev = ev.Str("session_id", event.SessionID)
	}
	if event.IP != "" {
		ev = ev.Str("ip", event.IP)
	}
	if event.Reason != "" {
		ev = ev.Str("reason", event.Reason)
	}
	if len(event.Metadata) > 0 {
		d := zerolog.Dict()
		for k, v := range event.Metadata {
			d = d.Str(k, v)
		}
		ev = ev.Dict("metadata", d)
	}
	ev.Msg("audit event")
}
