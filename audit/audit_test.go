package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDisabledIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	require.Nil(t, d)

	// A nil dispatcher is still usable.
	d.Emit(context.Background(), Event{Type: TypeSessionCreated})
	d.Close()
	require.Zero(t, d.Dropped())
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64}, sink)
	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{Type: TypeSessionCreated})
	}
	d.Close()
	require.EqualValues(t, 50, sink.count.Load())

	// Emits after close are ignored.
	d.Emit(context.Background(), Event{Type: TypeSessionCreated})
	require.EqualValues(t, 50, sink.count.Load())
}

func TestDispatcherNeverBlocksWhenFull(t *testing.T) {
	sink := newGateSink()
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1}, sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Emit(context.Background(), Event{Type: TypeOnboardingBypass})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full buffer")
	}
	require.Greater(t, d.Dropped(), uint64(0))

	close(sink.gate)
	d.Close()
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{Type: TypeSessionForcedSync, SessionID: "s1"})
	ev := <-sink.Events()
	require.Equal(t, TypeSessionForcedSync, ev.Type)
	require.Equal(t, "s1", ev.SessionID)
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Type:      TypeSessionHijackSuspected,
		SubjectID: "u1",
		Reason:    "fingerprint_mismatch",
		Metadata:  map[string]string{"source": "cookie"},
	})
	sink.Emit(context.Background(), Event{Type: TypeSessionInvalidated})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	require.Equal(t, "SESSION_HIJACK_SUSPECTED", got["event_type"])
	require.Equal(t, "u1", got["subject_id"])
	require.Equal(t, "fingerprint_mismatch", got["reason"])
}

func TestZerologSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZerologSink(zerolog.New(&buf))
	sink.Emit(context.Background(), Event{
		Type:     TypeTenantPathMismatch,
		TenantID: "t1",
		Metadata: map[string]string{"path": "/t2/dashboard"},
	})

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, "warn", got["level"])
	require.Equal(t, "audit", got["component"])
	require.Equal(t, "TENANT_PATH_MISMATCH", got["event_type"])
	require.Equal(t, "t1", got["tenant_id"])
	require.Equal(t, map[string]any{"path": "/t2/dashboard"}, got["metadata"])
}
