package gateway

import (
	"context"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// auditEmitter routes component-emitted events through the engine so they
// share the dispatcher and the request's client IP.
type auditEmitter struct {
	e *Engine
}

func (a auditEmitter) Emit(ctx context.Context, event audit.Event) {
	a.e.dispatch(ctx, event)
}

func (e *Engine) dispatch(ctx context.Context, event audit.Event) {
	if e == nil || e.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if ip := clientIPFromContext(ctx); ip != "" {
		event.IP = ip
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitAudit(ctx context.Context, typ audit.Type, rec *session.Record, reason string, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}
	event := audit.Event{
		Type:     typ,
		Reason:   reason,
		Metadata: metadata,
	}
	if rec != nil {
		event.SubjectID = rec.SubjectID
		event.TenantID = rec.TenantID
		event.SessionID = rec.ID
	}
	e.dispatch(ctx, event)
}
