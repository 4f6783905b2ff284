package flows

import (
	"context"
	"errors"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

type InvalidateSessionStore interface {
	Get(ctx context.Context, id string) (*session.Record, error)
	Delete(ctx context.Context, id string) error
	DeleteSubject(ctx context.Context, subjectID string) (int, error)
}

// InvalidateDeps captures revocation dependencies.
type InvalidateDeps struct {
	SessionStore InvalidateSessionStore
	EmitAudit    EmitAuditFunc
}

// RunInvalidate deletes one session. Invalidating an unknown session is not
// an error; Deleted reports whether anything was removed.
func RunInvalidate(ctx context.Context, sessionID, reason string, deps InvalidateDeps) (deleted bool, err error) {
	rec, err := deps.SessionStore.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := deps.SessionStore.Delete(ctx, sessionID); err != nil {
		return false, err
	}
	deps.EmitAudit(ctx, audit.TypeSessionInvalidated, rec, reason, nil)
	return true, nil
}

// RunInvalidateSubject deletes every session of subjectID and returns how
// many were removed.
func RunInvalidateSubject(ctx context.Context, subjectID, reason string, deps InvalidateDeps) (int, error) {
	n, err := deps.SessionStore.DeleteSubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		deps.EmitAudit(ctx, audit.TypeSessionInvalidated, &session.Record{SubjectID: subjectID}, reason, map[string]string{
			"scope": "subject",
		})
	}
	return n, nil
}
