package gateway

import (
	"context"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
)

type clientIPContextKey struct{}
type sessionContextKey struct{}

// SessionContext is what the gateway hands to application handlers: the
// validated session and, once a tenant is bound, its tenant context.
type SessionContext struct {
	Session *session.Record
	Tenant  *tenant.Context
}

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// audit events emitted while handling the request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

// WithSessionContext attaches sc to ctx. The tenant context is also
// attached on its own so tenant-scoped data code can use tenant.Require
// without depending on this package.
func WithSessionContext(ctx context.Context, sc SessionContext) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey{}, sc)
	if sc.Tenant != nil {
		ctx = tenant.WithContext(ctx, sc.Tenant)
	}
	return ctx
}

// SessionContextFromContext returns the SessionContext attached by the
// gateway middleware.
func SessionContextFromContext(ctx context.Context) (SessionContext, bool) {
	if ctx == nil {
		return SessionContext{}, false
	}
	sc, ok := ctx.Value(sessionContextKey{}).(SessionContext)
	return sc, ok && sc.Session != nil
}
