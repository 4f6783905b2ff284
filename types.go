package gateway

import (
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// Claims are the caller-asserted attributes of a new session. The gateway
// does not authenticate the subject; the login handler has already done so.
type Claims struct {
	Email       string
	DisplayName string
	// TenantID may be empty for accounts that have not finished onboarding.
	TenantID        string
	OnboardingState session.OnboardingState
}

// SessionResult is returned by [Engine.CreateSessionWithResult].
type SessionResult struct {
	// Token is the sealed session value written to the session cookie.
	Token   string
	Session *session.Record
}

// AdvanceOption tunes [Engine.AdvanceOnboarding].
type AdvanceOption func(*advanceOptions)

type advanceOptions struct {
	tenantID string
}

// WithTenant binds tenantID to the session as part of the transition.
// Binding the already-bound tenant again is a no-op; a different tenant is
// rejected with ErrTenantConflict.
func WithTenant(tenantID string) AdvanceOption {
	return func(o *advanceOptions) { o.tenantID = tenantID }
}
