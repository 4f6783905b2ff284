package gateway

import (
	"errors"

	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
)

// Sentinels shared with the component packages carry the same value, so
// errors.Is matches regardless of which package a caller imports.
var (
	// ErrInvalidSession covers malformed, expired, tampered and revoked
	// sessions. Callers treat it exactly like no session at all.
	ErrInvalidSession = session.ErrInvalidSession
	// ErrSessionNotFound is returned when the request presents no session
	// credential.
	ErrSessionNotFound = cookie.ErrNoCredential
	// ErrFingerprintMismatch means the session was presented by a different
	// client than the one it was issued to. The session has already been
	// invalidated when this is returned.
	ErrFingerprintMismatch = fingerprint.ErrMismatch
	// ErrTenantRequired is returned for a valid session with no tenant bound
	// yet. It routes to onboarding and is never shown to the user.
	ErrTenantRequired = tenant.ErrTenantRequired
	// ErrTenantMembershipNotFound means the session names a tenant the
	// subject has no membership in. It fails closed.
	ErrTenantMembershipNotFound = tenant.ErrMembershipNotFound
	// ErrMembershipUnavailable is returned when the membership backend
	// cannot be reached.
	ErrMembershipUnavailable = tenant.ErrMembershipUnavailable
	// ErrOnboardingStepInvalid rejects out-of-order advancement. State is
	// unchanged.
	ErrOnboardingStepInvalid = onboarding.ErrStepInvalid
	// ErrTenantConflict rejects binding a second tenant to a session.
	ErrTenantConflict = onboarding.ErrTenantConflict
	// ErrResponseCommitted is fatal for the request: cookies could not be
	// written, so the caller must not proceed as authenticated.
	ErrResponseCommitted = cookie.ErrResponseCommitted
	// ErrStoreUnavailable is returned when the session store cannot be
	// reached. Resolution fails closed.
	ErrStoreUnavailable = session.ErrStoreUnavailable
)

var (
	// ErrEngineNotReady is returned by methods called on a nil or unbuilt
	// Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNotAuthorized rejects privileged overrides without an actor.
	ErrNotAuthorized = errors.New("privileged operation requires an actor")
	// ErrInvalidClaims rejects CreateSession input that cannot form a valid
	// record.
	ErrInvalidClaims = errors.New("invalid session claims")
)

// IsAnonymous reports whether err means the request must be treated as
// carrying no session.
func IsAnonymous(err error) bool {
	return errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrFingerprintMismatch)
}
