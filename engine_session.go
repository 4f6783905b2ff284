package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	internalflows "github.com/KuolDimDeng/Dott-Project-sub054/internal/flows"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
)

// GetSessionContext resolves the session and tenant context of r.
//
// It may write cookies on w: a re-issued session after refresh, forced
// sync, legacy migration or bootstrap redemption; a fingerprint salt; or
// cleared cookies after a failure. Callers must pass a w whose headers are
// not yet committed.
//
// Results:
//   - (rec, tc, nil): valid session bound to a tenant with membership.
//   - (rec, nil, ErrTenantRequired): valid session, onboarding pending.
//   - (nil, nil, err) with IsAnonymous(err): no usable session; cookies
//     were cleared. ErrFingerprintMismatch also revoked the session.
//   - (nil, nil, ErrTenantMembershipNotFound): hard failure, fail closed.
//   - (nil, nil, ErrStoreUnavailable or ErrResponseCommitted): the request
//     cannot be served as authenticated.
func (e *Engine) GetSessionContext(w http.ResponseWriter, r *http.Request) (*session.Record, *tenant.Context, error) {
	if !e.ready() {
		return nil, nil, ErrEngineNotReady
	}
	res := e.resolve(w, r, internalflows.ResolveOptions{})
	return res.Record, res.Tenant, res.Err
}

// RefreshSession extends the session on r by the configured TTL and
// re-issues its cookie. A session without a tenant is still refreshed.
func (e *Engine) RefreshSession(w http.ResponseWriter, r *http.Request) (*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := e.resolve(w, r, internalflows.ResolveOptions{ForceRefresh: true})
	switch res.Failure {
	case internalflows.ResolveFailureNone, internalflows.ResolveFailureTenantRequired:
		return res.Record, nil
	}
	return nil, res.Err
}

func (e *Engine) resolve(w http.ResponseWriter, r *http.Request, opts internalflows.ResolveOptions) internalflows.ResolveResult {
	start := e.now()
	res := internalflows.RunResolve(r.Context(), w, r, opts, e.flows.Resolve)
	e.recordResolve(res)
	e.metrics.Observe(MetricResolveLatency, e.now().Sub(start))
	return res
}

func (e *Engine) recordResolve(res internalflows.ResolveResult) {
	e.metricAdd(MetricDecodeFailure, res.DecodeFailures)
	e.metricAdd(MetricBootstrapRejected, res.BootstrapRejected)
	e.metricAdd(MetricSessionRevoked, res.Revoked)
	if res.BootstrapAccepted {
		e.metricInc(MetricBootstrapAccepted)
	}
	if res.Legacy && res.Reissued {
		e.metricInc(MetricLegacyReissued)
	}
	if res.ForcedSync {
		e.metricInc(MetricForcedSync)
	}
	if res.Refreshed {
		e.metricInc(MetricSessionRefreshed)
	}
	if res.Backfilled {
		e.metricInc(MetricFingerprintBackfill)
	}
	switch res.Fingerprint {
	case fingerprint.ReasonUnverifiable, fingerprint.ReasonError:
		e.metricInc(MetricFingerprintFailOpen)
	}

	switch res.Failure {
	case internalflows.ResolveFailureNone:
		e.metricInc(MetricSessionResolved)
	case internalflows.ResolveFailureTenantRequired:
		e.metricInc(MetricSessionResolved)
		e.metricInc(MetricTenantRequired)
	case internalflows.ResolveFailureFingerprint:
		e.metricInc(MetricFingerprintMismatch)
		e.metricInc(MetricSessionInvalidated)
		e.metricInc(MetricSessionAnonymous)
	case internalflows.ResolveFailureMembershipMissing:
		e.metricInc(MetricMembershipMissing)
	case internalflows.ResolveFailureStore:
		e.metricInc(MetricStoreUnavailable)
	case internalflows.ResolveFailureNoCredential,
		internalflows.ResolveFailureDecode,
		internalflows.ResolveFailureBootstrap,
		internalflows.ResolveFailureRevoked:
		e.metricInc(MetricSessionAnonymous)
	}
}

// CreateSession issues a new session for subjectID and returns its sealed
// token. When w is non-nil the session, status and salt cookies are written
// and the fingerprint is bound from r.
func (e *Engine) CreateSession(ctx context.Context, w http.ResponseWriter, r *http.Request, subjectID string, claims Claims) (string, error) {
	res, err := e.CreateSessionWithResult(ctx, w, r, subjectID, claims)
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

// CreateSessionWithResult is CreateSession returning the stored record as
// well, for callers that need the session id (for example to mint a
// bootstrap redirect).
func (e *Engine) CreateSessionWithResult(ctx context.Context, w http.ResponseWriter, r *http.Request, subjectID string, claims Claims) (*SessionResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	res := internalflows.RunCreate(ctx, w, r, internalflows.CreateInput{
		SubjectID:       subjectID,
		Email:           claims.Email,
		DisplayName:     claims.DisplayName,
		TenantID:        claims.TenantID,
		OnboardingState: claims.OnboardingState,
	}, e.flows.Create)

	switch res.Failure {
	case internalflows.CreateFailureNone:
	case internalflows.CreateFailureInput:
		return nil, errors.Join(ErrInvalidClaims, res.Err)
	default:
		return nil, res.Err
	}

	e.metricInc(MetricSessionCreated)
	e.logger.Info().
		Str("session_id", res.Record.ID).
		Str("subject_id", res.Record.SubjectID).
		Str("onboarding_state", res.Record.OnboardingState.String()).
		Msg("session created")
	return &SessionResult{Token: res.Token, Session: res.Record}, nil
}

// InvalidateSession revokes sessionID. Any cookie still carrying it is
// rejected on its next use. Unknown ids are not an error.
func (e *Engine) InvalidateSession(ctx context.Context, sessionID, reason string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	deleted, err := internalflows.RunInvalidate(ctx, sessionID, reason, e.flows.Invalidate)
	if err != nil {
		return err
	}
	if deleted {
		e.metricInc(MetricSessionInvalidated)
		e.logger.Info().Str("session_id", sessionID).Str("reason", reason).Msg("session invalidated")
	}
	return nil
}

// InvalidateSubject revokes every session of subjectID and returns how many
// were removed.
func (e *Engine) InvalidateSubject(ctx context.Context, subjectID, reason string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := internalflows.RunInvalidateSubject(ctx, subjectID, reason, e.flows.Invalidate)
	if err != nil {
		return 0, err
	}
	e.metricAdd(MetricSessionInvalidated, n)
	return n, nil
}

// Logout revokes the session carried by r, if any, and clears every gateway
// cookie.
func (e *Engine) Logout(w http.ResponseWriter, r *http.Request) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	for _, c := range e.cookies.Extract(r) {
		if c.Source == cookie.SourceBootstrap {
			continue
		}
		cred, err := e.cookies.Redeem(r.Context(), c)
		if err != nil || cred.Token == "" {
			continue
		}
		rec, err := e.codec.Decode(cred.Token)
		if err != nil {
			continue
		}
		if err := e.InvalidateSession(r.Context(), rec.ID, "logout"); err != nil {
			return err
		}
	}
	return e.ClearSession(w, r)
}

// ClearSession expires every gateway cookie on w without touching the
// store.
func (e *Engine) ClearSession(w http.ResponseWriter, r *http.Request) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return e.cookies.Clear(w, r)
}

// BootstrapRedirect appends a single use handoff token for sessionID to
// target. Use it when redirecting right after CreateSession, before the
// client can be relied on to present the new cookie.
func (e *Engine) BootstrapRedirect(target, sessionID string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}
	if e.bootstrap == nil {
		return target, nil
	}
	return e.bootstrap.RedirectURL(target, sessionID)
}
