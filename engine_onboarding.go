package gateway

import (
	"context"
	"strings"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	internalflows "github.com/KuolDimDeng/Dott-Project-sub054/internal/flows"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// AdvanceOnboarding moves sessionID to step. Re-submitting the current step
// is a no-op. Any other step than the immediate successor is rejected with
// ErrOnboardingStepInvalid; COMPLETE additionally requires a bound tenant
// (ErrTenantRequired).
//
// The stored session changes immediately; the client's cookie catches up
// on its next request through forced sync.
func (e *Engine) AdvanceOnboarding(ctx context.Context, sessionID string, step session.OnboardingState, opts ...AdvanceOption) (*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	var o advanceOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	res := internalflows.RunAdvance(ctx, sessionID, step, o.tenantID, e.flows.Onboarding)
	if res.Failure != internalflows.OnboardingFailureNone {
		if res.Failure == internalflows.OnboardingFailureStep || res.Failure == internalflows.OnboardingFailureTenant {
			e.metricInc(MetricOnboardingRejected)
			e.logger.Info().
				Err(res.Err).
				Str("session_id", sessionID).
				Str("current_state", res.Previous.String()).
				Str("requested_state", step.String()).
				Msg("onboarding transition rejected")
		}
		return nil, res.Err
	}
	if res.Changed {
		e.metricInc(MetricOnboardingAdvanced)
		e.logger.Debug().
			Str("session_id", sessionID).
			Str("from", res.Previous.String()).
			Str("to", res.Record.OnboardingState.String()).
			Msg("onboarding advanced")
	}
	return res.Record, nil
}

// ForceCompleteOnboarding is the administrative override that moves
// sessionID straight to COMPLETE. The session must already be bound to a
// tenant; forced completion never creates the tenant-less COMPLETE state.
// actor identifies the operator and is recorded in the audit trail.
func (e *Engine) ForceCompleteOnboarding(ctx context.Context, sessionID, actor string) (*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(actor) == "" {
		return nil, ErrNotAuthorized
	}
	res := internalflows.RunForceComplete(ctx, sessionID, actor, e.flows.Onboarding)
	if res.Failure != internalflows.OnboardingFailureNone {
		return nil, res.Err
	}
	e.logger.Warn().Str("session_id", sessionID).Str("actor", actor).Msg("onboarding force-completed")
	return res.Record, nil
}

// ResetOnboarding returns sessionID to NOT_STARTED and unbinds its tenant.
// It is the only way to move onboarding backwards.
func (e *Engine) ResetOnboarding(ctx context.Context, sessionID, actor string) (*session.Record, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(actor) == "" {
		return nil, ErrNotAuthorized
	}
	res := internalflows.RunReset(ctx, sessionID, actor, e.flows.Onboarding)
	if res.Failure != internalflows.OnboardingFailureNone {
		return nil, res.Err
	}
	e.logger.Warn().Str("session_id", sessionID).Str("actor", actor).Msg("onboarding reset")
	return res.Record, nil
}

// Admit decides whether rec may reach path. rec is nil for anonymous
// requests. Redirects that deny an attempt to skip onboarding are audited.
func (e *Engine) Admit(ctx context.Context, rec *session.Record, path string) onboarding.Decision {
	if e == nil || e.gate == nil {
		return onboarding.Decision{Reason: onboarding.ReasonAnonymous}
	}
	d := e.gate.Admit(rec, path)
	if d.Allow {
		return d
	}
	e.metricInc(MetricOnboardingRedirect)
	if d.Bypass {
		e.metricInc(MetricOnboardingBypass)
		typ := audit.TypeOnboardingBypass
		if d.Reason == onboarding.ReasonTenantPathMismatch {
			typ = audit.TypeTenantPathMismatch
		}
		e.emitAudit(ctx, typ, rec, string(d.Reason), map[string]string{
			"path":        path,
			"redirect_to": d.RedirectTo,
		})
	}
	return d
}

// Landing returns where rec should be sent after sign-in.
func (e *Engine) Landing(rec *session.Record) string {
	if e == nil || e.gate == nil {
		return "/"
	}
	return e.gate.Landing(rec)
}
