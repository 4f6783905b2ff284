package flows

import (
	"context"
	"errors"
	"fmt"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// OnboardingFailureKind classifies onboarding failures for root-level
// mapping.
type OnboardingFailureKind int

const (
	OnboardingFailureNone OnboardingFailureKind = iota
	OnboardingFailureNotFound
	OnboardingFailureStore
	OnboardingFailureStep
	OnboardingFailureTenant
)

// OnboardingResult carries the record after a transition.
//
// Changed is false for idempotent retries; nothing was written.
type OnboardingResult struct {
	Failure  OnboardingFailureKind
	Err      error
	Record   *session.Record
	Previous session.OnboardingState
	Changed  bool
}

type OnboardingSessionStore interface {
	Get(ctx context.Context, id string) (*session.Record, error)
	Save(ctx context.Context, rec *session.Record) error
}

// OnboardingDeps captures onboarding transition dependencies.
type OnboardingDeps struct {
	SessionStore OnboardingSessionStore
	EmitAudit    EmitAuditFunc
}

// RunAdvance moves the stored session to step, binding tenantID first when
// given. Tenants bind from BUSINESS_INFO onward.
//
// Two concurrent advances for one session race; the store is
// last-writer-wins.
func RunAdvance(ctx context.Context, sessionID string, step session.OnboardingState, tenantID string, deps OnboardingDeps) OnboardingResult {
	rec, res := loadForOnboarding(ctx, sessionID, deps)
	if rec == nil {
		return res
	}

	next := *rec
	if tenantID != "" {
		if step < session.StateBusinessInfo {
			return stepFailure(rec, fmt.Errorf("%w: tenant cannot be bound before %s", onboarding.ErrStepInvalid, session.StateBusinessInfo))
		}
		bound, err := onboarding.BindTenant(next, tenantID)
		if err != nil {
			return OnboardingResult{Failure: OnboardingFailureTenant, Err: err, Record: rec, Previous: rec.OnboardingState}
		}
		next = bound
	}

	advanced, err := onboarding.Advance(next, step)
	if err != nil {
		return stepFailure(rec, err)
	}
	return saveTransition(ctx, rec, advanced, deps)
}

// RunForceComplete is the administrative override to COMPLETE. It still
// requires a bound tenant.
func RunForceComplete(ctx context.Context, sessionID, actor string, deps OnboardingDeps) OnboardingResult {
	rec, res := loadForOnboarding(ctx, sessionID, deps)
	if rec == nil {
		return res
	}
	next, err := onboarding.ForceComplete(*rec)
	if err != nil {
		return stepFailure(rec, err)
	}
	out := saveTransition(ctx, rec, next, deps)
	if out.Failure == OnboardingFailureNone {
		deps.EmitAudit(ctx, audit.TypeOnboardingForced, out.Record, "admin_override", map[string]string{
			"actor":          actor,
			"previous_state": rec.OnboardingState.String(),
		})
	}
	return out
}

// RunReset returns the stored session to NOT_STARTED and unbinds its tenant.
func RunReset(ctx context.Context, sessionID, actor string, deps OnboardingDeps) OnboardingResult {
	rec, res := loadForOnboarding(ctx, sessionID, deps)
	if rec == nil {
		return res
	}
	out := saveTransition(ctx, rec, onboarding.Reset(*rec), deps)
	if out.Failure == OnboardingFailureNone {
		deps.EmitAudit(ctx, audit.TypeOnboardingReset, out.Record, "admin_reset", map[string]string{
			"actor":           actor,
			"previous_state":  rec.OnboardingState.String(),
			"previous_tenant": rec.TenantID,
		})
	}
	return out
}

func loadForOnboarding(ctx context.Context, sessionID string, deps OnboardingDeps) (*session.Record, OnboardingResult) {
	rec, err := deps.SessionStore.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return nil, OnboardingResult{Failure: OnboardingFailureNotFound, Err: fmt.Errorf("%w: %w", session.ErrInvalidSession, err)}
	}
	if err != nil {
		return nil, OnboardingResult{Failure: OnboardingFailureStore, Err: err}
	}
	return rec, OnboardingResult{}
}

func stepFailure(rec *session.Record, err error) OnboardingResult {
	kind := OnboardingFailureStep
	if !errors.Is(err, onboarding.ErrStepInvalid) {
		kind = OnboardingFailureTenant
	}
	return OnboardingResult{Failure: kind, Err: err, Record: rec, Previous: rec.OnboardingState}
}

func saveTransition(ctx context.Context, prev *session.Record, next session.Record, deps OnboardingDeps) OnboardingResult {
	res := OnboardingResult{Previous: prev.OnboardingState, Record: &next}
	if next.SyncEqual(prev) {
		res.Record = prev
		return res
	}
	next.Version = session.CurrentSchemaVersion
	if err := deps.SessionStore.Save(ctx, &next); err != nil {
		return OnboardingResult{Failure: OnboardingFailureStore, Err: err, Record: prev, Previous: prev.OnboardingState}
	}
	res.Changed = true
	return res
}
