package onboarding

import (
	"errors"
	"fmt"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
)

// ErrStepInvalid is returned for any transition other than a no-op or a
// single step forward.
var ErrStepInvalid = errors.New("onboarding step invalid")

// ErrTenantConflict is returned when binding a tenant to a record that is
// already bound to a different one.
var ErrTenantConflict = errors.New("session already bound to another tenant")

// Steps lists the states a subject passes through, in order.
var Steps = []session.OnboardingState{
	session.StateNotStarted,
	session.StateBusinessInfo,
	session.StateSubscription,
	session.StatePayment,
	session.StateSetup,
	session.StateComplete,
}

// Advance moves rec to step. Re-submitting the current step is a no-op;
// only the immediate successor is otherwise accepted. COMPLETE requires a
// bound tenant.
func Advance(rec session.Record, step session.OnboardingState) (session.Record, error) {
	if !step.Valid() {
		return rec, fmt.Errorf("%w: %s", ErrStepInvalid, step)
	}
	cur := rec.OnboardingState
	if step == cur {
		return rec, nil
	}
	if cur == session.StateComplete || step != cur.Next() {
		return rec, fmt.Errorf("%w: %s -> %s", ErrStepInvalid, cur, step)
	}
	if step == session.StateComplete && !rec.HasTenant() {
		return rec, tenant.ErrTenantRequired
	}
	rec.OnboardingState = step
	return rec, nil
}

// BindTenant attaches tenantID to rec. Binding the same id again is a no-op.
func BindTenant(rec session.Record, tenantID string) (session.Record, error) {
	if tenantID == "" {
		return rec, tenant.ErrTenantRequired
	}
	if rec.TenantID != "" && rec.TenantID != tenantID {
		return rec, ErrTenantConflict
	}
	rec.TenantID = tenantID
	return rec, nil
}

// ForceComplete jumps rec to COMPLETE regardless of the current step. It is
// an administrative override and still requires a tenant.
func ForceComplete(rec session.Record) (session.Record, error) {
	if !rec.HasTenant() {
		return rec, tenant.ErrTenantRequired
	}
	rec.OnboardingState = session.StateComplete
	return rec, nil
}

// Reset returns rec to NOT_STARTED and unbinds its tenant.
func Reset(rec session.Record) session.Record {
	rec.OnboardingState = session.StateNotStarted
	rec.TenantID = ""
	return rec
}
