package onboarding

import (
	"math/rand"
	"testing"
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/stretchr/testify/require"
)

func newRecord(state session.OnboardingState, tenantID string) session.Record {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return session.Record{
		ID:              "s1",
		SubjectID:       "u1",
		TenantID:        tenantID,
		OnboardingState: state,
		IssuedAt:        now,
		ExpiresAt:       now.Add(time.Hour),
	}
}

func TestAdvanceForwardOneStep(t *testing.T) {
	rec := newRecord(session.StateNotStarted, "")
	var err error
	for _, st := range []session.OnboardingState{
		session.StateBusinessInfo, session.StateSubscription, session.StatePayment, session.StateSetup,
	} {
		rec, err = Advance(rec, st)
		require.NoError(t, err)
		require.Equal(t, st, rec.OnboardingState)
	}

	_, err = Advance(rec, session.StateComplete)
	require.ErrorIs(t, err, tenant.ErrTenantRequired)

	rec, err = BindTenant(rec, "t1")
	require.NoError(t, err)
	rec, err = Advance(rec, session.StateComplete)
	require.NoError(t, err)
	require.Equal(t, session.StateComplete, rec.OnboardingState)
}

// Re-submitting the current step is idempotent.
func TestAdvanceResubmitIsNoOp(t *testing.T) {
	rec := newRecord(session.StateSubscription, "t1")
	got, err := Advance(rec, session.StateSubscription)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	done := newRecord(session.StateComplete, "t1")
	got, err = Advance(done, session.StateComplete)
	require.NoError(t, err)
	require.Equal(t, done, got)
}

func TestAdvanceRejectsSkipsAndRegressions(t *testing.T) {
	rec := newRecord(session.StateSubscription, "t1")

	_, err := Advance(rec, session.StateSetup)
	require.ErrorIs(t, err, ErrStepInvalid)

	_, err = Advance(rec, session.StateBusinessInfo)
	require.ErrorIs(t, err, ErrStepInvalid)

	_, err = Advance(rec, session.StateComplete+1)
	require.ErrorIs(t, err, ErrStepInvalid)

	_, err = Advance(newRecord(session.StateComplete, "t1"), session.StateSetup)
	require.ErrorIs(t, err, ErrStepInvalid)
}

// Any sequence of Advance calls leaves the state non-decreasing, and every
// accepted change is exactly one step.
func TestAdvanceMonotonicProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 500; run++ {
		tenantID := ""
		if rng.Intn(2) == 0 {
			tenantID = "t1"
		}
		rec := newRecord(session.StateNotStarted, tenantID)
		for i := 0; i < 20; i++ {
			step := session.OnboardingState(rng.Intn(int(session.StateComplete) + 2))
			before := rec.OnboardingState
			next, err := Advance(rec, step)
			if err != nil {
				require.Equal(t, rec, next)
				continue
			}
			require.GreaterOrEqual(t, next.OnboardingState, before)
			require.LessOrEqual(t, next.OnboardingState-before, session.OnboardingState(1))
			if next.OnboardingState == session.StateComplete {
				require.True(t, next.HasTenant())
			}
			rec = next
		}
	}
}

func TestBindTenant(t *testing.T) {
	rec := newRecord(session.StateBusinessInfo, "")

	_, err := BindTenant(rec, "")
	require.ErrorIs(t, err, tenant.ErrTenantRequired)

	rec, err = BindTenant(rec, "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", rec.TenantID)

	rec, err = BindTenant(rec, "t1")
	require.NoError(t, err)

	_, err = BindTenant(rec, "t2")
	require.ErrorIs(t, err, ErrTenantConflict)
}

func TestForceCompleteAndReset(t *testing.T) {
	_, err := ForceComplete(newRecord(session.StatePayment, ""))
	require.ErrorIs(t, err, tenant.ErrTenantRequired)

	rec, err := ForceComplete(newRecord(session.StateBusinessInfo, "t1"))
	require.NoError(t, err)
	require.Equal(t, session.StateComplete, rec.OnboardingState)

	rec = Reset(rec)
	require.Equal(t, session.StateNotStarted, rec.OnboardingState)
	require.False(t, rec.HasTenant())
}
