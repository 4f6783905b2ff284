package onboarding

import (
	"testing"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/stretchr/testify/require"
)

const testTenant = "8f14e45f-ceea-467e-a7b1-6c2b0d8a3f10"

func newTestGate(t *testing.T, prefixed bool) *Gate {
	t.Helper()
	routes := DefaultRoutes()
	routes.TenantPathPrefix = prefixed
	g, err := NewGate(routes)
	require.NoError(t, err)
	return g
}

func ptr(r session.Record) *session.Record { return &r }

func TestAdmitPublicAndAnonymous(t *testing.T) {
	g := newTestGate(t, false)

	d := g.Admit(nil, "/auth/signin")
	require.True(t, d.Allow)
	require.Equal(t, ReasonPublic, d.Reason)

	d = g.Admit(nil, "/static/app.js")
	require.True(t, d.Allow)

	d = g.Admit(nil, "/dashboard")
	require.False(t, d.Allow)
	require.Equal(t, "/auth/signin", d.RedirectTo)
	require.Equal(t, ReasonAnonymous, d.Reason)

	// Prefix match is segment aware.
	d = g.Admit(nil, "/authz/secret")
	require.False(t, d.Allow)
}

// A new user with no tenant asking for the dashboard goes to business info.
func TestAdmitFreshSessionToDashboard(t *testing.T) {
	g := newTestGate(t, false)
	d := g.Admit(ptr(newRecord(session.StateNotStarted, "")), "/dashboard")
	require.False(t, d.Allow)
	require.Equal(t, "/onboarding/business-info", d.RedirectTo)
	require.Equal(t, ReasonTenantRequired, d.Reason)

	d = g.Admit(ptr(newRecord(session.StateNotStarted, "")), "/onboarding/business-info")
	require.True(t, d.Allow)
}

// A COMPLETE session with no tenant is still sent to business info.
func TestAdmitCompleteWithoutTenant(t *testing.T) {
	g := newTestGate(t, false)
	rec := ptr(newRecord(session.StateComplete, ""))

	d := g.Admit(rec, "/dashboard")
	require.False(t, d.Allow)
	require.Equal(t, "/onboarding/business-info", d.RedirectTo)

	d = g.Admit(rec, "/onboarding/setup")
	require.False(t, d.Allow)
	require.Equal(t, "/onboarding/business-info", d.RedirectTo)

	d = g.Admit(rec, "/onboarding/business-info")
	require.True(t, d.Allow)
}

func TestAdmitStepReachability(t *testing.T) {
	g := newTestGate(t, false)
	rec := ptr(newRecord(session.StatePayment, testTenant))

	for _, p := range []string{"/onboarding/business-info", "/onboarding/subscription", "/onboarding/payment", "/onboarding/payment/card"} {
		require.True(t, g.Admit(rec, p).Allow, p)
	}

	d := g.Admit(rec, "/onboarding/setup")
	require.False(t, d.Allow)
	require.Equal(t, "/onboarding/payment", d.RedirectTo)
	require.True(t, d.Bypass)

	d = g.Admit(rec, "/invoices")
	require.False(t, d.Allow)
	require.Equal(t, "/onboarding/payment", d.RedirectTo)
	require.Equal(t, ReasonOnboardingIncomplete, d.Reason)
	require.True(t, d.Bypass)
}

func TestAdmitComplete(t *testing.T) {
	g := newTestGate(t, false)
	rec := ptr(newRecord(session.StateComplete, testTenant))

	require.True(t, g.Admit(rec, "/dashboard").Allow)
	require.True(t, g.Admit(rec, "/invoices/42?tab=items").Allow)

	d := g.Admit(rec, "/onboarding/subscription")
	require.False(t, d.Allow)
	require.Equal(t, "/dashboard", d.RedirectTo)
	require.Equal(t, ReasonOnboardingComplete, d.Reason)
}

func TestAdmitCleansPath(t *testing.T) {
	g := newTestGate(t, false)
	rec := ptr(newRecord(session.StateBusinessInfo, ""))
	d := g.Admit(rec, "/onboarding/business-info/../../dashboard")
	require.False(t, d.Allow)
	require.Equal(t, ReasonTenantRequired, d.Reason)
}

func TestAdmitTenantPathMismatch(t *testing.T) {
	g := newTestGate(t, true)
	rec := ptr(newRecord(session.StateComplete, testTenant))

	require.True(t, g.Admit(rec, "/"+testTenant+"/dashboard").Allow)

	d := g.Admit(rec, "/0d9f5c1e-2b7a-4c1e-9f00-3a6b8c7d2e11/dashboard")
	require.False(t, d.Allow)
	require.Equal(t, "/"+testTenant+"/dashboard", d.RedirectTo)
	require.Equal(t, ReasonTenantPathMismatch, d.Reason)

	// Non tenant-looking first segments are ordinary resources.
	require.True(t, g.Admit(rec, "/settings/profile").Allow)
}

// No tenant resource is ever admitted without a tenant, and every redirect
// target is itself admitted.
func TestAdmitInvariants(t *testing.T) {
	for _, prefixed := range []bool{false, true} {
		g := newTestGate(t, prefixed)
		paths := []string{
			"/", "/dashboard", "/invoices", "/onboarding/business-info", "/onboarding/subscription",
			"/onboarding/payment", "/onboarding/setup", "/" + testTenant + "/dashboard",
			"/0d9f5c1e-2b7a-4c1e-9f00-3a6b8c7d2e11/reports", "/auth/signin",
		}
		for _, st := range Steps {
			for _, tid := range []string{"", testTenant} {
				rec := ptr(newRecord(st, tid))
				for _, p := range paths {
					d := g.Admit(rec, p)
					if _, isStep := g.stepFor(cleanPath(p)); !isStep && !g.isPublic(cleanPath(p)) && tid == "" {
						require.False(t, d.Allow, "state %s path %s", st, p)
					}
					if !d.Allow {
						next := g.Admit(rec, d.RedirectTo)
						require.True(t, next.Allow, "state %s tenant %q path %s -> %s", st, tid, p, d.RedirectTo)
					}
				}
			}
		}
	}
}

func TestLanding(t *testing.T) {
	g := newTestGate(t, false)
	require.Equal(t, "/onboarding/business-info", g.Landing(ptr(newRecord(session.StateNotStarted, ""))))
	require.Equal(t, "/onboarding/setup", g.Landing(ptr(newRecord(session.StateSetup, testTenant))))
	require.Equal(t, "/dashboard", g.Landing(ptr(newRecord(session.StateComplete, testTenant))))
	require.Equal(t, "/onboarding/business-info", g.Landing(ptr(newRecord(session.StateComplete, ""))))
}

func TestRoutesValidate(t *testing.T) {
	r := DefaultRoutes()
	require.NoError(t, r.Validate())

	missing := DefaultRoutes()
	delete(missing.Steps, session.StatePayment)
	require.Error(t, missing.Validate())

	dup := DefaultRoutes()
	dup.Steps[session.StateSetup] = dup.Steps[session.StatePayment]
	require.Error(t, dup.Validate())

	root := DefaultRoutes()
	root.Public = append(root.Public, "/")
	require.Error(t, root.Validate())

	_, err := NewGate(Routes{})
	require.Error(t, err)
}
