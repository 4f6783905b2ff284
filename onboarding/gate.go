package onboarding

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/google/uuid"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonPublic               Reason = "public"
	ReasonAnonymous            Reason = "anonymous"
	ReasonTenantAccess         Reason = "tenant_access"
	ReasonOnboardingStep       Reason = "onboarding_step"
	ReasonStepNotReachable     Reason = "step_not_reachable"
	ReasonOnboardingComplete   Reason = "onboarding_complete"
	ReasonOnboardingIncomplete Reason = "onboarding_incomplete"
	ReasonTenantRequired       Reason = "tenant_required"
	ReasonTenantPathMismatch   Reason = "tenant_path_mismatch"
)

// Decision is the outcome of Admit. When Allow is false RedirectTo is set.
// Bypass marks decisions that denied an attempt to skip onboarding.
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     Reason
	Bypass     bool
}

// Routes maps onboarding states and the application to URL paths.
type Routes struct {
	// Steps holds one path per state from BUSINESS_INFO to SETUP.
	Steps map[session.OnboardingState]string

	Dashboard string
	Login     string

	// Public lists path prefixes that need no session.
	Public []string

	// TenantPathPrefix enables /{tenantId}/... application paths. A path
	// whose first segment is a tenant id other than the session's is
	// redirected to the session's own dashboard.
	TenantPathPrefix bool
}

// DefaultRoutes returns the route table used by the bundled gateway.
func DefaultRoutes() Routes {
	return Routes{
		Steps: map[session.OnboardingState]string{
			session.StateBusinessInfo: "/onboarding/business-info",
			session.StateSubscription: "/onboarding/subscription",
			session.StatePayment:      "/onboarding/payment",
			session.StateSetup:        "/onboarding/setup",
		},
		Dashboard: "/dashboard",
		Login:     "/auth/signin",
		Public:    []string{"/auth", "/static", "/healthz", "/metrics"},
	}
}

// Validate checks that every step has a distinct absolute path.
func (r Routes) Validate() error {
	seen := make(map[string]session.OnboardingState)
	for _, st := range Steps[1 : len(Steps)-1] {
		p, ok := r.Steps[st]
		if !ok || p == "" {
			return fmt.Errorf("onboarding: missing path for step %s", st)
		}
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("onboarding: step path %q must be absolute", p)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("onboarding: steps %s and %s share path %q", other, st, p)
		}
		seen[p] = st
	}
	if !strings.HasPrefix(r.Dashboard, "/") {
		return errors.New("onboarding: dashboard path must be absolute")
	}
	if !strings.HasPrefix(r.Login, "/") {
		return errors.New("onboarding: login path must be absolute")
	}
	for _, pub := range r.Public {
		if cleanPath(pub) == "/" {
			return errors.New("onboarding: public prefix must not be the root path")
		}
	}
	if _, clash := seen[r.Dashboard]; clash {
		return errors.New("onboarding: dashboard path collides with a step path")
	}
	return nil
}

type stepRoute struct {
	path  string
	state session.OnboardingState
}

// Gate decides whether a session may reach a resource. It is a pure
// function of the record and the path.
type Gate struct {
	routes Routes
	steps  []stepRoute
}

func NewGate(routes Routes) (*Gate, error) {
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	g := &Gate{routes: routes}
	for st, p := range routes.Steps {
		g.steps = append(g.steps, stepRoute{path: cleanPath(p), state: st})
	}
	// Longest prefix first.
	sort.Slice(g.steps, func(i, j int) bool { return len(g.steps[i].path) > len(g.steps[j].path) })
	return g, nil
}

// Routes returns the gate's route table.
func (g *Gate) Routes() Routes { return g.routes }

// StepPath returns the path for st. NOT_STARTED maps to BUSINESS_INFO and
// COMPLETE maps to the dashboard.
func (g *Gate) StepPath(rec *session.Record, st session.OnboardingState) string {
	switch st {
	case session.StateNotStarted:
		return g.routes.Steps[session.StateBusinessInfo]
	case session.StateComplete:
		return g.DashboardPath(rec)
	}
	return g.routes.Steps[st]
}

// DashboardPath returns the dashboard for rec's tenant.
func (g *Gate) DashboardPath(rec *session.Record) string {
	if g.routes.TenantPathPrefix && rec.HasTenant() {
		return "/" + rec.TenantID + g.routes.Dashboard
	}
	return g.routes.Dashboard
}

// Landing returns where a freshly authenticated session should go.
func (g *Gate) Landing(rec *session.Record) string {
	if rec.OnboardingState == session.StateComplete && rec.HasTenant() {
		return g.DashboardPath(rec)
	}
	return g.StepPath(rec, effectiveStep(rec))
}

// Admit classifies resource and decides access for rec, which is nil for
// anonymous requests. Every redirect target is itself admitted for rec.
func (g *Gate) Admit(rec *session.Record, resource string) Decision {
	p := cleanPath(resource)

	if g.isPublic(p) {
		return Decision{Allow: true, Reason: ReasonPublic}
	}
	if rec == nil {
		return Decision{RedirectTo: g.routes.Login, Reason: ReasonAnonymous}
	}

	current := effectiveStep(rec)

	if step, ok := g.stepFor(p); ok {
		if rec.OnboardingState == session.StateComplete && rec.HasTenant() {
			return Decision{RedirectTo: g.DashboardPath(rec), Reason: ReasonOnboardingComplete}
		}
		if step <= current {
			return Decision{Allow: true, Reason: ReasonOnboardingStep}
		}
		return Decision{RedirectTo: g.StepPath(rec, current), Reason: ReasonStepNotReachable, Bypass: true}
	}

	// Everything else is tenant scoped.
	if !rec.HasTenant() {
		return Decision{RedirectTo: g.routes.Steps[session.StateBusinessInfo], Reason: ReasonTenantRequired}
	}
	if rec.OnboardingState != session.StateComplete {
		return Decision{RedirectTo: g.StepPath(rec, current), Reason: ReasonOnboardingIncomplete, Bypass: true}
	}
	if g.routes.TenantPathPrefix {
		if seg := firstSegment(p); isTenantID(seg) && seg != rec.TenantID {
			return Decision{RedirectTo: g.DashboardPath(rec), Reason: ReasonTenantPathMismatch, Bypass: true}
		}
	}
	return Decision{Allow: true, Reason: ReasonTenantAccess}
}

// effectiveStep is the furthest step rec may see. A COMPLETE record with no
// tenant is inconsistent and is sent back to the first step.
func effectiveStep(rec *session.Record) session.OnboardingState {
	switch {
	case rec.OnboardingState == session.StateNotStarted:
		return session.StateBusinessInfo
	case rec.OnboardingState == session.StateComplete && !rec.HasTenant():
		return session.StateBusinessInfo
	}
	return rec.OnboardingState
}

func (g *Gate) isPublic(p string) bool {
	if hasPathPrefix(p, cleanPath(g.routes.Login)) {
		return true
	}
	for _, pub := range g.routes.Public {
		if hasPathPrefix(p, cleanPath(pub)) {
			return true
		}
	}
	return false
}

func (g *Gate) stepFor(p string) (session.OnboardingState, bool) {
	for _, s := range g.steps {
		if hasPathPrefix(p, s.path) {
			return s.state, true
		}
	}
	return 0, false
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func hasPathPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

func isTenantID(seg string) bool {
	_, err := uuid.Parse(seg)
	return err == nil && len(seg) == 36
}
