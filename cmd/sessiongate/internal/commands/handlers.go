package commands

import (
	"encoding/json"
	"errors"
	"net/http"

	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/rs/zerolog/hlog"
)

type handlers struct {
	engine *gateway.Engine
}

type sessionView struct {
	SessionID       string                  `json:"session_id"`
	SubjectID       string                  `json:"subject_id"`
	Email           string                  `json:"email,omitempty"`
	DisplayName     string                  `json:"display_name,omitempty"`
	OnboardingState session.OnboardingState `json:"onboarding_state"`
	ExpiresAt       string                  `json:"expires_at"`
	Tenant          *tenantView             `json:"tenant,omitempty"`
	Next            string                  `json:"next"`
}

type tenantView struct {
	ID          string   `json:"id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) signin(w http.ResponseWriter, r *http.Request) {
	if sc, ok := gateway.SessionContextFromContext(r.Context()); ok {
		http.Redirect(w, r, h.engine.Landing(sc.Session), http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("sign in required\n"))
}

func (h *handlers) whoami(w http.ResponseWriter, r *http.Request) {
	sc, ok := gateway.SessionContextFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
		return
	}
	view := sessionView{
		SessionID:       sc.Session.ID,
		SubjectID:       sc.Session.SubjectID,
		Email:           sc.Session.Email,
		DisplayName:     sc.Session.DisplayName,
		OnboardingState: sc.Session.OnboardingState,
		ExpiresAt:       sc.Session.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		Next:            h.engine.Landing(sc.Session),
	}
	if sc.Tenant != nil {
		view.Tenant = &tenantView{
			ID:          sc.Tenant.TenantID(),
			Role:        string(sc.Tenant.Role()),
			Permissions: sc.Tenant.Permissions(),
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(w, r); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("logout failed")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, h.engine.Gate().Routes().Login, http.StatusSeeOther)
}

// devLogin signs in the subject named in the form without any credential
// check and hands the session over through a bootstrap redirect.
func (h *handlers) devLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	claims := gateway.Claims{
		Email:       r.PostForm.Get("email"),
		DisplayName: r.PostForm.Get("display_name"),
		TenantID:    r.PostForm.Get("tenant_id"),
	}
	if v := r.PostForm.Get("onboarding_state"); v != "" {
		st, err := session.ParseOnboardingState(v)
		if err != nil {
			http.Error(w, "bad onboarding state", http.StatusBadRequest)
			return
		}
		claims.OnboardingState = st
	}

	res, err := h.engine.CreateSessionWithResult(r.Context(), w, r, r.PostForm.Get("subject_id"), claims)
	switch {
	case errors.Is(err, gateway.ErrInvalidClaims), errors.Is(err, gateway.ErrTenantRequired):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("create session failed")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	target, err := h.engine.BootstrapRedirect(h.engine.Landing(res.Session), res.Session.ID)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("bootstrap redirect failed")
		target = h.engine.Landing(res.Session)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *handlers) onboardingStep(w http.ResponseWriter, r *http.Request) {
	sc, ok := gateway.SessionContextFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, h.engine.Gate().Routes().Login, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"onboarding_state": sc.Session.OnboardingState,
		"path":             r.URL.Path,
	})
}

// advance completes an onboarding step. The form names the target state in
// "step" and may bind "tenant_id".
func (h *handlers) advance(w http.ResponseWriter, r *http.Request) {
	sc, ok := gateway.SessionContextFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, h.engine.Gate().Routes().Login, http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	step, err := session.ParseOnboardingState(r.PostForm.Get("step"))
	if err != nil {
		http.Error(w, "bad onboarding step", http.StatusBadRequest)
		return
	}

	var opts []gateway.AdvanceOption
	if tid := r.PostForm.Get("tenant_id"); tid != "" {
		opts = append(opts, gateway.WithTenant(tid))
	}
	rec, err := h.engine.AdvanceOnboarding(r.Context(), sc.Session.ID, step, opts...)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrOnboardingStepInvalid),
		errors.Is(err, gateway.ErrTenantRequired),
		errors.Is(err, gateway.ErrTenantConflict):
		// Out-of-order submissions land back on the step the session is on.
		http.Redirect(w, r, h.engine.Landing(sc.Session), http.StatusSeeOther)
		return
	case errors.Is(err, gateway.ErrInvalidSession):
		http.Redirect(w, r, h.engine.Gate().Routes().Login, http.StatusSeeOther)
		return
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("advance onboarding failed")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, h.engine.Landing(rec), http.StatusSeeOther)
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	tc, err := tenant.Require(r.Context())
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"tenant_id": tc.TenantID(),
		"role":      string(tc.Role()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
