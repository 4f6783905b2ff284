package gateway

import (
	"time"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/bootstrap"
	"github.com/KuolDimDeng/Dott-Project-sub054/cookie"
	"github.com/KuolDimDeng/Dott-Project-sub054/fingerprint"
	"github.com/KuolDimDeng/Dott-Project-sub054/internal"
	internalflows "github.com/KuolDimDeng/Dott-Project-sub054/internal/flows"
	"github.com/KuolDimDeng/Dott-Project-sub054/onboarding"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/rs/zerolog"
)

// Engine is the session gateway. It is safe for concurrent use once built;
// the only shared mutable state is the session store.
type Engine struct {
	config       Config
	store        session.Store
	codec        *session.Codec
	cookies      *cookie.Manager
	bootstrap    *bootstrap.Manager
	fingerprints *fingerprint.Validator
	resolver     *tenant.Resolver
	gate         *onboarding.Gate
	audit        *audit.Dispatcher
	metrics      *Metrics
	logger       zerolog.Logger
	now          func() time.Time
	newID        func() (string, error)
	flows        internalflows.Deps
}

// Close drains pending audit events. The session store client is owned by
// the caller and left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Gate returns the onboarding gate built from the configured routes.
func (e *Engine) Gate() *onboarding.Gate {
	if e == nil {
		return nil
	}
	return e.gate
}

// Cookies returns the cookie manager, for callers that need to read the
// status cookie.
func (e *Engine) Cookies() *cookie.Manager {
	if e == nil {
		return nil
	}
	return e.cookies
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	for i := 0; i < n; i++ {
		e.metricInc(id)
	}
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.cookies != nil
}

func (e *Engine) buildFlowDeps() internalflows.Deps {
	emit := e.emitAudit
	return internalflows.Deps{
		Resolve: internalflows.ResolveDeps{
			Now:                 e.now,
			Extract:             e.cookies.Extract,
			Redeem:              e.cookies.Redeem,
			Decode:              e.codec.Decode,
			Issue:               e.cookies.Issue,
			Clear:               e.cookies.Clear,
			FingerprintEnabled:  e.fingerprints.Enabled(),
			Salt:                e.cookies.Salt,
			NewSalt:             internal.NewSalt,
			IssueSalt:           e.cookies.IssueSalt,
			ValidateFingerprint: e.fingerprints.Validate,
			ResolveTenant:       e.resolver.Resolve,
			TTL:                 e.config.Session.TTL,
			RefreshThreshold:    e.config.Session.RefreshThreshold,
			SessionStore:        e.store,
			EmitAudit:           emit,
			Logger:              e.logger,
		},
		Create: internalflows.CreateDeps{
			Now:                e.now,
			NewID:              e.newID,
			TTL:                e.config.Session.TTL,
			Encode:             e.codec.Encode,
			Issue:              e.cookies.Issue,
			FingerprintEnabled: e.fingerprints.Enabled(),
			NewSalt:            internal.NewSalt,
			IssueSalt:          e.cookies.IssueSalt,
			Compute:            e.fingerprints.Compute,
			SessionStore:       e.store,
			EmitAudit:          emit,
			Logger:             e.logger,
		},
		Onboarding: internalflows.OnboardingDeps{
			SessionStore: e.store,
			EmitAudit:    emit,
		},
		Invalidate: internalflows.InvalidateDeps{
			SessionStore: e.store,
			EmitAudit:    emit,
		},
	}
}
