package flows

import (
	"context"

	"github.com/KuolDimDeng/Dott-Project-sub054/audit"
	"github.com/KuolDimDeng/Dott-Project-sub054/session"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Resolve    ResolveDeps
	Create     CreateDeps
	Onboarding OnboardingDeps
	Invalidate InvalidateDeps
}

// EmitAuditFunc records one audit event about rec. rec may be nil when no
// session could be identified.
type EmitAuditFunc func(ctx context.Context, typ audit.Type, rec *session.Record, reason string, metadata map[string]string)
