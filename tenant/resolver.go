package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/hashicorp/go-set/v3"
	"github.com/rs/zerolog"
)

// Resolver turns a session record into a tenant Context using the
// membership loader as the only source of authority.
type Resolver struct {
	loader MembershipLoader
	logger zerolog.Logger
}

func NewResolver(loader MembershipLoader, logger zerolog.Logger) *Resolver {
	return &Resolver{loader: loader, logger: logger}
}

// Resolve returns ErrTenantRequired when rec has no tenant and
// ErrMembershipNotFound when the subject is not an active member. It never
// returns a partial Context.
func (r *Resolver) Resolve(ctx context.Context, rec *session.Record) (*Context, error) {
	if !rec.HasTenant() {
		return nil, ErrTenantRequired
	}

	m, err := r.loader.LoadMembership(ctx, rec.SubjectID, rec.TenantID)
	if err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			r.logger.Warn().
				Str("subject_id", rec.SubjectID).
				Str("tenant_id", rec.TenantID).
				Msg("session references tenant without membership")
			return nil, ErrMembershipNotFound
		}
		if errors.Is(err, ErrMembershipUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMembershipUnavailable, err)
	}
	if !m.Role.Valid() {
		r.logger.Warn().
			Str("tenant_id", rec.TenantID).
			Str("role", string(m.Role)).
			Msg("membership has unknown role")
		return nil, fmt.Errorf("%w: unknown role %q", ErrMembershipNotFound, m.Role)
	}

	return &Context{
		tenantID:    rec.TenantID,
		subjectID:   rec.SubjectID,
		role:        m.Role,
		permissions: set.From(m.Permissions),
	}, nil
}
