package tenant

import (
	"context"
	"errors"
	"slices"

	"github.com/hashicorp/go-set/v3"
)

var (
	// ErrTenantRequired is returned when an operation needs a bound tenant
	// and the session has none.
	ErrTenantRequired = errors.New("tenant required")
	// ErrMembershipNotFound is returned when the subject holds no active
	// membership in the session's tenant.
	ErrMembershipNotFound = errors.New("tenant membership not found")
	// ErrMembershipUnavailable wraps loader failures other than not-found.
	ErrMembershipUnavailable = errors.New("tenant membership unavailable")
)

// Role is a subject's role inside a tenant.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// Membership is what a MembershipLoader returns for one subject and tenant.
type Membership struct {
	Role        Role
	Permissions []string
}

// MembershipLoader looks up the authoritative membership row. It must return
// ErrMembershipNotFound (possibly wrapped) when no active membership exists.
type MembershipLoader interface {
	LoadMembership(ctx context.Context, subjectID, tenantID string) (Membership, error)
}

// Context is the authorization scope for one request. It can only be built
// by a Resolver, so handlers cannot fabricate one for a tenant the subject
// does not belong to.
type Context struct {
	tenantID    string
	subjectID   string
	role        Role
	permissions *set.Set[string]
}

func (c *Context) TenantID() string  { return c.tenantID }
func (c *Context) SubjectID() string { return c.subjectID }
func (c *Context) Role() Role        { return c.role }

// Can reports whether the membership grants perm.
func (c *Context) Can(perm string) bool {
	return c != nil && c.permissions.Contains(perm)
}

// AtLeast reports whether the membership role is min or higher.
func (c *Context) AtLeast(min Role) bool {
	return c != nil && c.role.rank() >= min.rank()
}

// Permissions returns the granted permissions in sorted order.
func (c *Context) Permissions() []string {
	out := c.permissions.Slice()
	slices.Sort(out)
	return out
}

type contextKey struct{}

// WithContext attaches tc to ctx.
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the tenant context of a request, if resolved.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	return tc, ok && tc != nil
}

// Require returns the request's tenant context or ErrTenantRequired. Data
// access layers call this instead of reading any ambient tenant state.
func Require(ctx context.Context) (*Context, error) {
	tc, ok := FromContext(ctx)
	if !ok {
		return nil, ErrTenantRequired
	}
	return tc, nil
}
