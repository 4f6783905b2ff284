package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/KuolDimDeng/Dott-Project-sub054/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type failingLoader struct{ err error }

func (f failingLoader) LoadMembership(context.Context, string, string) (Membership, error) {
	return Membership{}, f.err
}

func rec(tenantID string) *session.Record {
	return &session.Record{ID: "s1", SubjectID: "u1", TenantID: tenantID}
}

func TestResolveRequiresTenant(t *testing.T) {
	r := NewResolver(NewMemoryLoader(), zerolog.Nop())
	tc, err := r.Resolve(context.Background(), rec(""))
	require.ErrorIs(t, err, ErrTenantRequired)
	require.Nil(t, tc)
}

func TestResolveMembershipMissing(t *testing.T) {
	r := NewResolver(NewMemoryLoader(), zerolog.Nop())
	tc, err := r.Resolve(context.Background(), rec("t1"))
	require.ErrorIs(t, err, ErrMembershipNotFound)
	require.Nil(t, tc)
}

func TestResolveBuildsContext(t *testing.T) {
	loader := NewMemoryLoader()
	loader.Put("u1", "t1", Membership{Role: RoleAdmin, Permissions: []string{"invoices.write", "invoices.read"}})
	r := NewResolver(loader, zerolog.Nop())

	tc, err := r.Resolve(context.Background(), rec("t1"))
	require.NoError(t, err)
	require.Equal(t, "t1", tc.TenantID())
	require.Equal(t, "u1", tc.SubjectID())
	require.Equal(t, RoleAdmin, tc.Role())
	require.True(t, tc.Can("invoices.read"))
	require.False(t, tc.Can("payroll.run"))
	require.True(t, tc.AtLeast(RoleMember))
	require.True(t, tc.AtLeast(RoleAdmin))
	require.False(t, tc.AtLeast(RoleOwner))
	require.Equal(t, []string{"invoices.read", "invoices.write"}, tc.Permissions())
}

func TestResolveRejectsUnknownRole(t *testing.T) {
	loader := NewMemoryLoader()
	loader.Put("u1", "t1", Membership{Role: "superuser"})
	tc, err := NewResolver(loader, zerolog.Nop()).Resolve(context.Background(), rec("t1"))
	require.ErrorIs(t, err, ErrMembershipNotFound)
	require.Nil(t, tc)
}

func TestResolveWrapsLoaderFailure(t *testing.T) {
	r := NewResolver(failingLoader{err: errors.New("connection reset")}, zerolog.Nop())
	_, err := r.Resolve(context.Background(), rec("t1"))
	require.ErrorIs(t, err, ErrMembershipUnavailable)
	require.NotErrorIs(t, err, ErrMembershipNotFound)
}

func TestMemoryLoaderRemove(t *testing.T) {
	loader := NewMemoryLoader()
	loader.Put("u1", "t1", Membership{Role: RoleOwner})
	loader.Remove("u1", "t1")
	loader.Remove("u1", "t1")
	_, err := loader.LoadMembership(context.Background(), "u1", "t1")
	require.ErrorIs(t, err, ErrMembershipNotFound)
}

func TestContextPropagation(t *testing.T) {
	_, err := Require(context.Background())
	require.ErrorIs(t, err, ErrTenantRequired)

	loader := NewMemoryLoader()
	loader.Put("u1", "t1", Membership{Role: RoleMember})
	tc, err := NewResolver(loader, zerolog.Nop()).Resolve(context.Background(), rec("t1"))
	require.NoError(t, err)

	ctx := WithContext(context.Background(), tc)
	got, err := Require(ctx)
	require.NoError(t, err)
	require.Same(t, tc, got)

	_, ok := FromContext(WithContext(context.Background(), nil))
	require.False(t, ok)
}
