package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed schema.sql
var schemaSQL string

// Querier is the subset of *pgxpool.Pool the loader needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Execer runs schema statements.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const membershipQuery = `
	SELECT role, permissions
	FROM tenant_memberships
	WHERE user_id = $1 AND tenant_id = $2 AND status = 'active'
`

// MembershipLoader implements tenant.MembershipLoader over the
// tenant_memberships table.
type MembershipLoader struct {
	db Querier
}

func NewMembershipLoader(db Querier) *MembershipLoader {
	return &MembershipLoader{db: db}
}

// LoadMembership implements tenant.MembershipLoader.
func (l *MembershipLoader) LoadMembership(ctx context.Context, subjectID, tenantID string) (tenant.Membership, error) {
	var (
		role  string
		perms []string
	)
	err := l.db.QueryRow(ctx, membershipQuery, subjectID, tenantID).Scan(&role, &perms)
	if err != nil {
		return tenant.Membership{}, mapPostgresError(err)
	}
	return tenant.Membership{Role: tenant.Role(role), Permissions: perms}, nil
}

// EnsureSchema creates the membership table when it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply membership schema: %w", mapPostgresError(err))
	}
	return nil
}
