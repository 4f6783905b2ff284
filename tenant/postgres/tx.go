package postgres

import (
	"context"

	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Tx.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTenantTx runs fn in a transaction whose app.current_tenant_id setting
// is bound to tc. Row level security policies read that setting, so every
// statement in fn is scoped to the tenant. The setting is transaction local.
func WithTenantTx(ctx context.Context, db TxBeginner, tc *tenant.Context, fn func(pgx.Tx) error) error {
	if tc == nil || tc.TenantID() == "" {
		return tenant.ErrTenantRequired
	}
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.current_tenant_id', $1, true)`, tc.TenantID()); err != nil {
			return mapPostgresError(err)
		}
		return fn(tx)
	})
}

// WithRequestTenantTx is WithTenantTx with the tenant taken from ctx.
func WithRequestTenantTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	tc, err := tenant.Require(ctx)
	if err != nil {
		return err
	}
	return WithTenantTx(ctx, db, tc, fn)
}
