package postgres

import (
	"errors"
	"fmt"

	"github.com/KuolDimDeng/Dott-Project-sub054/tenant"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// mapPostgresError maps driver errors onto the tenant error taxonomy. A
// missing row is ErrMembershipNotFound; everything else is
// ErrMembershipUnavailable so the gateway fails closed.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return tenant.ErrMembershipNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %v", tenant.ErrMembershipUnavailable, err)
	}

	switch pgErr.Code {
	case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
		return fmt.Errorf("%w: membership schema missing: %s", tenant.ErrMembershipUnavailable, pgErr.Message)

	case pgerrcode.InvalidTextRepresentation:
		// A malformed tenant id cannot match any membership row.
		return tenant.ErrMembershipNotFound

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		return fmt.Errorf("%w: database unavailable: %v", tenant.ErrMembershipUnavailable, err)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("%w: query canceled: %v", tenant.ErrMembershipUnavailable, err)

	case pgerrcode.InsufficientPrivilege:
		return fmt.Errorf("%w: row level security denied membership read: %v", tenant.ErrMembershipUnavailable, err)

	default:
		return fmt.Errorf("%w: postgres error [%s]: %s", tenant.ErrMembershipUnavailable, pgErr.Code, pgErr.Message)
	}
}
