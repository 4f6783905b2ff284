package commands

import (
	"context"
	"errors"

	"github.com/KuolDimDeng/Dott-Project-sub054/tenant/postgres"
)

type MigrateCmd struct {
	Postgres PostgresFlags `embed:"" prefix:"postgres-"`
}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	logger := setupLogger(globals.Dev)
	if m.Postgres.ConnString == "" {
		return errors.New("PostgreSQL connection string is required (--postgres-conn-string or POSTGRES_CONNECTION_STRING)")
	}

	pool, err := postgres.NewPool(ctx, m.Postgres.poolConfig())
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	logger.Info().Msg("membership schema applied")
	return nil
}
