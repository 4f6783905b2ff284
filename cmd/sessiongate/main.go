package main

import (
	"context"

	"github.com/KuolDimDeng/Dott-Project-sub054/cmd/sessiongate/internal/commands"
	"github.com/alecthomas/kong"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool             `help:"Enable development mode (console logging, debug level)." env:"SESSIONGATE_DEV"`
		Version kong.VersionFlag `help:"Print version."`

		Serve   commands.ServeCmd   `cmd:"" help:"Run the session gateway HTTP server."`
		Migrate commands.MigrateCmd `cmd:"" help:"Create the tenant membership schema."`
		Admin   commands.AdminCmd   `cmd:"" help:"Administrative session operations."`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("sessiongate"),
		kong.Description("Session lifecycle and tenant isolation gateway."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Version: version})
	cmd.FatalIfErrorf(err)
}
