package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/subsealabs/osduauth/pkg/oskeyring"
)

type cliCtx struct {
	context.Context
	Logger  *slog.Logger
	Keyring oskeyring.Service
}

type cli struct {
	Login    LoginCmd    `cmd:"" help:"Sign in and populate the token cache."`
	Token    TokenCmd    `cmd:"" help:"Acquire a bearer token and print it."`
	Exchange ExchangeCmd `cmd:"" help:"Exchange a user token for a downstream-service token (on-behalf-of)."`
	Whoami   WhoamiCmd   `cmd:"" help:"Show the signed-in account."`
	Logout   LogoutCmd   `cmd:"" help:"Remove the persisted token cache."`

	Debug   bool             `help:"Enable debug logging."`
	Version kong.VersionFlag `help:"Show version."`
}

func Execute(version string) {
	// Local .env files are a convenient place for client id and authority;
	// missing files are fine.
	_ = godotenv.Load()

	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("osduauth"),
		kong.Description("osduauth signs in to an OSDU platform authority and prints bearer tokens"),
		kong.Vars{"version": version},
	)

	level := slog.LevelInfo
	if cli.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	err := ctx.Run(&cliCtx{
		Context: context.Background(),
		Logger:  logger,
		Keyring: oskeyring.NewDefaultService(),
	})
	ctx.FatalIfErrorf(err)
}
