package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mscno/glsync/pkg/config"
	"github.com/mscno/glsync/pkg/secrets"
)

type cliCtx struct {
	context.Context
	Logger  *slog.Logger
	Keyring secrets.Keyring
	Config  config.Config
	Stdin   io.Reader
	Stdout  io.Writer
}

type cli struct {
	Verbose bool             `help:"Log at debug level" short:"V" env:"GLSYNC_VERBOSE"`
	Config  string           `help:"Run configuration file (.yaml, .yml or .toml)" short:"c" env:"GLSYNC_CONFIG" type:"path"`
	Version kong.VersionFlag `help:"Show version" short:"v"`

	Sync    SyncCmd    `cmd:"" default:"withargs" help:"Reconcile GitLab groups, projects and members with the registry"`
	Bots    BotsCmd    `cmd:"" help:"Print the bot accounts of each project"`
	Journal JournalCmd `cmd:"" help:"Inspect past sync runs"`
	Secrets SecretsCmd `cmd:"" help:"Manage the secrets kept in the OS keyring"`
}

func Execute(version string) {
	var cli cli
	ctx := kong.Parse(&cli,
		kong.UsageOnError(),
		kong.Name("glsync"),
		kong.Description("glsync mirrors Eclipse project roles into GitLab"),
		kong.Vars{
			"version":  version,
			"lockfile": filepath.Join(os.TempDir(), "glsync.lock"),
		},
	)

	logger := newLogger(os.Stderr, cli.Verbose)
	slog.SetDefault(logger)

	cfg, err := config.Load(cli.Config)
	ctx.FatalIfErrorf(err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = ctx.Run(&cliCtx{
		Context: runCtx,
		Logger:  logger,
		Keyring: secrets.NewOSKeyring(),
		Config:  cfg,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	})
	ctx.FatalIfErrorf(err)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
