package commands

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mscno/glsync/pkg/bots"
	"github.com/mscno/glsync/pkg/config"
	"github.com/mscno/glsync/pkg/journal"
	"github.com/mscno/glsync/pkg/platform"
	"github.com/mscno/glsync/pkg/platform/gitlab"
	"github.com/mscno/glsync/pkg/reconcile"
	"github.com/mscno/glsync/pkg/registry"
	"github.com/mscno/glsync/pkg/report"
	"github.com/mscno/glsync/pkg/runlock"
	"github.com/mscno/glsync/pkg/secrets"
	"github.com/mscno/glsync/pkg/state"
	"github.com/mscno/glsync/pkg/throttle"
	"golang.org/x/time/rate"
)

var ErrMissingOAuthConfig = errors.New("no registry oauth configuration found")

type SyncCmd struct {
	DryRun         bool   `help:"Report changes without applying them" short:"d" env:"GLSYNC_DRY_RUN"`
	DevMode        bool   `help:"Use the built-in test project instead of the registry" short:"D" env:"GLSYNC_DEV_MODE"`
	Host           string `help:"GitLab base URL" short:"H" env:"GLSYNC_HOST"`
	Provider       string `help:"OAuth provider name set in GitLab" short:"p" env:"GLSYNC_PROVIDER"`
	Project        string `help:"Only sync the project with this id or short id" short:"P" env:"GLSYNC_PROJECT"`
	SecretLocation string `help:"Directory holding the access-token and eclipse-oauth-config files" short:"s" env:"GLSYNC_SECRET_LOCATION" default:"/run/secrets"`
	EnvFile        string `help:"Dotenv file with GLSYNC_ACCESS_TOKEN and GLSYNC_OAUTH_CONFIG" env:"GLSYNC_ENV_FILE" default:".env"`
	UseKeyring     bool   `help:"Look up secrets in the OS keyring" env:"GLSYNC_USE_KEYRING" default:"true" negatable:""`
	Journal        string `help:"Record the run in this journal file" env:"GLSYNC_JOURNAL" type:"path"`
	LockFile       string `help:"Lock file guarding against concurrent runs" env:"GLSYNC_LOCK_FILE" default:"${lockfile}"`
	Report         bool   `help:"Print a table of all operations when done" short:"r"`

	// newPlatform is replaced in tests.
	newPlatform func(cfg config.Config, token string, ctx *cliCtx) (platform.Client, error)
}

func (c *SyncCmd) Run(ctx *cliCtx) error {
	logger := ctx.Logger
	cfg := c.apply(ctx.Config)

	lock, err := runlock.Acquire(c.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	creds, err := secrets.Load(c.sources(ctx), logger)
	if err != nil {
		return err
	}
	var oauth *registry.OAuthConfig
	switch {
	case len(creds.OAuthConfig) > 0:
		if oauth, err = registry.ParseOAuthConfig(creds.OAuthConfig); err != nil {
			return err
		}
	case !c.DevMode:
		return ErrMissingOAuthConfig
	}

	reg := registry.NewClient(registry.Config{
		ProjectsURL: cfg.Registry.ProjectsURL,
		AccountsURL: cfg.Registry.AccountsURL,
		BotsURL:     cfg.Registry.BotsURL,
		OAuth:       oauth,
		TestMode:    c.DevMode,
		HTTPClient:  throttle.NewTransport(rate.Limit(cfg.Limits.RegistryRPS), 1, throttle.WithLogger(logger)).Client(cfg.Timeout()),
		Logger:      logger,
	})

	records, err := reg.FetchProjects(ctx)
	if err != nil {
		return fmt.Errorf("fetching projects: %w", err)
	}
	records = registry.PostProcess(records, logger)

	rawBots, err := reg.FetchBots(ctx)
	if err != nil {
		return err
	}
	botMap := bots.Classify(rawBots, cfg.BotSite)
	logger.Info("loaded registry data", "projects", len(records), "bot_projects", len(botMap))

	newPlatform := c.newPlatform
	if newPlatform == nil {
		newPlatform = gitlabPlatform
	}
	client, err := newPlatform(cfg, creds.AccessToken, ctx)
	if err != nil {
		return err
	}
	cache, err := state.Seed(ctx, client, logger)
	if err != nil {
		return err
	}

	collector := &report.Collector{}
	recorders := report.Tee{collector}
	var run *journal.Run
	if c.Journal != "" {
		j, err := journal.Open(c.Journal, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		if run, err = j.Begin(c.DryRun, c.Project); err != nil {
			return err
		}
		recorders = append(recorders, run)
		logger.Info("journaling run", "run", run.ID(), "journal", c.Journal)
	}

	engine, err := reconcile.New(reconcile.Options{
		Platform:      client,
		Registry:      reg,
		Cache:         cache,
		Bots:          botMap,
		DryRun:        c.DryRun,
		Provider:      cfg.Provider,
		RootGroupName: cfg.RootGroupName,
		RootGroupPath: cfg.RootGroupPath,
		Logger:        logger,
		Recorder:      recorders,
	})
	if err != nil {
		return err
	}

	sum, runErr := engine.Run(ctx, records, c.Project)
	if run != nil {
		totals := journal.Totals{
			Processed: sum.Processed,
			Skipped:   sum.SkippedProjects,
			Applied:   sum.Applied,
			Planned:   sum.Planned,
			Failed:    sum.Failed,
		}
		if err := run.Finish(totals, runErr); err != nil {
			logger.Error("failed to finish journal run", "error", err)
		}
	}

	ops := collector.Operations()
	if c.Report || c.DryRun {
		report.Operations(ctx.Stdout, ops)
	}
	report.Summary(ctx.Stdout, ops)
	return runErr
}

// apply overlays the flags that were set on cfg.
func (c *SyncCmd) apply(cfg config.Config) config.Config {
	if c.Host != "" {
		cfg.Host = c.Host
	}
	if c.Provider != "" {
		cfg.Provider = c.Provider
	}
	return cfg
}

func (c *SyncCmd) sources(ctx *cliCtx) secrets.Chain {
	chain := secrets.Chain{
		secrets.Dir(c.SecretLocation),
		secrets.EnvFile(c.EnvFile),
		secrets.Env{},
	}
	if c.UseKeyring && ctx.Keyring != nil {
		chain = append(chain, secrets.KeyringSource{Keyring: ctx.Keyring})
	}
	return chain
}

func gitlabPlatform(cfg config.Config, token string, ctx *cliCtx) (platform.Client, error) {
	return gitlab.New(gitlab.Config{
		BaseURL:    cfg.Host,
		Token:      token,
		RateLimit:  cfg.Limits.PlatformRPS,
		Burst:      cfg.Limits.PlatformBurst,
		HTTPClient: &http.Client{Timeout: cfg.Timeout()},
		Logger:     ctx.Logger,
	})
}
