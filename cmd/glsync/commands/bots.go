package commands

import (
	"github.com/mscno/glsync/pkg/bots"
	"github.com/mscno/glsync/pkg/registry"
	"github.com/mscno/glsync/pkg/report"
	"github.com/mscno/glsync/pkg/throttle"
	"golang.org/x/time/rate"
)

type BotsCmd struct {
	Site    string `help:"Bot site to filter on; defaults to the configured bot site" env:"GLSYNC_BOT_SITE"`
	Project string `help:"Only print bots of this project id" short:"P"`
}

func (c *BotsCmd) Run(ctx *cliCtx) error {
	cfg := ctx.Config
	site := c.Site
	if site == "" {
		site = cfg.BotSite
	}
	reg := registry.NewClient(registry.Config{
		BotsURL:    cfg.Registry.BotsURL,
		HTTPClient: throttle.NewTransport(rate.Limit(cfg.Limits.RegistryRPS), 1).Client(cfg.Timeout()),
		Logger:     ctx.Logger,
	})
	raw, err := reg.FetchBots(ctx)
	if err != nil {
		return err
	}
	botMap := bots.Classify(raw, site)
	if c.Project != "" {
		for id := range botMap {
			if id != c.Project {
				delete(botMap, id)
			}
		}
	}
	report.Bots(ctx.Stdout, botMap)
	return nil
}
