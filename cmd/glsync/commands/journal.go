package commands

import (
	"github.com/mscno/glsync/pkg/journal"
	"github.com/mscno/glsync/pkg/report"
)

type JournalCmd struct {
	Path  string `arg:"" help:"Journal file" type:"existingfile"`
	RunID string `arg:"" optional:"" name:"run" help:"Show the operations of this run instead of listing runs"`
}

func (c *JournalCmd) Run(ctx *cliCtx) error {
	j, err := journal.Open(c.Path, ctx.Logger)
	if err != nil {
		return err
	}
	defer j.Close()

	if c.RunID == "" {
		runs, err := j.Runs()
		if err != nil {
			return err
		}
		report.Runs(ctx.Stdout, runs)
		return nil
	}

	ops, err := j.Operations(c.RunID)
	if err != nil {
		return err
	}
	report.Operations(ctx.Stdout, ops)
	report.Summary(ctx.Stdout, ops)
	return nil
}
