// Package report renders sync operations as text tables.
package report

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mscno/glsync/pkg/journal"
	"github.com/mscno/glsync/pkg/model"
)

// Collector keeps every recorded operation in memory.
type Collector struct {
	mu  sync.Mutex
	ops []model.Operation
}

func (c *Collector) Record(op model.Operation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, op)
}

// Operations returns a copy of the recorded operations.
func (c *Collector) Operations() []model.Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Operation, len(c.ops))
	copy(out, c.ops)
	return out
}

// Tee forwards each operation to every non-nil recorder.
type Tee []model.Recorder

func (t Tee) Record(op model.Operation) {
	for _, r := range t {
		if r != nil {
			r.Record(op)
		}
	}
}

func status(op model.Operation) string {
	switch {
	case op.Failed():
		return "failed"
	case op.DryRun:
		return "planned"
	}
	return "applied"
}

// Operations writes ops as a table, grouped by project.
func Operations(w io.Writer, ops []model.Operation) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Project", "Operation", "Target", "Subject", "Access", "Status", "Error"})
	for _, op := range ops {
		access := ""
		if op.AccessLevel != model.NoAccess {
			access = op.AccessLevel.String()
		}
		t.AppendRow(table.Row{op.Project, op.Kind, op.Target, op.Subject, access, status(op), op.Error})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

// Runs writes a table of journal runs.
func Runs(w io.Writer, runs []journal.RunInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Run", "Started", "Mode", "Filter", "Processed", "Applied", "Planned", "Failed", "Error"})
	for _, r := range runs {
		mode := "live"
		if r.DryRun {
			mode = "dry-run"
		}
		t.AppendRow(table.Row{
			r.ID,
			r.StartedAt.Format("2006-01-02 15:04:05"),
			mode,
			r.Filter,
			r.Totals.Processed,
			r.Totals.Applied,
			r.Totals.Planned,
			r.Totals.Failed,
			r.Error,
		})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

// Bots writes one row per project and bot account.
func Bots(w io.Writer, bots model.BotMap) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Project", "Bot"})
	for _, project := range sortedKeys(bots) {
		for _, bot := range bots[project] {
			t.AppendRow(table.Row{project, bot})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
	})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}

// Summary writes a one-line summary of ops.
func Summary(w io.Writer, ops []model.Operation) {
	counts := map[string]int{}
	for _, op := range ops {
		counts[status(op)]++
	}
	fmt.Fprintf(w, "%d applied, %d planned, %d failed\n", counts["applied"], counts["planned"], counts["failed"])
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	_ model.Recorder = (*Collector)(nil)
	_ model.Recorder = Tee{}
)
