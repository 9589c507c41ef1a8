package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/mscno/glsync/pkg/journal"
	"github.com/mscno/glsync/pkg/model"
)

func TestCollectorAndTee(t *testing.T) {
	a, b := &Collector{}, &Collector{}
	tee := Tee{a, nil, b}

	tee.Record(model.Operation{Kind: model.OpAddMember, Subject: "alice"})
	assert.Equal(t, 1, len(a.Operations()))
	assert.Equal(t, a.Operations(), b.Operations())
}

func TestOperations(t *testing.T) {
	var buf bytes.Buffer
	Operations(&buf, []model.Operation{
		{Project: "technology.pig", Kind: model.OpEditMember, Target: "eclipse/pig", Subject: "alice", AccessLevel: model.Developer},
		{Project: "technology.pig", Kind: model.OpRemoveGroupMember, Target: "eclipse/pig", Subject: "mallory", DryRun: true},
		{Project: "technology.pig", Kind: model.OpAddMember, Target: "eclipse/pig", Subject: "bob", Error: "403 forbidden"},
	})
	out := buf.String()
	assert.Contains(t, out, "edit-member")
	assert.Contains(t, out, "developer")
	assert.Contains(t, out, "applied")
	assert.Contains(t, out, "planned")
	assert.Contains(t, out, "403 forbidden")
}

func TestRuns(t *testing.T) {
	var buf bytes.Buffer
	Runs(&buf, []journal.RunInfo{{
		ID:        "6f1c",
		StartedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		DryRun:    true,
		Totals:    journal.Totals{Planned: 3},
	}})
	assert.Contains(t, buf.String(), "2024-05-01 12:00:00")
	assert.Contains(t, buf.String(), "dry-run")
}

func TestBots(t *testing.T) {
	var buf bytes.Buffer
	Bots(&buf, model.BotMap{"technology.pig": {"pig-bot"}, "ee4j.jersey": {"jersey-bot"}})
	out := buf.String()
	assert.True(t, bytes.Index(buf.Bytes(), []byte("ee4j.jersey")) < bytes.Index(buf.Bytes(), []byte("technology.pig")))
	assert.Contains(t, out, "pig-bot")
}

func TestSummary(t *testing.T) {
	var buf bytes.Buffer
	Summary(&buf, []model.Operation{{}, {DryRun: true}, {Error: "x"}, {}})
	assert.Equal(t, "2 applied, 1 planned, 1 failed\n", buf.String())
}
