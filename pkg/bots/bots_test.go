package bots

import (
	"encoding/json"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/mscno/glsync/pkg/model"
)

const rawBots = `[
  {"id": 1, "projectId": "spider.pig", "username": "pig-bot",
   "github.com": {"username": "pig-gh-bot", "email": "gh@example.org"},
   "gitlab.eclipse.org": {"username": "pig-gl-bot", "email": "gl@example.org"},
   "gitlab.eclipse.org-subgroup": {"username": "pig-sub-bot"}},
  {"id": 2, "projectId": "ee4j.jersey",
   "github.com": {"username": "jersey-bot"}},
  {"id": 3, "projectId": "spider.pig",
   "gitlab.eclipse.org": {"username": "pig-gl-bot"}},
  {"id": 4, "gitlab.eclipse.org": {"username": "orphan"}},
  {"id": 5, "projectId": "rt.jetty", "gitlab.eclipse.org": "not-an-object"}
]`

func decode(t *testing.T) []model.BotRecord {
	t.Helper()
	var records []model.BotRecord
	assert.NoError(t, json.Unmarshal([]byte(rawBots), &records))
	return records
}

func TestClassifyGitLabSite(t *testing.T) {
	got := Classify(decode(t), "gitlab.eclipse.org")
	assert.Equal(t, model.BotMap{
		"spider.pig": {"pig-gl-bot", "pig-sub-bot"},
	}, got)
}

func TestClassifyGitHubSite(t *testing.T) {
	got := Classify(decode(t), "github.com")
	assert.Equal(t, model.BotMap{
		"spider.pig":  {"pig-gh-bot"},
		"ee4j.jersey": {"jersey-bot"},
	}, got)
}

func TestClassifyEmpty(t *testing.T) {
	assert.Equal(t, model.BotMap{}, Classify(nil, "gitlab.eclipse.org"))
	assert.Equal(t, model.BotMap{}, Classify(decode(t), ""))
}
