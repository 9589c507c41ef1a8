// Package bots turns raw bot records from the registry into the per-project
// set of bot accounts for one platform site.
package bots

import (
	"sort"
	"strings"

	"github.com/mscno/glsync/pkg/model"
)

// Classify returns, for each project, the bot handles registered for site.
// A key matches when it equals site or starts with it, so site-scoped
// sub-resources such as "gitlab.eclipse.org-subgroup" are included.
func Classify(records []model.BotRecord, site string) model.BotMap {
	out := model.BotMap{}
	if site == "" {
		return out
	}
	for _, rec := range records {
		projectID, ok := rec.ProjectID()
		if !ok {
			continue
		}
		for _, handle := range siteHandles(rec, site) {
			out[projectID] = appendUnique(out[projectID], handle)
		}
	}
	for id := range out {
		sort.Strings(out[id])
	}
	return out
}

func siteHandles(rec model.BotRecord, site string) []string {
	var handles []string
	for key, value := range rec {
		if !strings.HasPrefix(key, site) {
			continue
		}
		account, ok := value.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := account["username"].(string); ok && name != "" {
			handles = append(handles, name)
		}
	}
	return handles
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
