package reconcile

import (
	"sort"

	"github.com/mscno/glsync/pkg/model"
)

// Role is the access a handle should hold in a project group.
type Role struct {
	Level model.AccessLevel
	// URL is the registry profile URL; empty for bots.
	URL string
}

// RoleMap maps account handles to their desired role.
type RoleMap map[string]Role

// Handles returns the handles in sorted order.
func (m RoleMap) Handles() []string {
	out := make([]string, 0, len(m))
	for h := range m {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// DesiredRoles merges the role lists of a project. Later lists win on a
// handle collision: contributors, then committers, then leads, then the
// project's bots.
func DesiredRoles(record model.ProjectRecord, bots model.BotMap) RoleMap {
	roles := make(RoleMap)
	add := func(entries []model.RoleEntry, level model.AccessLevel) {
		for _, e := range entries {
			if e.Username == "" {
				continue
			}
			roles[e.Username] = Role{Level: level, URL: e.URL}
		}
	}
	add(record.Contributors, model.Reporter)
	add(record.Committers, model.Developer)
	add(record.ProjectLeads, model.Maintainer)
	for _, bot := range bots[record.ProjectID] {
		roles[bot] = Role{Level: model.Developer}
	}
	return roles
}
