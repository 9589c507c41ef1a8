// Package state holds the working snapshot of platform state for one sync run.
package state

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mscno/glsync/pkg/model"
	"github.com/mscno/glsync/pkg/platform"
)

type projectKey struct {
	name        string
	namespaceID int
}

// Cache indexes groups by sanitized path, projects by (name, namespace id),
// users by username and group members by group id. Member lists are loaded on
// first access and updated in place as mutations succeed.
//
// A Cache is owned by a single engine and is not safe for concurrent use.
type Cache struct {
	groups   map[string]model.Group
	projects map[projectKey]model.Project
	users    map[string]model.User
	members  map[int][]model.Member
	logger   *slog.Logger
}

// New returns an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		groups:   make(map[string]model.Group),
		projects: make(map[projectKey]model.Project),
		users:    make(map[string]model.User),
		members:  make(map[int][]model.Member),
		logger:   logger,
	}
}

// Seed builds a cache from one listing each of groups, projects and users.
func Seed(ctx context.Context, client platform.Client, logger *slog.Logger) (*Cache, error) {
	c := New(logger)

	groups, err := client.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding groups: %w", err)
	}
	for _, g := range groups {
		c.PutGroup(g)
	}

	projects, err := client.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding projects: %w", err)
	}
	for _, p := range projects {
		c.PutProject(p)
	}

	users, err := client.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("seeding users: %w", err)
	}
	for _, u := range users {
		c.PutUser(u)
	}

	c.logger.Info("seeded platform state", "groups", len(c.groups), "projects", len(c.projects), "users", len(c.users))
	return c, nil
}

// Group looks up a group by path. The path is sanitized before lookup.
func (c *Cache) Group(path string) (model.Group, bool) {
	g, ok := c.groups[model.SanitizePath(path)]
	return g, ok
}

// PutGroup stores g under its sanitized path.
func (c *Cache) PutGroup(g model.Group) {
	c.groups[model.SanitizePath(g.Path)] = g
}

// Project looks up a project by name within a namespace.
func (c *Cache) Project(name string, namespaceID int) (model.Project, bool) {
	p, ok := c.projects[projectKey{name: name, namespaceID: namespaceID}]
	return p, ok
}

// PutProject stores p under its name and namespace.
func (c *Cache) PutProject(p model.Project) {
	c.projects[projectKey{name: p.Name, namespaceID: p.NamespaceID}] = p
}

// User looks up a platform account by username.
func (c *Cache) User(username string) (model.User, bool) {
	u, ok := c.users[username]
	return u, ok
}

// PutUser stores u under its username.
func (c *Cache) PutUser(u model.User) {
	c.users[u.Username] = u
}

// GroupMembers returns the members of groupID, fetching them from client on
// first access. The returned slice is a copy.
func (c *Cache) GroupMembers(ctx context.Context, client platform.Client, groupID int) ([]model.Member, error) {
	members, ok := c.members[groupID]
	if !ok {
		fetched, err := client.ListGroupMembers(ctx, groupID)
		if err != nil {
			return nil, fmt.Errorf("loading members of group %d: %w", groupID, err)
		}
		members = fetched
		if members == nil {
			members = []model.Member{}
		}
		c.members[groupID] = members
		c.logger.Debug("loaded group members", "group", groupID, "count", len(members))
	}
	out := make([]model.Member, len(members))
	copy(out, members)
	return out, nil
}

// GroupMember finds username among the cached members of groupID. It never
// calls the platform.
func (c *Cache) GroupMember(groupID int, username string) (model.Member, bool) {
	for _, m := range c.members[groupID] {
		if m.Username == username {
			return m, true
		}
	}
	return model.Member{}, false
}

// PutGroupMember inserts or replaces m in the cached list of groupID. It is a
// no-op when the list was never loaded.
func (c *Cache) PutGroupMember(groupID int, m model.Member) {
	members, ok := c.members[groupID]
	if !ok {
		return
	}
	for i := range members {
		if members[i].ID == m.ID {
			members[i] = m
			return
		}
	}
	c.members[groupID] = append(members, m)
}

// DropGroupMember removes userID from the cached list of groupID.
func (c *Cache) DropGroupMember(groupID, userID int) {
	members, ok := c.members[groupID]
	if !ok {
		return
	}
	out := members[:0]
	for _, m := range members {
		if m.ID != userID {
			out = append(out, m)
		}
	}
	c.members[groupID] = out
}

// Snapshot is a deep copy of the cache contents, suitable for comparison.
type Snapshot struct {
	Groups   map[string]int
	Projects map[string]int
	Users    map[string]int
	Members  map[int]map[string]model.AccessLevel
}

// Snapshot copies the cached ids and member levels.
func (c *Cache) Snapshot() Snapshot {
	s := Snapshot{
		Groups:   make(map[string]int, len(c.groups)),
		Projects: make(map[string]int, len(c.projects)),
		Users:    make(map[string]int, len(c.users)),
		Members:  make(map[int]map[string]model.AccessLevel, len(c.members)),
	}
	for path, g := range c.groups {
		s.Groups[path] = g.ID
	}
	for k, p := range c.projects {
		s.Projects[fmt.Sprintf("%s:%d", k.name, k.namespaceID)] = p.ID
	}
	for name, u := range c.users {
		s.Users[name] = u.ID
	}
	for gid, members := range c.members {
		levels := make(map[string]model.AccessLevel, len(members))
		for _, m := range members {
			levels[m.Username] = m.AccessLevel
		}
		s.Members[gid] = levels
	}
	return s
}

