// Package memory is an in-memory platform for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mscno/glsync/pkg/model"
	"github.com/mscno/glsync/pkg/platform"
)

// Platform implements platform.Client on top of maps. It is safe for
// concurrent use.
type Platform struct {
	mu             sync.RWMutex
	nextID         int
	groups         map[int]model.Group
	projects       map[int]model.Project
	users          map[int]model.User
	groupMembers   map[int]map[int]model.Member // group id -> user id -> member
	projectMembers map[int]map[int]model.Member // project id -> user id -> member
	failures       map[string]error
	calls          map[string]int
}

func New() *Platform {
	return &Platform{
		nextID:         100,
		groups:         make(map[int]model.Group),
		projects:       make(map[int]model.Project),
		users:          make(map[int]model.User),
		groupMembers:   make(map[int]map[int]model.Member),
		projectMembers: make(map[int]map[int]model.Member),
		failures:       make(map[string]error),
		calls:          make(map[string]int),
	}
}

// Method names accepted by FailOn and Calls.
const (
	MethodCreateGroup         = "CreateGroup"
	MethodCreateProject       = "CreateProject"
	MethodCreateUser          = "CreateUser"
	MethodListGroupMembers    = "ListGroupMembers"
	MethodAddGroupMember      = "AddGroupMember"
	MethodEditGroupMember     = "EditGroupMember"
	MethodRemoveGroupMember   = "RemoveGroupMember"
	MethodRemoveProjectMember = "RemoveProjectMember"
)

var mutating = []string{
	MethodCreateGroup, MethodCreateProject, MethodCreateUser,
	MethodAddGroupMember, MethodEditGroupMember, MethodRemoveGroupMember, MethodRemoveProjectMember,
}

// FailOn makes every call to method return err. A nil err clears the failure.
func (p *Platform) FailOn(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, method)
		return
	}
	p.failures[method] = err
}

// Calls returns how many times method was called, failed calls included.
func (p *Platform) Calls(method string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls[method]
}

// Mutations returns the number of mutating calls made so far.
func (p *Platform) Mutations() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, m := range mutating {
		n += p.calls[m]
	}
	return n
}

// ResetCalls zeroes the call counters.
func (p *Platform) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = make(map[string]int)
}

// must be called with the write lock held
func (p *Platform) enter(method string) error {
	p.calls[method]++
	return p.failures[method]
}

func (p *Platform) id() int {
	p.nextID++
	return p.nextID
}

// SeedGroup stores g as is, assigning an id when g.ID is zero.
func (p *Platform) SeedGroup(g model.Group) model.Group {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g.ID == 0 {
		g.ID = p.id()
	}
	p.groups[g.ID] = g
	return g
}

// SeedProject stores pr as is, assigning an id when pr.ID is zero.
func (p *Platform) SeedProject(pr model.Project) model.Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.ID == 0 {
		pr.ID = p.id()
	}
	p.projects[pr.ID] = pr
	return pr
}

// SeedUser stores u as is, assigning an id when u.ID is zero.
func (p *Platform) SeedUser(u model.User) model.User {
	p.mu.Lock()
	defer p.mu.Unlock()
	if u.ID == 0 {
		u.ID = p.id()
	}
	p.users[u.ID] = u
	return u
}

// SeedGroupMember adds u to the group without counting a call.
func (p *Platform) SeedGroupMember(groupID int, u model.User, level model.AccessLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setMember(p.groupMembers, groupID, model.Member{ID: u.ID, Username: u.Username, AccessLevel: level})
}

// SeedProjectMember adds u directly to the project without counting a call.
func (p *Platform) SeedProjectMember(projectID int, u model.User, level model.AccessLevel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	setMember(p.projectMembers, projectID, model.Member{ID: u.ID, Username: u.Username, AccessLevel: level})
}

// GroupMember returns the current membership of userID in groupID.
func (p *Platform) GroupMember(groupID, userID int) (model.Member, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.groupMembers[groupID][userID]
	return m, ok
}

// ProjectMember returns the direct membership of userID in projectID.
func (p *Platform) ProjectMember(projectID, userID int) (model.Member, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.projectMembers[projectID][userID]
	return m, ok
}

func (p *Platform) ListGroups(ctx context.Context) ([]model.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Group, 0, len(p.groups))
	for _, g := range p.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Platform) ListProjects(ctx context.Context) ([]model.Project, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.Project, 0, len(p.projects))
	for _, pr := range p.projects {
		out = append(out, pr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Platform) ListUsers(ctx context.Context) ([]model.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.User, 0, len(p.users))
	for _, u := range p.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (p *Platform) CreateGroup(ctx context.Context, opts platform.CreateGroupOptions) (model.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodCreateGroup); err != nil {
		return model.Group{}, err
	}
	for _, g := range p.groups {
		if g.Path == opts.Path && g.ParentID == opts.ParentID {
			return model.Group{}, fmt.Errorf("group %q: %w", opts.Path, platform.ErrExists)
		}
	}
	fullPath := opts.Path
	if opts.ParentID != 0 {
		parent, ok := p.groups[opts.ParentID]
		if !ok {
			return model.Group{}, fmt.Errorf("parent group %d: %w", opts.ParentID, platform.ErrNotFound)
		}
		fullPath = parent.FullPath + "/" + opts.Path
	}
	g := model.Group{
		ID:         p.id(),
		Name:       opts.Name,
		Path:       opts.Path,
		FullPath:   fullPath,
		ParentID:   opts.ParentID,
		Visibility: opts.Visibility,
	}
	p.groups[g.ID] = g
	return g, nil
}

func (p *Platform) CreateProject(ctx context.Context, opts platform.CreateProjectOptions) (model.Project, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodCreateProject); err != nil {
		return model.Project{}, err
	}
	if _, ok := p.groups[opts.NamespaceID]; !ok {
		return model.Project{}, fmt.Errorf("namespace %d: %w", opts.NamespaceID, platform.ErrNotFound)
	}
	for _, pr := range p.projects {
		if pr.Name == opts.Path && pr.NamespaceID == opts.NamespaceID {
			return model.Project{}, fmt.Errorf("project %q: %w", opts.Path, platform.ErrExists)
		}
	}
	pr := model.Project{ID: p.id(), Name: opts.Path, Path: opts.Path, NamespaceID: opts.NamespaceID}
	p.projects[pr.ID] = pr
	return pr, nil
}

func (p *Platform) CreateUser(ctx context.Context, opts platform.CreateUserOptions) (model.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodCreateUser); err != nil {
		return model.User{}, err
	}
	for _, u := range p.users {
		if u.Username == opts.Username {
			return model.User{}, fmt.Errorf("user %q: %w", opts.Username, platform.ErrExists)
		}
	}
	u := model.User{ID: p.id(), Username: opts.Username, Name: opts.Name, Email: opts.Email}
	p.users[u.ID] = u
	return u, nil
}

func (p *Platform) ListGroupMembers(ctx context.Context, groupID int) ([]model.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodListGroupMembers); err != nil {
		return nil, err
	}
	if _, ok := p.groups[groupID]; !ok {
		return nil, fmt.Errorf("group %d: %w", groupID, platform.ErrNotFound)
	}
	return members(p.groupMembers[groupID]), nil
}

func (p *Platform) ListProjectMembers(ctx context.Context, projectID int) ([]model.Member, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.projects[projectID]; !ok {
		return nil, fmt.Errorf("project %d: %w", projectID, platform.ErrNotFound)
	}
	return members(p.projectMembers[projectID]), nil
}

func (p *Platform) AddGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodAddGroupMember); err != nil {
		return model.Member{}, err
	}
	u, ok := p.users[userID]
	if !ok {
		return model.Member{}, fmt.Errorf("user %d: %w", userID, platform.ErrNotFound)
	}
	if _, ok := p.groupMembers[groupID][userID]; ok {
		return model.Member{}, fmt.Errorf("member %d of group %d: %w", userID, groupID, platform.ErrExists)
	}
	m := model.Member{ID: u.ID, Username: u.Username, AccessLevel: level}
	setMember(p.groupMembers, groupID, m)
	return m, nil
}

func (p *Platform) EditGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodEditGroupMember); err != nil {
		return model.Member{}, err
	}
	m, ok := p.groupMembers[groupID][userID]
	if !ok {
		return model.Member{}, fmt.Errorf("member %d of group %d: %w", userID, groupID, platform.ErrNotFound)
	}
	m.AccessLevel = level
	setMember(p.groupMembers, groupID, m)
	return m, nil
}

func (p *Platform) RemoveGroupMember(ctx context.Context, groupID, userID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodRemoveGroupMember); err != nil {
		return err
	}
	if _, ok := p.groupMembers[groupID][userID]; !ok {
		return fmt.Errorf("member %d of group %d: %w", userID, groupID, platform.ErrNotFound)
	}
	delete(p.groupMembers[groupID], userID)
	return nil
}

func (p *Platform) RemoveProjectMember(ctx context.Context, projectID, userID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter(MethodRemoveProjectMember); err != nil {
		return err
	}
	if _, ok := p.projectMembers[projectID][userID]; !ok {
		return fmt.Errorf("member %d of project %d: %w", userID, projectID, platform.ErrNotFound)
	}
	delete(p.projectMembers[projectID], userID)
	return nil
}

func setMember(index map[int]map[int]model.Member, parentID int, m model.Member) {
	if index[parentID] == nil {
		index[parentID] = make(map[int]model.Member)
	}
	index[parentID][m.ID] = m
}

func members(byUser map[int]model.Member) []model.Member {
	out := make([]model.Member, 0, len(byUser))
	for _, m := range byUser {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ platform.Client = (*Platform)(nil)
