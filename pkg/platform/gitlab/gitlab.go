// Package gitlab implements platform.Client against the GitLab REST API.
package gitlab

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mscno/glsync/pkg/model"
	"github.com/mscno/glsync/pkg/platform"
	gl "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"
)

const defaultPerPage = 100

// Config holds configuration for creating a new Client.
type Config struct {
	BaseURL string
	Token   string
	// RateLimit is the number of requests per second; zero means unlimited.
	RateLimit  float64
	Burst      int
	PerPage    int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client wraps the GitLab API client.
type Client struct {
	api     *gl.Client
	perPage int
	logger  *slog.Logger
}

// New creates a GitLab platform client. Requests are never retried.
func New(config Config) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("gitlab access token is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PerPage <= 0 {
		config.PerPage = defaultPerPage
	}
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.Burst
	if burst < 1 {
		burst = 1
	}

	opts := []gl.ClientOptionFunc{
		gl.WithCustomRetryMax(0),
		gl.WithCustomLimiter(rate.NewLimiter(limit, burst)),
	}
	if config.BaseURL != "" {
		opts = append(opts, gl.WithBaseURL(config.BaseURL))
	}
	if config.HTTPClient != nil {
		opts = append(opts, gl.WithHTTPClient(config.HTTPClient))
	}
	api, err := gl.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &Client{api: api, perPage: config.PerPage, logger: config.Logger}, nil
}

func paginate[T any](perPage int, fetch func(gl.ListOptions) ([]T, *gl.Response, error)) ([]T, error) {
	var all []T
	page := 1
	for {
		items, resp, err := fetch(gl.ListOptions{PerPage: perPage, Page: page})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if resp == nil || resp.NextPage == 0 {
			return all, nil
		}
		page = resp.NextPage
	}
}

func (c *Client) ListGroups(ctx context.Context) ([]model.Group, error) {
	groups, err := paginate(c.perPage, func(lo gl.ListOptions) ([]*gl.Group, *gl.Response, error) {
		return c.api.Groups.ListGroups(&gl.ListGroupsOptions{ListOptions: lo, AllAvailable: gl.Ptr(true)}, gl.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	out := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroup(g))
	}
	c.logger.Debug("listed groups", "count", len(out))
	return out, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	projects, err := paginate(c.perPage, func(lo gl.ListOptions) ([]*gl.Project, *gl.Response, error) {
		return c.api.Projects.ListProjects(&gl.ListProjectsOptions{ListOptions: lo, Simple: gl.Ptr(true)}, gl.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		out = append(out, toProject(p))
	}
	c.logger.Debug("listed projects", "count", len(out))
	return out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := paginate(c.perPage, func(lo gl.ListOptions) ([]*gl.User, *gl.Response, error) {
		return c.api.Users.ListUsers(&gl.ListUsersOptions{ListOptions: lo}, gl.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	out := make([]model.User, 0, len(users))
	for _, u := range users {
		out = append(out, toUser(u))
	}
	c.logger.Debug("listed users", "count", len(out))
	return out, nil
}

func (c *Client) CreateGroup(ctx context.Context, opts platform.CreateGroupOptions) (model.Group, error) {
	req := &gl.CreateGroupOptions{
		Name:                 gl.Ptr(opts.Name),
		Path:                 gl.Ptr(opts.Path),
		Visibility:           gl.Ptr(gl.VisibilityValue(opts.Visibility)),
		ProjectCreationLevel: gl.Ptr(gl.ProjectCreationLevelValue(opts.ProjectCreationLevel)),
		RequestAccessEnabled: gl.Ptr(opts.RequestAccessEnabled),
	}
	if opts.ParentID != 0 {
		req.ParentID = gl.Ptr(opts.ParentID)
	}
	g, _, err := c.api.Groups.CreateGroup(req, gl.WithContext(ctx))
	if err != nil {
		return model.Group{}, fmt.Errorf("creating group %q: %w", opts.Path, err)
	}
	return toGroup(g), nil
}

func (c *Client) CreateProject(ctx context.Context, opts platform.CreateProjectOptions) (model.Project, error) {
	req := &gl.CreateProjectOptions{
		Path:       gl.Ptr(opts.Path),
		Visibility: gl.Ptr(gl.VisibilityValue(opts.Visibility)),
	}
	if opts.NamespaceID != 0 {
		req.NamespaceID = gl.Ptr(opts.NamespaceID)
	}
	p, _, err := c.api.Projects.CreateProject(req, gl.WithContext(ctx))
	if err != nil {
		return model.Project{}, fmt.Errorf("creating project %q: %w", opts.Path, err)
	}
	return toProject(p), nil
}

func (c *Client) CreateUser(ctx context.Context, opts platform.CreateUserOptions) (model.User, error) {
	u, _, err := c.api.Users.CreateUser(&gl.CreateUserOptions{
		Username:            gl.Ptr(opts.Username),
		Password:            gl.Ptr(opts.Password),
		ForceRandomPassword: gl.Ptr(opts.ForceRandomPassword),
		Name:                gl.Ptr(opts.Name),
		Email:               gl.Ptr(opts.Email),
		ExternUID:           gl.Ptr(opts.ExternUID),
		Provider:            gl.Ptr(opts.Provider),
		SkipConfirmation:    gl.Ptr(opts.SkipConfirmation),
	}, gl.WithContext(ctx))
	if err != nil {
		return model.User{}, fmt.Errorf("creating user %q: %w", opts.Username, err)
	}
	return toUser(u), nil
}

func (c *Client) ListGroupMembers(ctx context.Context, groupID int) ([]model.Member, error) {
	members, err := paginate(c.perPage, func(lo gl.ListOptions) ([]*gl.GroupMember, *gl.Response, error) {
		return c.api.Groups.ListGroupMembers(groupID, &gl.ListGroupMembersOptions{ListOptions: lo}, gl.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing members of group %d: %w", groupID, err)
	}
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		out = append(out, model.Member{ID: m.ID, Username: m.Username, AccessLevel: model.AccessLevel(m.AccessLevel)})
	}
	return out, nil
}

func (c *Client) ListProjectMembers(ctx context.Context, projectID int) ([]model.Member, error) {
	members, err := paginate(c.perPage, func(lo gl.ListOptions) ([]*gl.ProjectMember, *gl.Response, error) {
		return c.api.ProjectMembers.ListProjectMembers(projectID, &gl.ListProjectMembersOptions{ListOptions: lo}, gl.WithContext(ctx))
	})
	if err != nil {
		return nil, fmt.Errorf("listing members of project %d: %w", projectID, err)
	}
	out := make([]model.Member, 0, len(members))
	for _, m := range members {
		out = append(out, model.Member{ID: m.ID, Username: m.Username, AccessLevel: model.AccessLevel(m.AccessLevel)})
	}
	return out, nil
}

func (c *Client) AddGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error) {
	m, _, err := c.api.GroupMembers.AddGroupMember(groupID, &gl.AddGroupMemberOptions{
		UserID:      gl.Ptr(userID),
		AccessLevel: gl.Ptr(gl.AccessLevelValue(level)),
	}, gl.WithContext(ctx))
	if err != nil {
		return model.Member{}, fmt.Errorf("adding user %d to group %d: %w", userID, groupID, err)
	}
	return model.Member{ID: m.ID, Username: m.Username, AccessLevel: model.AccessLevel(m.AccessLevel)}, nil
}

func (c *Client) EditGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error) {
	m, _, err := c.api.GroupMembers.EditGroupMember(groupID, userID, &gl.EditGroupMemberOptions{
		AccessLevel: gl.Ptr(gl.AccessLevelValue(level)),
	}, gl.WithContext(ctx))
	if err != nil {
		return model.Member{}, fmt.Errorf("editing user %d in group %d: %w", userID, groupID, err)
	}
	return model.Member{ID: m.ID, Username: m.Username, AccessLevel: model.AccessLevel(m.AccessLevel)}, nil
}

func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID int) error {
	if _, err := c.api.GroupMembers.RemoveGroupMember(groupID, userID, &gl.RemoveGroupMemberOptions{}, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("removing user %d from group %d: %w", userID, groupID, err)
	}
	return nil
}

func (c *Client) RemoveProjectMember(ctx context.Context, projectID, userID int) error {
	if _, err := c.api.ProjectMembers.DeleteProjectMember(projectID, userID, gl.WithContext(ctx)); err != nil {
		return fmt.Errorf("removing user %d from project %d: %w", userID, projectID, err)
	}
	return nil
}

func toGroup(g *gl.Group) model.Group {
	return model.Group{
		ID:         g.ID,
		Name:       g.Name,
		Path:       g.Path,
		FullPath:   g.FullPath,
		ParentID:   g.ParentID,
		Visibility: string(g.Visibility),
	}
}

func toProject(p *gl.Project) model.Project {
	out := model.Project{ID: p.ID, Name: p.Name, Path: p.Path}
	if p.Namespace != nil {
		out.NamespaceID = p.Namespace.ID
	}
	return out
}

func toUser(u *gl.User) model.User {
	return model.User{ID: u.ID, Username: u.Username, Name: u.Name, Email: u.Email}
}

var _ platform.Client = (*Client)(nil)
