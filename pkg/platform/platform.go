// Package platform defines the operations a sync run needs from the source
// hosting platform.
package platform

import (
	"context"
	"errors"

	"github.com/mscno/glsync/pkg/model"
)

var (
	ErrNotFound = errors.New("not found on platform")
	ErrExists   = errors.New("already exists on platform")
)

// Client is the set of platform primitives used by the reconciliation engine.
// Ids are platform-assigned integers.
type Client interface {
	ListGroups(ctx context.Context) ([]model.Group, error)
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	CreateGroup(ctx context.Context, opts CreateGroupOptions) (model.Group, error)
	CreateProject(ctx context.Context, opts CreateProjectOptions) (model.Project, error)
	CreateUser(ctx context.Context, opts CreateUserOptions) (model.User, error)

	ListGroupMembers(ctx context.Context, groupID int) ([]model.Member, error)
	// ListProjectMembers returns direct project members only, not the ones
	// inherited from the owning groups.
	ListProjectMembers(ctx context.Context, projectID int) ([]model.Member, error)

	AddGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error)
	EditGroupMember(ctx context.Context, groupID, userID int, level model.AccessLevel) (model.Member, error)
	RemoveGroupMember(ctx context.Context, groupID, userID int) error
	RemoveProjectMember(ctx context.Context, projectID, userID int) error
}

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	ProjectCreationMaintainer = "maintainer"
)

// CreateGroupOptions describes a new group. ParentID 0 creates a top-level group.
type CreateGroupOptions struct {
	Name                 string `json:"name"`
	Path                 string `json:"path"`
	ParentID             int    `json:"parent_id,omitempty"`
	Visibility           string `json:"visibility"`
	ProjectCreationLevel string `json:"project_creation_level"`
	RequestAccessEnabled bool   `json:"request_access_enabled"`
}

// CreateProjectOptions describes a new project inside a namespace.
type CreateProjectOptions struct {
	Path        string `json:"path"`
	NamespaceID int    `json:"namespace_id,omitempty"`
	Visibility  string `json:"visibility"`
}

// CreateUserOptions describes a new account linked to an external identity.
type CreateUserOptions struct {
	Username            string `json:"username"`
	Password            string `json:"password"`
	ForceRandomPassword bool   `json:"force_random_password"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	ExternUID           string `json:"extern_uid"`
	Provider            string `json:"provider"`
	SkipConfirmation    bool   `json:"skip_confirmation"`
}

// Redacted returns a copy safe for logging.
func (o CreateUserOptions) Redacted() CreateUserOptions {
	o.Password = "redacted"
	return o
}
