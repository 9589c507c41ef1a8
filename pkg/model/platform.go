package model

import (
	"fmt"
	"time"
)

// AccessLevel is the platform's ordered permission scale.
type AccessLevel int

const (
	NoAccess   AccessLevel = 0
	Reporter   AccessLevel = 20
	Developer  AccessLevel = 30
	Maintainer AccessLevel = 40
	// Admin is the protected level: members holding it are never edited or
	// removed by a sync run.
	Admin AccessLevel = 50
)

func (l AccessLevel) String() string {
	switch l {
	case NoAccess:
		return "none"
	case Reporter:
		return "reporter"
	case Developer:
		return "developer"
	case Maintainer:
		return "maintainer"
	case Admin:
		return "admin"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Group is a platform group.
type Group struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	FullPath   string `json:"full_path"`
	ParentID   int    `json:"parent_id"`
	Visibility string `json:"visibility"`
}

// Project is a platform project. Name and NamespaceID together are unique.
type Project struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	NamespaceID int    `json:"namespace_id"`
}

// User is a platform account.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// Member is a user's membership in a group or project. ID is the user id.
type Member struct {
	ID          int         `json:"id"`
	Username    string      `json:"username"`
	AccessLevel AccessLevel `json:"access_level"`
}

// OpKind names a mutating operation against the platform.
type OpKind string

const (
	OpCreateGroup         OpKind = "create-group"
	OpCreateProject       OpKind = "create-project"
	OpCreateUser          OpKind = "create-user"
	OpAddMember           OpKind = "add-member"
	OpEditMember          OpKind = "edit-member"
	OpRemoveGroupMember   OpKind = "remove-group-member"
	OpRemoveProjectMember OpKind = "remove-project-member"
)

// Operation records one mutation, applied or (under dry-run) only planned.
type Operation struct {
	Kind        OpKind      `json:"kind"`
	Project     string      `json:"project,omitempty"`
	Target      string      `json:"target"`
	Subject     string      `json:"subject,omitempty"`
	AccessLevel AccessLevel `json:"access_level,omitempty"`
	DryRun      bool        `json:"dry_run"`
	Error       string      `json:"error,omitempty"`
	At          time.Time   `json:"at"`
}

// Failed reports whether the operation was attempted and errored.
func (o Operation) Failed() bool {
	return o.Error != ""
}

// Recorder receives every applied, planned or failed operation.
type Recorder interface {
	Record(op Operation)
}
