// Package model holds the types shared between the registry, the platform and
// the reconciliation engine.
package model

import "strings"

// RoleEntry is a single account listed in one of a project's role lists.
type RoleEntry struct {
	Username string `json:"username"`
	URL      string `json:"url"`
}

// RepoRef is an external repository linked to a registry project. Org and Repo
// are derived from URL during post-processing.
type RepoRef struct {
	URL  string `json:"url"`
	Org  string `json:"org,omitempty"`
	Repo string `json:"repo,omitempty"`
}

// ProjectRecord is a project as described by the registry.
type ProjectRecord struct {
	ProjectID      string      `json:"project_id"`
	ShortProjectID string      `json:"short_project_id"`
	Name           string      `json:"name"`
	Contributors   []RoleEntry `json:"contributors"`
	Committers     []RoleEntry `json:"committers"`
	ProjectLeads   []RoleEntry `json:"project_leads"`
	GitLabRepos    []RepoRef   `json:"gitlab_repos"`
	GitHubRepos    []RepoRef   `json:"github_repos"`

	// Filled during post-processing.
	Orgs  []string `json:"-"`
	Repos []string `json:"-"`
}

// ShortID returns the short project id, falling back to the last segment of
// the full project id.
func (p ProjectRecord) ShortID() string {
	if p.ShortProjectID != "" {
		return p.ShortProjectID
	}
	if i := strings.LastIndex(p.ProjectID, "."); i >= 0 {
		return p.ProjectID[i+1:]
	}
	return p.ProjectID
}

// UserProfile is the registry account profile used to create platform users.
type UserProfile struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mail      string `json:"mail"`
}

// DisplayName returns "First Last", or the account name when both are empty.
func (p UserProfile) DisplayName() string {
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if full == "" {
		return p.Name
	}
	return full
}

// BotRecord is a raw entry from the bots API. Besides "projectId" it carries
// one key per site (or site sub-resource) holding an object with a username.
type BotRecord map[string]any

// ProjectID returns the project id the record belongs to.
func (b BotRecord) ProjectID() (string, bool) {
	id, ok := b["projectId"].(string)
	return id, ok && id != ""
}

// BotMap maps a registry project id to the bot handles that must never be
// removed from that project's groups and projects.
type BotMap map[string][]string

// Has reports whether username is a bot for projectID.
func (m BotMap) Has(projectID, username string) bool {
	for _, b := range m[projectID] {
		if b == username {
			return true
		}
	}
	return false
}
