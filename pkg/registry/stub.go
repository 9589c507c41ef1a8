package registry

import "github.com/mscno/glsync/pkg/model"

// stubProjects is the payload served in test mode. It targets a sandbox group
// so that dev runs never touch production projects.
func stubProjects() []model.ProjectRecord {
	return []model.ProjectRecord{{
		ProjectID:      "spider.pig",
		ShortProjectID: "spider.pig",
		Name:           "Spider pig does what a spider pig does",
		GitHubRepos: []model.RepoRef{
			{URL: "https://github.com/eclipsefdn-webdev/spider-pig"},
		},
		GitLabRepos: []model.RepoRef{
			{URL: "https://gitlab.eclipse.org/eclipsefdn/webdev/gitlab-testing"},
		},
		Contributors: []model.RoleEntry{},
		Committers: []model.RoleEntry{
			{Username: "malowe", URL: "https://api.eclipse.org/account/profile/malowe"},
			{Username: "epoirier", URL: "https://api.eclipse.org/account/profile/epoirier"},
		},
		ProjectLeads: []model.RoleEntry{
			{Username: "malowe", URL: "https://api.eclipse.org/account/profile/malowe"},
			{Username: "cguindon", URL: "https://api.eclipse.org/account/profile/cguindon"},
		},
	}}
}
