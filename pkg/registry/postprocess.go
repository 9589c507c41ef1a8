package registry

import (
	"log/slog"
	"regexp"

	"github.com/mscno/glsync/pkg/model"
)

var repoURLPattern = regexp.MustCompile(`.*/([^/]+)/([^/]+)/?$`)

// PostProcess derives the owning org and repository name of every GitLab repo
// and drops projects that have no GitLab repos at all. URLs that do not look
// like <host>/<org>/<repo> are logged and left without org/repo.
func PostProcess(records []model.ProjectRecord, logger *slog.Logger) []model.ProjectRecord {
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]model.ProjectRecord, 0, len(records))
	for _, project := range records {
		if len(project.GitLabRepos) == 0 {
			continue
		}
		project.Orgs = nil
		project.Repos = nil
		repos := make([]model.RepoRef, len(project.GitLabRepos))
		for i, repo := range project.GitLabRepos {
			match := repoURLPattern.FindStringSubmatch(repo.URL)
			if match == nil {
				logger.Warn("no org/repo match for repo url", "project", project.ProjectID, "url", repo.URL)
				repos[i] = repo
				continue
			}
			repo.Org, repo.Repo = match[1], match[2]
			repos[i] = repo
			project.Orgs = appendMissing(project.Orgs, repo.Org)
			project.Repos = appendMissing(project.Repos, repo.Repo)
		}
		project.GitLabRepos = repos
		out = append(out, project)
	}
	return out
}

func appendMissing(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
