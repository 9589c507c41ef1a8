package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mscno/glsync/pkg/model"
)

// Summary describes a complete run.
type Summary struct {
	Result
	// Processed counts projects whose group was ensured.
	Processed int
	// SkippedProjects counts projects left untouched because their group could
	// not be ensured.
	SkippedProjects int
	// Filtered counts projects excluded by the project filter.
	Filtered int
}

// Run reconciles every record, or only the one whose project id or short id
// equals filter when filter is set. Projects are processed one after the
// other. The root group must exist or be created first.
func (e *Engine) Run(ctx context.Context, records []model.ProjectRecord, filter string) (Summary, error) {
	var sum Summary

	root, res, err := e.ensureGroup(ctx, e.rootName, e.rootPath, nil)
	sum.Add(res)
	if err != nil {
		return sum, fmt.Errorf("%w: %w", ErrRootGroup, err)
	}
	e.logger.Info("starting sync", "root", root.FullPath, "projects", len(records), "dry_run", e.dryRun)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if filter != "" && record.ProjectID != filter && record.ShortID() != filter {
			e.logger.Debug("skipping project not matching filter", "project", record.ProjectID, "filter", filter)
			sum.Filtered++
			continue
		}

		res, ok, err := e.syncProject(ctx, record, root)
		sum.Add(res)
		if err != nil {
			return sum, err
		}
		if ok {
			sum.Processed++
		} else {
			sum.SkippedProjects++
		}
	}

	e.logger.Info("sync finished",
		"processed", sum.Processed,
		"skipped", sum.SkippedProjects,
		"applied", sum.Applied,
		"planned", sum.Planned,
		"failed", sum.Failed)
	return sum, nil
}

func (e *Engine) syncProject(ctx context.Context, record model.ProjectRecord, root model.Group) (Result, bool, error) {
	var res Result
	log := e.logger.With("project", record.ProjectID)
	log.Info("processing project")

	group, gres, err := e.ensureGroup(ctx, record.Name, record.ShortID(), &root)
	res.Add(gres)
	if err != nil {
		if errors.Is(err, ErrDryRun) {
			log.Warn("group does not exist and dry-run is set, skipping project")
		} else {
			log.Error("group could not be created, skipping project", "error", err)
		}
		return res, false, nil
	}

	roles := DesiredRoles(record, e.bots)
	mres, err := e.ReconcileGroupMembers(ctx, roles, group, record.ProjectID)
	res.Add(mres)
	if err != nil {
		return res, true, err
	}

	for _, repo := range record.GitLabRepos {
		if repo.Org == "" || repo.Repo == "" {
			continue
		}
		log.Debug("processing repository", "url", repo.URL)
		project, pres, err := e.ensureProject(ctx, repo.Repo, group)
		res.Add(pres)
		if err != nil {
			if !errors.Is(err, ErrDryRun) && !errors.Is(err, ErrSkipped) {
				log.Warn("could not ensure project", "repo", repo.Repo, "error", err)
			}
			continue
		}
		res.Add(e.CleanUpProjectMembers(ctx, project, record.ProjectID))
	}
	return res, true, nil
}
