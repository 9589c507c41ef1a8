package reconcile

import (
	"context"
	"errors"

	"github.com/mscno/glsync/pkg/model"
)

// ReconcileGroupMembers makes the members of group match roles. Admin members
// are never edited or removed, and bots of projectID are never removed. The
// returned error is non-nil only for failures that must stop the run.
func (e *Engine) ReconcileGroupMembers(ctx context.Context, roles RoleMap, group model.Group, projectID string) (Result, error) {
	var res Result
	if _, err := e.cache.GroupMembers(ctx, e.platform, group.ID); err != nil {
		e.logger.Warn("could not load group members, skipping group", "group", group.Path, "error", err)
		return res, nil
	}

	for _, handle := range roles.Handles() {
		user, ures, err := e.ensureUser(ctx, handle)
		res.Add(ures)
		if err != nil {
			if IsFatal(err) {
				return res, err
			}
			res.Skipped++
			switch {
			case errors.Is(err, ErrDryRun):
				// planned create already recorded
			case errors.Is(err, ErrNoProfile):
				e.logger.Warn("no registry profile, skipping user", "username", handle, "error", err)
			default:
				e.logger.Error("could not ensure user, skipping", "username", handle, "error", err)
			}
			continue
		}
		e.ensureMembership(ctx, &res, user, group, roles[handle].Level, projectID)
	}

	e.removeStrayMembers(ctx, &res, roles, group, projectID)
	return res, nil
}

func (e *Engine) ensureMembership(ctx context.Context, res *Result, user model.User, group model.Group, level model.AccessLevel, projectID string) {
	log := e.logger.With("username", user.Username, "group", group.Path)

	current, ok := e.cache.GroupMember(group.ID, user.Username)
	if ok {
		if current.AccessLevel == level {
			log.Debug("member already has the desired access", "level", level)
			return
		}
		if current.AccessLevel == model.Admin {
			log.Debug("not editing admin member", "desired", level)
			return
		}
		op := model.Operation{Kind: model.OpEditMember, Project: projectID, Target: group.FullPath, Subject: user.Username, AccessLevel: level}
		if e.dryRun {
			log.Info("dry-run: would change member access", "from", current.AccessLevel, "to", level)
			e.record(res, op, nil)
			return
		}
		log.Info("changing member access", "from", current.AccessLevel, "to", level)
		m, err := e.platform.EditGroupMember(ctx, group.ID, user.ID, level)
		e.record(res, op, err)
		if err != nil {
			log.Warn("could not change member access", "error", err)
			return
		}
		e.cache.PutGroupMember(group.ID, m)
		return
	}

	op := model.Operation{Kind: model.OpAddMember, Project: projectID, Target: group.FullPath, Subject: user.Username, AccessLevel: level}
	if e.dryRun {
		log.Info("dry-run: would add member", "level", level)
		e.record(res, op, nil)
		return
	}
	log.Info("adding member", "level", level)
	m, err := e.platform.AddGroupMember(ctx, group.ID, user.ID, level)
	e.record(res, op, err)
	if err != nil {
		log.Warn("could not add member", "error", err)
		return
	}
	e.cache.PutGroupMember(group.ID, m)
}

func (e *Engine) removeStrayMembers(ctx context.Context, res *Result, roles RoleMap, group model.Group, projectID string) {
	members, err := e.cache.GroupMembers(ctx, e.platform, group.ID)
	if err != nil {
		e.logger.Warn("could not load group members, skipping removals", "group", group.Path, "error", err)
		return
	}
	for _, m := range members {
		if _, desired := roles[m.Username]; desired {
			continue
		}
		if m.AccessLevel == model.Admin || e.bots.Has(projectID, m.Username) {
			continue
		}
		log := e.logger.With("username", m.Username, "group", group.Path)
		op := model.Operation{Kind: model.OpRemoveGroupMember, Project: projectID, Target: group.FullPath, Subject: m.Username, AccessLevel: m.AccessLevel}
		if e.dryRun {
			log.Info("dry-run: would remove member")
			e.record(res, op, nil)
			continue
		}
		log.Info("removing member")
		err := e.platform.RemoveGroupMember(ctx, group.ID, m.ID)
		e.record(res, op, err)
		if err != nil {
			log.Warn("could not remove member", "error", err)
			continue
		}
		e.cache.DropGroupMember(group.ID, m.ID)
	}
}

// CleanUpProjectMembers removes every direct member of project that is
// neither an admin nor a bot of projectID. Access is granted through the
// owning group only.
func (e *Engine) CleanUpProjectMembers(ctx context.Context, project model.Project, projectID string) Result {
	var res Result
	members, err := e.platform.ListProjectMembers(ctx, project.ID)
	if err != nil {
		e.logger.Warn("could not list project members", "project", project.Name, "id", project.ID, "error", err)
		return res
	}
	for _, m := range members {
		if m.AccessLevel == model.Admin || e.bots.Has(projectID, m.Username) {
			continue
		}
		log := e.logger.With("username", m.Username, "project", project.Name, "id", project.ID)
		op := model.Operation{Kind: model.OpRemoveProjectMember, Project: projectID, Target: project.Name, Subject: m.Username, AccessLevel: m.AccessLevel}
		if e.dryRun {
			log.Debug("dry-run: would remove direct project member")
			e.record(&res, op, nil)
			continue
		}
		log.Info("removing direct project member")
		err := e.platform.RemoveProjectMember(ctx, project.ID, m.ID)
		e.record(&res, op, err)
		if err != nil {
			log.Error("could not remove direct project member", "error", err)
		}
	}
	return res
}
