// Package reconcile makes platform groups, projects and memberships match the
// roles declared in the registry.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mscno/glsync/pkg/model"
	"github.com/mscno/glsync/pkg/platform"
	"github.com/mscno/glsync/pkg/state"
)

var (
	// ErrDryRun is returned when an entity is missing and dry-run prevents
	// creating it.
	ErrDryRun = errors.New("dry-run: not created")
	// ErrRootGroup is returned by Run when the root group cannot be ensured.
	ErrRootGroup = errors.New("root group could not be ensured")
	// ErrNoProfile is returned when a new account cannot be created because
	// the registry has no profile for the handle.
	ErrNoProfile = errors.New("no registry profile")
	// ErrSkipped is returned for repositories that are never mirrored.
	ErrSkipped = errors.New("skipped")
)

// IsFatal reports whether err must stop the whole run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRootGroup) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}

// ProfileResolver looks up registry profiles for new accounts.
type ProfileResolver interface {
	ResolveUser(ctx context.Context, handle string) (model.UserProfile, error)
}

// Options configures an Engine.
type Options struct {
	Platform platform.Client
	Registry ProfileResolver
	Cache    *state.Cache
	Bots     model.BotMap
	DryRun   bool
	// Provider is the external identity provider linked to new accounts.
	Provider      string
	RootGroupName string
	RootGroupPath string
	Logger        *slog.Logger
	Recorder      model.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine applies desired state to the platform, one project at a time.
type Engine struct {
	platform platform.Client
	registry ProfileResolver
	cache    *state.Cache
	bots     model.BotMap
	dryRun   bool
	provider string
	rootName string
	rootPath string
	logger   *slog.Logger
	recorder model.Recorder
	now      func() time.Time
}

const (
	defaultRootGroupName = "Eclipse"
	defaultRootGroupPath = "eclipse"
)

// New creates an engine. Platform and Cache are required; the root group
// defaults to Eclipse/eclipse.
func New(opts Options) (*Engine, error) {
	if opts.Platform == nil {
		return nil, errors.New("platform client is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("state cache is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bots == nil {
		opts.Bots = model.BotMap{}
	}
	if opts.RootGroupName == "" {
		opts.RootGroupName = defaultRootGroupName
	}
	if opts.RootGroupPath == "" {
		opts.RootGroupPath = defaultRootGroupPath
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		platform: opts.Platform,
		registry: opts.Registry,
		cache:    opts.Cache,
		bots:     opts.Bots,
		dryRun:   opts.DryRun,
		provider: opts.Provider,
		rootName: opts.RootGroupName,
		rootPath: opts.RootGroupPath,
		logger:   opts.Logger,
		recorder: opts.Recorder,
		now:      opts.Now,
	}, nil
}

// Result counts the operations issued by one reconciliation step.
type Result struct {
	Applied int
	Planned int
	Failed  int
	// Skipped counts handles that could not be resolved to an account.
	Skipped int
}

// Add accumulates o into r.
func (r *Result) Add(o Result) {
	r.Applied += o.Applied
	r.Planned += o.Planned
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Mutations is the number of mutating calls that reached the platform.
func (r Result) Mutations() int {
	return r.Applied + r.Failed
}

// record emits op and counts it in res. A nil err marks it applied, unless
// the engine is in dry-run.
func (e *Engine) record(res *Result, op model.Operation, err error) {
	op.DryRun = e.dryRun
	op.At = e.now()
	switch {
	case err != nil:
		op.Error = err.Error()
		res.Failed++
	case e.dryRun:
		res.Planned++
	default:
		res.Applied++
	}
	if e.recorder != nil {
		e.recorder.Record(op)
	}
}

// EnsureGroup returns the group with the sanitized pathSeed, creating it under
// parent when missing. A nil parent creates a top-level group.
func (e *Engine) EnsureGroup(ctx context.Context, name, pathSeed string, parent *model.Group) (model.Group, error) {
	g, _, err := e.ensureGroup(ctx, name, pathSeed, parent)
	return g, err
}

func (e *Engine) ensureGroup(ctx context.Context, name, pathSeed string, parent *model.Group) (model.Group, Result, error) {
	var res Result
	path := model.SanitizePath(pathSeed)
	if g, ok := e.cache.Group(path); ok {
		return g, res, nil
	}

	opts := platform.CreateGroupOptions{
		Name:                 name,
		Path:                 path,
		Visibility:           platform.VisibilityPublic,
		ProjectCreationLevel: platform.ProjectCreationMaintainer,
		RequestAccessEnabled: false,
	}
	if parent != nil {
		opts.ParentID = parent.ID
	}
	op := model.Operation{Kind: model.OpCreateGroup, Target: path, Subject: name}

	if e.dryRun {
		e.logger.Info("dry-run: would create group", "name", name, "path", path, "parent", opts.ParentID)
		e.record(&res, op, nil)
		return model.Group{}, res, fmt.Errorf("group %q: %w", path, ErrDryRun)
	}

	e.logger.Debug("creating group", "options", opts)
	g, err := e.platform.CreateGroup(ctx, opts)
	e.record(&res, op, err)
	if err != nil {
		return model.Group{}, res, fmt.Errorf("could not ensure group %q: %w", path, err)
	}
	e.logger.Info("created group", "name", name, "path", path, "id", g.ID)
	e.cache.PutGroup(g)
	return g, res, nil
}

// EnsureProject returns the project called name inside parent, creating a
// public project when missing. Repositories named .github are never created.
func (e *Engine) EnsureProject(ctx context.Context, name string, parent model.Group) (model.Project, error) {
	p, _, err := e.ensureProject(ctx, name, parent)
	return p, err
}

func (e *Engine) ensureProject(ctx context.Context, name string, parent model.Group) (model.Project, Result, error) {
	var res Result
	if strings.TrimSpace(name) == ".github" {
		e.logger.Warn("skipping .github repository, it has no platform equivalent", "group", parent.Path)
		return model.Project{}, res, fmt.Errorf("project %q: %w", name, ErrSkipped)
	}
	if p, ok := e.cache.Project(name, parent.ID); ok {
		return p, res, nil
	}

	opts := platform.CreateProjectOptions{
		Path:        name,
		NamespaceID: parent.ID,
		Visibility:  platform.VisibilityPublic,
	}
	op := model.Operation{Kind: model.OpCreateProject, Target: parent.FullPath + "/" + name}

	if e.dryRun {
		e.logger.Info("dry-run: would create project", "name", name, "namespace", parent.ID)
		e.record(&res, op, nil)
		return model.Project{}, res, fmt.Errorf("project %q: %w", name, ErrDryRun)
	}

	e.logger.Debug("creating project", "options", opts)
	p, err := e.platform.CreateProject(ctx, opts)
	e.record(&res, op, err)
	if err != nil {
		return model.Project{}, res, fmt.Errorf("could not ensure project %q: %w", name, err)
	}
	e.logger.Info("created project", "name", name, "namespace", parent.ID, "id", p.ID)
	e.cache.PutProject(p)
	return p, res, nil
}

// EnsureUser returns the account for handle, creating one linked to the
// registry profile when missing.
func (e *Engine) EnsureUser(ctx context.Context, handle string) (model.User, error) {
	u, _, err := e.ensureUser(ctx, handle)
	return u, err
}

func (e *Engine) ensureUser(ctx context.Context, handle string) (model.User, Result, error) {
	var res Result
	if u, ok := e.cache.User(handle); ok {
		return u, res, nil
	}
	op := model.Operation{Kind: model.OpCreateUser, Target: handle}

	if e.dryRun {
		e.logger.Info("dry-run: would create user", "username", handle)
		e.record(&res, op, nil)
		return model.User{}, res, fmt.Errorf("user %q: %w", handle, ErrDryRun)
	}
	if e.registry == nil {
		return model.User{}, res, fmt.Errorf("user %q: %w", handle, ErrNoProfile)
	}

	profile, err := e.registry.ResolveUser(ctx, handle)
	if err != nil {
		if IsFatal(err) {
			return model.User{}, res, err
		}
		return model.User{}, res, fmt.Errorf("user %q: %w: %w", handle, ErrNoProfile, err)
	}

	opts := platform.CreateUserOptions{
		Username:            handle,
		Password:            uuid.NewString(),
		ForceRandomPassword: true,
		Name:                profile.DisplayName(),
		Email:               profile.Mail,
		ExternUID:           profile.UID,
		Provider:            e.provider,
		SkipConfirmation:    true,
	}
	e.logger.Debug("creating user", "options", opts.Redacted())
	u, err := e.platform.CreateUser(ctx, opts)
	e.record(&res, op, err)
	if err != nil {
		return model.User{}, res, fmt.Errorf("could not ensure user %q: %w", handle, err)
	}
	e.logger.Info("created user", "username", handle, "id", u.ID)
	e.cache.PutUser(u)
	return u, res, nil
}
