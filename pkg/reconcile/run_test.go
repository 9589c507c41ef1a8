package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/mscno/glsync/pkg/model"
	"github.com/mscno/glsync/pkg/platform/memory"
	"github.com/mscno/glsync/pkg/state"
)

func spiderPig() model.ProjectRecord {
	return model.ProjectRecord{
		ProjectID:      "technology.spider-pig",
		ShortProjectID: "spider-pig",
		Name:           "Spider Pig",
		Committers:     []model.RoleEntry{{Username: "alice", URL: "https://api.eclipse.org/account/profile/alice"}},
		ProjectLeads:   []model.RoleEntry{{Username: "bob", URL: "https://api.eclipse.org/account/profile/bob"}},
		GitLabRepos: []model.RepoRef{
			{URL: "https://gitlab.eclipse.org/eclipse/spider-pig/website", Org: "spider-pig", Repo: "website"},
			{URL: "https://gitlab.eclipse.org/eclipse/spider-pig/.github", Org: "spider-pig", Repo: ".github"},
			{URL: "not a repo"},
		},
	}
}

func newRunEngine(t *testing.T, p *memory.Platform, opts Options) (*Engine, *opLog) {
	t.Helper()
	cache, err := state.Seed(context.Background(), p, testLogger())
	assert.NoError(t, err)
	log := &opLog{}
	opts.Platform = p
	opts.Cache = cache
	opts.Recorder = log
	opts.Logger = testLogger()
	e, err := New(opts)
	assert.NoError(t, err)
	p.ResetCalls()
	return e, log
}

var knownProfiles = profiles{
	"alice": {UID: "1", FirstName: "Alice", LastName: "Liddell", Mail: "alice@example.org"},
	"bob":   {UID: "2", FirstName: "Bob", LastName: "Builder", Mail: "bob@example.org"},
}

func TestRunCreatesEverything(t *testing.T) {
	p := memory.New()
	e, log := newRunEngine(t, p, Options{Registry: knownProfiles, Provider: "oauth2_generic"})

	sum, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 0, sum.SkippedProjects)
	assert.Equal(t, 0, sum.Failed)

	assert.Equal(t, []string{
		"create-group Eclipse",
		"create-group Spider Pig",
		"create-user alice",
		"add-member alice",
		"create-user bob",
		"add-member bob",
		"create-project eclipse/spider-pig/website",
	}, log.kinds())

	groups, err := p.ListGroups(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, len(groups))
	assert.Equal(t, "eclipse/spider-pig", groups[1].FullPath)

	users, err := p.ListUsers(context.Background())
	assert.NoError(t, err)
	bob, ok := p.GroupMember(groups[1].ID, users[1].ID)
	assert.True(t, ok)
	assert.Equal(t, model.Maintainer, bob.AccessLevel)
}

func TestRunTwiceIsNoop(t *testing.T) {
	p := memory.New()
	e, _ := newRunEngine(t, p, Options{Registry: knownProfiles})
	_, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)

	e, log := newRunEngine(t, p, Options{Registry: knownProfiles})
	sum, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)
	assert.Equal(t, 0, sum.Mutations())
	assert.Equal(t, 0, p.Mutations())
	assert.Equal(t, 0, len(log.ops))
}

func TestRunRemovesDirectProjectMembers(t *testing.T) {
	p := memory.New()
	e, _ := newRunEngine(t, p, Options{Registry: knownProfiles})
	_, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)

	projects, err := p.ListProjects(context.Background())
	assert.NoError(t, err)
	eve := p.SeedUser(model.User{Username: "eve"})
	p.SeedProjectMember(projects[0].ID, eve, model.Developer)

	e, log := newRunEngine(t, p, Options{Registry: knownProfiles})
	_, err = e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"remove-project-member eve"}, log.kinds())
}

func TestRunFilter(t *testing.T) {
	p := memory.New()
	other := model.ProjectRecord{ProjectID: "technology.other", Name: "Other"}
	e, _ := newRunEngine(t, p, Options{Registry: knownProfiles})

	sum, err := e.Run(context.Background(), []model.ProjectRecord{other, spiderPig()}, "spider-pig")
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Filtered)

	sum, err = e.Run(context.Background(), []model.ProjectRecord{other, spiderPig()}, "technology.other")
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, 1, sum.Filtered)
}

func TestRunDryRunWithoutRootGroup(t *testing.T) {
	p := memory.New()
	e, _ := newRunEngine(t, p, Options{DryRun: true})

	_, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.IsError(t, err, ErrRootGroup)
	assert.IsError(t, err, ErrDryRun)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, p.Mutations())
}

func TestRunDryRunSkipsMissingGroups(t *testing.T) {
	p := memory.New()
	p.SeedGroup(model.Group{Name: "Eclipse", Path: "eclipse", FullPath: "eclipse"})
	e, log := newRunEngine(t, p, Options{DryRun: true})

	sum, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)
	assert.Equal(t, 1, sum.SkippedProjects)
	assert.Equal(t, 1, sum.Planned)
	assert.Equal(t, []string{"create-group Spider Pig"}, log.kinds())
	assert.Equal(t, 0, p.Calls(memory.MethodListGroupMembers))
}

func TestRunSkipsProjectWhenGroupFails(t *testing.T) {
	p := memory.New()
	p.SeedGroup(model.Group{Name: "Eclipse", Path: "eclipse", FullPath: "eclipse"})
	p.FailOn(memory.MethodCreateGroup, errors.New("403 forbidden"))
	e, _ := newRunEngine(t, p, Options{Registry: knownProfiles})

	sum, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig()}, "")
	assert.NoError(t, err)
	assert.Equal(t, Summary{Result: Result{Failed: 1}, SkippedProjects: 1}, sum)
	assert.Equal(t, 0, p.Calls(memory.MethodCreateUser))
	assert.Equal(t, 0, p.Calls(memory.MethodListGroupMembers))
}

func TestRunStopsOnFatalLookup(t *testing.T) {
	p := memory.New()
	e, _ := newRunEngine(t, p, Options{Registry: tokenFailure{}})

	_, err := e.Run(context.Background(), []model.ProjectRecord{spiderPig(), spiderPig()}, "")
	assert.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, 0, p.Calls(memory.MethodCreateUser))
}

func TestRunHonoursCancellation(t *testing.T) {
	p := memory.New()
	p.SeedGroup(model.Group{Name: "Eclipse", Path: "eclipse", FullPath: "eclipse"})
	e, _ := newRunEngine(t, p, Options{Registry: knownProfiles})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []model.ProjectRecord{spiderPig()}, "")
	assert.IsError(t, err, context.Canceled)
	assert.Equal(t, 0, p.Mutations())
}
