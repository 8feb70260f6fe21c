package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplej/internal/config"
	"simplej/internal/errors"
	"simplej/internal/testutil"
)

// setupProject returns a manager for a fresh project whose origin is a local
// bare repository
func setupProject(t *testing.T) (*Manager, string) {
	t.Helper()

	origin := filepath.Join(t.TempDir(), "origin.git")
	_, err := git.PlainInit(origin, true)
	require.NoError(t, err)

	cfg := testutil.SetupProject(t, fmt.Sprintf(`
[git]
remote_url = %q
author_name = "Test User"
author_email = "test@example.com"
`, origin))
	return New(cfg), origin
}

func startedProject(t *testing.T) (*Manager, string) {
	t.Helper()
	m, origin := setupProject(t)
	require.NoError(t, m.Start(context.Background()))
	return m, origin
}

func head(t *testing.T, dir string) plumbing.Hash {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	ref, err := repo.Head()
	require.NoError(t, err)
	return ref.Hash()
}

func branchHash(t *testing.T, dir, branch string) (plumbing.Hash, bool) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, false
	}
	require.NoError(t, err)
	return ref.Hash(), true
}

func TestStart(t *testing.T) {
	ctx := context.Background()
	m, origin := setupProject(t)

	assert.False(t, m.IsRepository())
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.IsRepository())

	branch, err := m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)

	ignore, err := os.ReadFile(filepath.Join(m.dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(ignore), ".simplej/")

	repo, err := git.PlainOpen(m.dir)
	require.NoError(t, err)
	remote, err := repo.Remote("origin")
	require.NoError(t, err)
	assert.Equal(t, []string{origin}, remote.Config().URLs)

	commit, err := repo.CommitObject(head(t, m.dir))
	require.NoError(t, err)
	assert.Equal(t, "Initial commit", commit.Message)
	assert.Equal(t, "Test User", commit.Author.Name)

	dirty, err := m.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	err = m.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGitRepoExists))
}

func TestOperationsOutsideRepository(t *testing.T) {
	m, _ := setupProject(t)

	err := m.Branch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGitRepoNotFound))
}

func TestBranchOnlyFromMaster(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)

	require.NoError(t, m.Branch(ctx))
	branch, err := m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", branch)

	err = m.Branch(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBranchPrecondition))
	assert.Contains(t, err.Error(), "current branch: dev")

	branches, err := m.Branches(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"master", "dev"}, branches)
}

func TestBranchKeepsLocalChanges(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	testutil.WriteFile(t, m.dir, "simplej.toml", "# edited\n")

	require.NoError(t, m.Branch(ctx))

	content, err := os.ReadFile(filepath.Join(m.dir, "simplej.toml"))
	require.NoError(t, err)
	assert.Equal(t, "# edited\n", string(content))
}

func TestCommitOnlyOnDev(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	before := head(t, m.dir)
	testutil.WriteFile(t, m.dir, "analysis.ipynb", "{}")

	_, err := m.Commit(ctx, "work")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBranchPrecondition))
	assert.Contains(t, err.Error(), "current branch: master")
	assert.Equal(t, before, head(t, m.dir))

	dirty, err := m.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty, "a refused commit leaves changes in place")
}

func TestCommitRejectsEmptyMessage(t *testing.T) {
	m, _ := startedProject(t)
	require.NoError(t, m.Branch(context.Background()))

	_, err := m.Commit(context.Background(), "  ")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInput))
}

func TestCommitNothingToCommit(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	require.NoError(t, m.Branch(ctx))

	_, err := m.Commit(ctx, "nothing")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNothingToCommit))
}

func TestMergeOnlyFromDev(t *testing.T) {
	m, _ := startedProject(t)

	err := m.Merge(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBranchPrecondition))
}

func TestWorkflowScenario(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)

	require.NoError(t, m.Branch(ctx))
	testutil.WriteFile(t, m.dir, "notebooks/analysis.ipynb", `{"cells": []}`)

	hash, err := m.Commit(ctx, "msg")
	require.NoError(t, err)
	devHash, ok := branchHash(t, m.dir, "dev")
	require.True(t, ok)
	assert.Equal(t, hash, devHash.String())

	require.NoError(t, m.Merge(ctx))
	branch, err := m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
	assert.Equal(t, devHash, head(t, m.dir))
	assert.FileExists(t, filepath.Join(m.dir, "notebooks", "analysis.ipynb"))

	dirty, err := m.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, m.Rollback(ctx))
	branch, err = m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
	_, ok = branchHash(t, m.dir, "dev")
	assert.False(t, ok)

	// Idempotent
	require.NoError(t, m.Rollback(ctx))
	branch, err = m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestMergeWhenMasterAlreadyContainsDev(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	before := head(t, m.dir)

	require.NoError(t, m.Branch(ctx))
	require.NoError(t, m.Merge(ctx))
	assert.Equal(t, before, head(t, m.dir))

	branch, err := m.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", branch)
}

func TestRollbackFromDevDiscardsBranch(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	masterHash := head(t, m.dir)

	require.NoError(t, m.Branch(ctx))
	testutil.WriteFile(t, m.dir, "scratch.ipynb", "{}")
	_, err := m.Commit(ctx, "scratch")
	require.NoError(t, err)

	require.NoError(t, m.Rollback(ctx))
	assert.Equal(t, masterHash, head(t, m.dir))
	assert.NoFileExists(t, filepath.Join(m.dir, "scratch.ipynb"))
	_, ok := branchHash(t, m.dir, "dev")
	assert.False(t, ok)
}

func TestPush(t *testing.T) {
	ctx := context.Background()
	m, origin := startedProject(t)

	result, err := m.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, "master", result.Branch)
	assert.False(t, result.UpToDate)
	assert.Empty(t, result.Status)

	remoteMaster, ok := branchHash(t, origin, "master")
	require.True(t, ok)
	assert.Equal(t, head(t, m.dir), remoteMaster)

	result, err = m.Push(ctx)
	require.NoError(t, err)
	assert.True(t, result.UpToDate)
}

func TestPushOffMasterReportsStatus(t *testing.T) {
	ctx := context.Background()
	m, origin := startedProject(t)
	require.NoError(t, m.Branch(ctx))

	result, err := m.Push(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", result.Branch)
	assert.Contains(t, result.Status, "On branch dev")

	_, ok := branchHash(t, origin, "dev")
	assert.True(t, ok, "all branches are pushed")
}

func TestPushWithoutRemote(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.SetupProject(t, "")
	m := New(cfg)
	require.NoError(t, m.Start(ctx))

	_, err := m.Push(ctx)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGitRemoteNotFound))
}

func TestCommitPush(t *testing.T) {
	ctx := context.Background()
	m, origin := startedProject(t)
	require.NoError(t, m.Branch(ctx))
	testutil.WriteFile(t, m.dir, "analysis.ipynb", "{}")

	result, err := m.CommitPush(ctx, "publish")
	require.NoError(t, err)
	assert.Equal(t, "master", result.Branch)

	devHash, ok := branchHash(t, m.dir, "dev")
	require.True(t, ok)
	remoteMaster, ok := branchHash(t, origin, "master")
	require.True(t, ok)
	assert.Equal(t, devHash, remoteMaster)
}

func TestCommitPushRefusesOffDev(t *testing.T) {
	ctx := context.Background()
	m, origin := startedProject(t)

	_, err := m.CommitPush(ctx, "publish")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBranchPrecondition))

	_, ok := branchHash(t, origin, "master")
	assert.False(t, ok, "nothing is pushed")
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "On branch master\nnothing to commit, working tree clean\n", status)

	testutil.WriteFile(t, m.dir, "new.ipynb", "{}")
	status, err = m.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status, "?? new.ipynb")
}

func TestStatusIgnoresStateDir(t *testing.T) {
	ctx := context.Background()
	m, _ := startedProject(t)
	testutil.WriteFile(t, m.dir, ".simplej/state.db", "x")

	dirty, err := m.HasUncommittedChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
}

func TestSignatureFallsBackToDefault(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := config.Default(t.TempDir())
	m := New(cfg)

	repo, err := git.PlainInit(m.dir, false)
	require.NoError(t, err)

	sig := m.signature(repo)
	assert.Equal(t, "simplej", sig.Name)
	assert.Equal(t, "simplej@localhost", sig.Email)
}

func TestCloneRepository(t *testing.T) {
	ctx := context.Background()
	m, origin := startedProject(t)
	_, err := m.Push(ctx)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CloneRepository(ctx, origin, dest, nil))
	assert.FileExists(t, filepath.Join(dest, ".gitignore"))
	assert.Equal(t, head(t, m.dir), head(t, dest))
}

func TestShallowCloneFailureLeavesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "source")

	err := ShallowClone(context.Background(), filepath.Join(t.TempDir(), "missing"), dest)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrGitCloneFailed))
	assert.NoDirExists(t, dest)
}

func TestGetAuthMethod(t *testing.T) {
	t.Setenv("GIT_USERNAME", "")
	t.Setenv("GITHUB_TOKEN", "secret")

	assert.Nil(t, getAuthMethod("/srv/repos/project.git"))
	assert.Nil(t, getAuthMethod("file:///srv/repos/project.git"))

	auth := getAuthMethod("https://github.com/org/project.git")
	require.IsType(t, &http.BasicAuth{}, auth)
	assert.Equal(t, "secret", auth.(*http.BasicAuth).Password)
}
