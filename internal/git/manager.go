// Package git implements the master/dev editing workflow on the project's
// working tree.
package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"simplej/internal/config"
	"simplej/internal/constants"
	"simplej/internal/errors"
	"simplej/internal/logger"
)

var (
	masterRef = plumbing.NewBranchReferenceName(constants.MasterBranch)
	devRef    = plumbing.NewBranchReferenceName(constants.DevBranch)
)

// Manager runs git operations against one project directory
type Manager struct {
	dir string
	cfg *config.ProjectConfig
}

// New creates a new Git manager for the project
func New(cfg *config.ProjectConfig) *Manager {
	return &Manager{
		dir: cfg.Dir(),
		cfg: cfg,
	}
}

// PushResult describes a completed push
type PushResult struct {
	Branch   string // branch checked out when pushing
	UpToDate bool
	Status   string // working tree status, filled when not on master
}

func (m *Manager) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(m.dir)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, errors.GitRepoNotFound(m.dir)
		}
		return nil, errors.Unexpected("open repository", err)
	}
	return repo, nil
}

// IsRepository checks if the project is a git repository
func (m *Manager) IsRepository() bool {
	_, err := git.PlainOpen(m.dir)
	return err == nil
}

// Start initializes the repository on master, adds origin when a remote is
// configured and commits everything as the first commit.
func (m *Manager) Start(ctx context.Context) error {
	log := logger.WithContext(ctx)

	if m.IsRepository() {
		return errors.GitRepoExists(m.dir)
	}

	repo, err := git.PlainInitWithOptions(m.dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: masterRef},
	})
	if err != nil {
		return errors.Unexpected("init repository", err)
	}
	log.WithField("path", m.dir).Info("Initialized git repository")

	if err := m.ensureIgnored(constants.StateDirName + "/"); err != nil {
		return err
	}

	if url := m.cfg.Git.RemoteURL; url != "" {
		if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: constants.RemoteName,
			URLs: []string{url},
		}); err != nil {
			return errors.Unexpected("create remote", err)
		}
		log.WithFields(logger.Fields{"remote": constants.RemoteName, "url": url}).Info("Configured remote")
	} else {
		log.Warn("No git.remote_url configured, push will not be possible until origin exists")
	}

	if _, err := m.commitAll(repo, constants.InitialCommitMessage); err != nil {
		return err
	}
	return nil
}

// ensureIgnored appends pattern to the project's .gitignore unless present
func (m *Manager) ensureIgnored(pattern string) error {
	path := filepath.Join(m.dir, ".gitignore")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Unexpected("read .gitignore", err)
	}

	for _, line := range strings.Split(string(existing), "\n") {
		if strings.TrimSpace(line) == pattern {
			return nil
		}
	}

	content := string(existing)
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += pattern + "\n"

	if err := os.WriteFile(path, []byte(content), constants.FilePermissions); err != nil {
		return errors.Unexpected("write .gitignore", err)
	}
	return nil
}

// CurrentBranch returns the checked out branch. A repository without
// commits reports the branch HEAD points at.
func (m *Manager) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}
	return currentBranch(repo)
}

func currentBranch(repo *git.Repository) (string, error) {
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", errors.Unexpected("read HEAD", err)
	}
	if head.Type() == plumbing.SymbolicReference {
		return head.Target().Short(), nil
	}
	return "", errors.Unexpected("read HEAD", fmt.Errorf("repository is in detached HEAD state"))
}

// requireBranch returns the current branch, or a BRANCH_PRECONDITION error when it
// is not want
func requireBranch(repo *git.Repository, operation, want string) (string, error) {
	current, err := currentBranch(repo)
	if err != nil {
		return "", err
	}
	if current != want {
		return current, errors.BranchPrecondition(operation, want, current)
	}
	return current, nil
}

// Branch creates dev at the current master commit and checks it out. Only
// refs move, so local changes stay in place.
func (m *Manager) Branch(ctx context.Context) error {
	repo, err := m.open()
	if err != nil {
		return err
	}
	if _, err := requireBranch(repo, "branch", constants.MasterBranch); err != nil {
		return err
	}

	if _, err := repo.Reference(devRef, false); err != plumbing.ErrReferenceNotFound {
		logger.WithContext(ctx).Info("Branch dev already exists, checking it out")
		return m.checkout(ctx, repo, constants.DevBranch)
	}

	head, err := repo.Head()
	if err != nil {
		return errors.Unexpected("read HEAD", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(devRef, head.Hash())); err != nil {
		return errors.Unexpected("create dev", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, devRef)); err != nil {
		return errors.Unexpected("checkout dev", err)
	}

	logger.WithContext(ctx).WithField("branch", constants.DevBranch).Info("Switched to a new branch")
	return nil
}

// Commit stages all changes and commits them on dev
func (m *Manager) Commit(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.InvalidInput(message, "non-empty commit message")
	}

	repo, err := m.open()
	if err != nil {
		return "", err
	}
	if _, err := requireBranch(repo, "commit", constants.DevBranch); err != nil {
		return "", err
	}

	hash, err := m.commitAll(repo, message)
	if err != nil {
		return "", err
	}
	logger.WithContext(ctx).WithField("commit", hash[:7]).Info("Committed changes")
	return hash, nil
}

func (m *Manager) commitAll(repo *git.Repository, message string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Unexpected("open worktree", err)
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return "", errors.Unexpected("stage changes", err)
	}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: m.signature(repo)})
	if err != nil {
		if stderrors.Is(err, git.ErrEmptyCommit) {
			branch, _ := currentBranch(repo)
			return "", errors.NothingToCommit(branch)
		}
		return "", errors.Unexpected("commit", err)
	}
	return hash.String(), nil
}

// signature picks the commit author from project config, then the user's
// git config, then the built-in default
func (m *Manager) signature(repo *git.Repository) *object.Signature {
	name, email := m.cfg.Git.AuthorName, m.cfg.Git.AuthorEmail

	if name == "" || email == "" {
		if cfg, err := repo.ConfigScoped(gitconfig.SystemScope); err == nil {
			if name == "" {
				name = cfg.User.Name
			}
			if email == "" {
				email = cfg.User.Email
			}
		}
	}
	if name == "" {
		name = constants.DefaultAuthorName
	}
	if email == "" {
		email = constants.DefaultAuthorEmail
	}

	return &object.Signature{Name: name, Email: email, When: time.Now()}
}

// Merge checks out master and merges dev into it. Fast-forwards only move
// refs; anything else goes through the git binary.
func (m *Manager) Merge(ctx context.Context) error {
	log := logger.WithContext(ctx)

	repo, err := m.open()
	if err != nil {
		return err
	}
	if _, err := requireBranch(repo, "merge", constants.DevBranch); err != nil {
		return err
	}

	dev, err := repo.Reference(devRef, true)
	if err != nil {
		return errors.Unexpected("read dev", err)
	}
	master, err := repo.Reference(masterRef, true)
	if err != nil {
		return errors.Unexpected("read master", err)
	}

	upToDate, err := isAncestor(repo, dev.Hash(), master.Hash())
	if err != nil {
		return errors.GitMergeFailed(constants.DevBranch, constants.MasterBranch, err)
	}
	if upToDate {
		if err := m.checkout(ctx, repo, constants.MasterBranch); err != nil {
			return err
		}
		log.Info("Master already contains dev")
		return nil
	}

	fastForward, err := isAncestor(repo, master.Hash(), dev.Hash())
	if err != nil {
		return errors.GitMergeFailed(constants.DevBranch, constants.MasterBranch, err)
	}
	if !fastForward {
		log.Debug("Fast-forward not possible, merging with git")
		if err := m.checkout(ctx, repo, constants.MasterBranch); err != nil {
			return err
		}
		return m.mergeWithCmd(ctx)
	}

	// The worktree already holds dev, so pointing HEAD at master and
	// fast-forwarding it leaves every file in place
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, masterRef)); err != nil {
		return errors.GitMergeFailed(constants.DevBranch, constants.MasterBranch, err)
	}
	if err := repo.Merge(*dev, git.MergeOptions{Strategy: git.FastForwardMerge}); err != nil {
		_ = repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, devRef))
		return errors.GitMergeFailed(constants.DevBranch, constants.MasterBranch, err)
	}

	log.WithField("commit", dev.Hash().String()[:7]).Info("Fast-forwarded master to dev")
	return nil
}

func isAncestor(repo *git.Repository, candidate, of plumbing.Hash) (bool, error) {
	if candidate == of {
		return true, nil
	}
	c, err := repo.CommitObject(candidate)
	if err != nil {
		return false, err
	}
	o, err := repo.CommitObject(of)
	if err != nil {
		return false, err
	}
	return c.IsAncestor(o)
}

// checkout switches to branch. When the branch points at the current commit
// only HEAD moves; otherwise the git binary updates the worktree, with
// go-git as the fallback when git is not installed.
func (m *Manager) checkout(ctx context.Context, repo *git.Repository, branch string) error {
	target := plumbing.NewBranchReferenceName(branch)

	ref, err := repo.Reference(target, true)
	if err != nil {
		return errors.Unexpected("checkout "+branch, err)
	}
	head, err := repo.Head()
	if err != nil {
		return errors.Unexpected("read HEAD", err)
	}

	if head.Hash() == ref.Hash() {
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, target)); err != nil {
			return errors.Unexpected("checkout "+branch, err)
		}
		return nil
	}

	if _, err := exec.LookPath("git"); err == nil {
		cmd := exec.CommandContext(ctx, "git", "-C", m.dir, "checkout", branch)
		if output, err := cmd.CombinedOutput(); err != nil {
			return errors.Unexpected("checkout "+branch,
				fmt.Errorf("%w, output: %s", err, strings.TrimSpace(string(output))))
		}
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return errors.Unexpected("open worktree", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Branch: target}); err != nil {
		return errors.Unexpected("checkout "+branch, err)
	}
	return nil
}

// mergeWithCmd runs a true merge with the git binary, aborting on conflicts
func (m *Manager) mergeWithCmd(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "git", "-C", m.dir, "merge", "--no-edit", constants.DevBranch)
	output, err := cmd.CombinedOutput()
	if err != nil {
		abort := exec.CommandContext(ctx, "git", "-C", m.dir, "merge", "--abort")
		_ = abort.Run()
		return errors.GitMergeFailed(constants.DevBranch, constants.MasterBranch,
			fmt.Errorf("%w, output: %s", err, strings.TrimSpace(string(output))))
	}
	logger.WithContext(ctx).Info(strings.TrimSpace(string(output)))
	return nil
}

// Rollback checks out master and deletes dev. Running it again is a no-op.
func (m *Manager) Rollback(ctx context.Context) error {
	repo, err := m.open()
	if err != nil {
		return err
	}

	current, err := currentBranch(repo)
	if err != nil {
		return err
	}

	if current != constants.MasterBranch {
		if err := m.checkout(ctx, repo, constants.MasterBranch); err != nil {
			return err
		}
	}

	if _, err := repo.Reference(devRef, false); err == plumbing.ErrReferenceNotFound {
		logger.WithContext(ctx).Info("Branch dev does not exist, nothing to roll back")
		return nil
	}

	if err := repo.Storer.RemoveReference(devRef); err != nil {
		return errors.Unexpected("delete dev", err)
	}
	if err := repo.DeleteBranch(constants.DevBranch); err != nil && err != git.ErrBranchNotFound {
		return errors.Unexpected("delete dev config", err)
	}

	logger.WithContext(ctx).Info("Deleted branch dev")
	return nil
}

// Push pushes every local branch to origin
func (m *Manager) Push(ctx context.Context) (*PushResult, error) {
	log := logger.WithContext(ctx)

	repo, err := m.open()
	if err != nil {
		return nil, err
	}

	remote, err := repo.Remote(constants.RemoteName)
	if err != nil {
		if err == git.ErrRemoteNotFound {
			return nil, errors.GitRemoteNotFound(constants.RemoteName)
		}
		return nil, errors.Unexpected("read remote", err)
	}

	branch, err := currentBranch(repo)
	if err != nil {
		return nil, err
	}
	result := &PushResult{Branch: branch}

	url := ""
	if urls := remote.Config().URLs; len(urls) > 0 {
		url = urls[0]
	}

	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: constants.RemoteName,
		RefSpecs:   []gitconfig.RefSpec{"refs/heads/*:refs/heads/*"},
		Auth:       getAuthMethod(url),
	})
	switch {
	case err == git.NoErrAlreadyUpToDate:
		result.UpToDate = true
		log.Info("Remote is already up to date")
	case err != nil:
		return nil, errors.GitPushFailed(constants.RemoteName, err)
	default:
		log.WithField("remote", constants.RemoteName).Info("Pushed all branches")
	}

	if branch != constants.MasterBranch {
		status, err := m.statusText(repo)
		if err != nil {
			return nil, err
		}
		result.Status = status
		log.WithField("branch", branch).Warn("Pushed while not on master")
	}
	return result, nil
}

// CommitPush commits on dev, merges into master and pushes. It refuses to
// start when not on dev so nothing is merged or pushed without the commit.
func (m *Manager) CommitPush(ctx context.Context, message string) (*PushResult, error) {
	repo, err := m.open()
	if err != nil {
		return nil, err
	}
	if _, err := requireBranch(repo, "commit-push", constants.DevBranch); err != nil {
		return nil, err
	}

	if _, err := m.Commit(ctx, message); err != nil {
		if !errors.HasCode(err, errors.ErrNothingToCommit) {
			return nil, err
		}
		logger.WithContext(ctx).Info("Nothing new to commit, merging and pushing anyway")
	}

	if err := m.Merge(ctx); err != nil {
		return nil, err
	}
	return m.Push(ctx)
}

// Status returns the working tree status in git's short format
func (m *Manager) Status(ctx context.Context) (string, error) {
	repo, err := m.open()
	if err != nil {
		return "", err
	}
	return m.statusText(repo)
}

func (m *Manager) statusText(repo *git.Repository) (string, error) {
	branch, err := currentBranch(repo)
	if err != nil {
		return "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", errors.Unexpected("open worktree", err)
	}
	status, err := wt.Status()
	if err != nil {
		return "", errors.Unexpected("status", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "On branch %s\n", branch)
	if status.IsClean() {
		b.WriteString("nothing to commit, working tree clean\n")
	} else {
		b.WriteString(status.String())
	}
	return b.String(), nil
}

// HasUncommittedChanges checks if the working tree has uncommitted changes
func (m *Manager) HasUncommittedChanges(ctx context.Context) (bool, error) {
	repo, err := m.open()
	if err != nil {
		return false, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return false, errors.Unexpected("open worktree", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, errors.Unexpected("status", err)
	}

	return !status.IsClean(), nil
}

// Branches returns the local branch names
func (m *Manager) Branches(ctx context.Context) ([]string, error) {
	repo, err := m.open()
	if err != nil {
		return nil, err
	}

	branches, err := repo.Branches()
	if err != nil {
		return nil, errors.Unexpected("list branches", err)
	}

	var result []string
	err = branches.ForEach(func(ref *plumbing.Reference) error {
		result = append(result, ref.Name().Short())
		return nil
	})
	return result, err
}
