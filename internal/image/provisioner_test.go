package image_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"simplej/internal/config"
	"simplej/internal/container"
	"simplej/internal/errors"
	"simplej/internal/image"
	"simplej/internal/state"
	"simplej/internal/testutil"
	"simplej/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ProvisionerTestSuite struct {
	suite.Suite
	ctx    context.Context
	engine *testutil.FakeEngine
	store  *state.Store
	clones []string
}

func (s *ProvisionerTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.engine = testutil.NewFakeEngine()
	s.clones = nil
}

// project loads configContent and opens the project's state store
func (s *ProvisionerTestSuite) project(configContent string) (*config.ProjectConfig, config.SourceConfig) {
	cfg := testutil.SetupProject(s.T(), configContent)
	s.store = testutil.SetupTestStore(s.T(), cfg.Dir())
	src, err := cfg.Source()
	s.Require().NoError(err)
	return cfg, src
}

// fakeClone writes files into dest the way a clone would, including
// repository metadata
func (s *ProvisionerTestSuite) fakeClone(files map[string]string) image.CloneFunc {
	return func(ctx context.Context, url, dest string) error {
		s.clones = append(s.clones, url)
		testutil.WriteFile(s.T(), dest, ".git/HEAD", "ref: refs/heads/master\n")
		for name, content := range files {
			testutil.WriteFile(s.T(), dest, name, content)
		}
		return nil
	}
}

func (s *ProvisionerTestSuite) record() state.Record {
	rec, err := s.store.Load(s.ctx)
	s.Require().NoError(err)
	return rec
}

func (s *ProvisionerTestSuite) lastBuild() container.BuildOptions {
	calls := s.engine.GetCalls("Build")
	s.Require().NotEmpty(calls)
	return calls[len(calls)-1].([]interface{})[0].(container.BuildOptions)
}

func (s *ProvisionerTestSuite) TestDockerfileBuild() {
	cfg, src := s.project("")
	testutil.WriteFile(s.T(), cfg.Dir(), "docker/Dockerfile", "FROM jupyter/base-notebook\n")
	p := image.New(cfg, s.engine, s.store)

	img, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.True(s.engine.HasImage(img.ID))
	s.Equal(state.Record{ImageID: img.ID}, s.record())

	opts := s.lastBuild()
	s.Equal(filepath.Join(cfg.Dir(), "docker"), opts.ContextDir)
	s.Equal("Dockerfile", opts.Dockerfile)
	s.Equal("simplej/demo:latest", opts.Tag)

	events, err := s.store.Events(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("prepare-image", events[0].Operation)
}

func (s *ProvisionerTestSuite) TestRebuildReplacesImageID() {
	cfg, src := s.project("")
	testutil.WriteFile(s.T(), cfg.Dir(), "docker/Dockerfile", "FROM scratch\n")
	p := image.New(cfg, s.engine, s.store)

	first, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	second, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)

	s.NotEqual(first.ID, second.ID)
	s.Equal(second.ID, s.record().ImageID)
}

func (s *ProvisionerTestSuite) TestDockerfileMissing() {
	cfg, src := s.project("")
	p := image.New(cfg, s.engine, s.store)

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrDockerfileNotFound))
	s.Zero(s.engine.CallCount("Build"))
	s.Equal(state.Record{}, s.record())
}

func (s *ProvisionerTestSuite) TestBuildFailureLeavesRecordUntouched() {
	cfg, src := s.project("")
	testutil.WriteFile(s.T(), cfg.Dir(), "docker/Dockerfile", "FROM scratch\n")
	s.engine.BuildFn = func(ctx context.Context, opts container.BuildOptions) (*types.Image, error) {
		return nil, container.NewContainerError(container.ErrorTypeBuildError, "build", "image build failed",
			fmt.Errorf("RUN exited with code 1"))
	}
	p := image.New(cfg, s.engine, s.store)

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrUnexpected))
	s.Equal(state.Record{}, s.record())
}

func (s *ProvisionerTestSuite) TestDockerHubPull() {
	cfg, src := s.project("[image]\nsource = \"dockerhub\"\nname = \"jupyter/base-notebook\"\ntag = \"2024-01-01\"\n")
	p := image.New(cfg, s.engine, s.store)

	img, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(img.ID, s.record().ImageID)

	calls := s.engine.GetCalls("Pull")
	s.Require().Len(calls, 1)
	s.Equal("jupyter/base-notebook:2024-01-01", calls[0].([]interface{})[0])
}

func (s *ProvisionerTestSuite) TestDockerHubUnknownImage() {
	cfg, src := s.project("[image]\nsource = \"dockerhub\"\nname = \"nobody/nothing\"\n")
	s.engine.Registry = map[string]bool{"jupyter/base-notebook:latest": true}
	p := image.New(cfg, s.engine, s.store)

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrImageNotFound))
	s.Contains(err.Error(), "nobody/nothing:latest")
	s.Equal(state.Record{}, s.record())
}

func (s *ProvisionerTestSuite) TestLocalImage() {
	id := s.engine.AddImage("my/notebook:dev")
	cfg, src := s.project(fmt.Sprintf("[image]\nsource = \"local_image\"\nimage_id = %q\n", id))
	p := image.New(cfg, s.engine, s.store)

	img, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(id, img.ID)
	s.Equal(state.Record{ImageID: id}, s.record())
}

func (s *ProvisionerTestSuite) TestLocalImageAbsent() {
	cfg, src := s.project("[image]\nsource = \"local_image\"\nimage_id = \"sha256:missing\"\n")
	s.Require().NoError(s.store.Save(s.ctx, state.Record{ImageID: "sha256:previous"}))
	p := image.New(cfg, s.engine, s.store)

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrImageNotFound))
	s.Equal(state.Record{ImageID: "sha256:previous"}, s.record())
}

func (s *ProvisionerTestSuite) TestURLDownloadsThenBuilds() {
	server := testutil.NewFileServer(s.T(), map[string]string{
		"/notebook/Dockerfile": "FROM jupyter/scipy-notebook\n",
	})
	cfg, src := s.project(fmt.Sprintf("[image]\nsource = \"url\"\nurl = %q\n", server.URL+"/notebook/Dockerfile"))
	p := image.New(cfg, s.engine, s.store)

	img, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(img.ID, s.record().ImageID)

	content, err := os.ReadFile(filepath.Join(cfg.Dir(), "docker", "Dockerfile"))
	s.Require().NoError(err)
	s.Equal("FROM jupyter/scipy-notebook\n", string(content))

	// The download is repeated on every run
	_, err = p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(2, server.Requests())
}

func (s *ProvisionerTestSuite) TestURLNotFound() {
	server := testutil.NewFileServer(s.T(), map[string]string{})
	cfg, src := s.project(fmt.Sprintf("[image]\nsource = \"url\"\nurl = %q\n", server.URL+"/missing"))
	p := image.New(cfg, s.engine, s.store)

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrDownloadFailed))
	s.Contains(err.Error(), "404")
	s.NoFileExists(filepath.Join(cfg.Dir(), "docker", "Dockerfile"))
	s.Zero(s.engine.CallCount("Build"))
	s.Equal(state.Record{}, s.record())
}

func (s *ProvisionerTestSuite) TestGitFindsDockerfile() {
	cfg, src := s.project("[image]\nsource = \"git\"\ngit_url = \"https://example.com/envs.git\"\n")
	p := image.New(cfg, s.engine, s.store, image.WithCloner(s.fakeClone(map[string]string{
		"README.md":                "# envs\n",
		"envs/python/Dockerfile":   "FROM python\n",
		"envs/python/requirements": "numpy\n",
	})))

	img, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(img.ID, s.record().ImageID)
	s.Equal([]string{"https://example.com/envs.git"}, s.clones)

	clone := cfg.SourceDir()
	s.Equal(filepath.Join(clone, "envs", "python"), s.lastBuild().ContextDir)
	s.NoDirExists(filepath.Join(clone, ".git"))
}

func (s *ProvisionerTestSuite) TestGitFirstMatchInWalkOrder() {
	cfg, src := s.project("[image]\nsource = \"git\"\ngit_url = \"https://example.com/envs.git\"\n")
	p := image.New(cfg, s.engine, s.store, image.WithCloner(s.fakeClone(map[string]string{
		"b/Dockerfile": "FROM b\n",
		"a/Dockerfile": "FROM a\n",
	})))

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.Equal(filepath.Join(cfg.SourceDir(), "a"), s.lastBuild().ContextDir)
}

func (s *ProvisionerTestSuite) TestGitRecloneDropsStaleFiles() {
	cfg, src := s.project("[image]\nsource = \"git\"\ngit_url = \"https://example.com/envs.git\"\n")
	stale := testutil.WriteFile(s.T(), cfg.SourceDir(), "old/Dockerfile", "FROM stale\n")
	p := image.New(cfg, s.engine, s.store, image.WithCloner(s.fakeClone(map[string]string{
		"new/Dockerfile": "FROM fresh\n",
	})))

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().NoError(err)
	s.NoFileExists(stale)
	s.Equal(filepath.Join(cfg.SourceDir(), "new"), s.lastBuild().ContextDir)
}

func (s *ProvisionerTestSuite) TestGitWithoutDockerfile() {
	cfg, src := s.project("[image]\nsource = \"git\"\ngit_url = \"https://example.com/empty.git\"\n")
	p := image.New(cfg, s.engine, s.store, image.WithCloner(s.fakeClone(map[string]string{
		"README.md": "nothing to build\n",
	})))

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrDockerfileNotFound))
	s.Zero(s.engine.CallCount("Build"))
	s.Equal(state.Record{}, s.record())
}

func (s *ProvisionerTestSuite) TestGitCloneFailure() {
	cfg, src := s.project("[image]\nsource = \"git\"\ngit_url = \"https://example.com/gone.git\"\n")
	p := image.New(cfg, s.engine, s.store, image.WithCloner(func(ctx context.Context, url, dest string) error {
		return errors.GitCloneFailed(url, fmt.Errorf("repository not found"))
	}))

	_, err := p.PrepareImage(s.ctx, src)
	s.Require().Error(err)
	s.True(errors.HasCode(err, errors.ErrGitCloneFailed))
	s.Equal(state.Record{}, s.record())
}

// mockStore is a RecordStore whose calls are scripted per test
type mockStore struct {
	mock.Mock
	record state.Record
}

func (m *mockStore) Update(ctx context.Context, fn func(*state.Record) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(&m.record)
}

func (m *mockStore) AppendEvent(ctx context.Context, operation, detail string) error {
	return m.Called(ctx, operation, detail).Error(0)
}

func TestPrepareImageStoreFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.SetupProject(t, "[image]\nsource = \"dockerhub\"\nname = \"jupyter/base-notebook\"\n")
	src, err := cfg.Source()
	require.NoError(t, err)

	store := &mockStore{}
	store.On("Update", mock.Anything, mock.Anything).Return(errors.StateWriteError(fmt.Errorf("disk full")))

	_, err = image.New(cfg, testutil.NewFakeEngine(), store).PrepareImage(ctx, src)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrStateWrite))
	store.AssertNotCalled(t, "AppendEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestPrepareImageEventFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	cfg := testutil.SetupProject(t, "[image]\nsource = \"dockerhub\"\nname = \"jupyter/base-notebook\"\n")
	src, err := cfg.Source()
	require.NoError(t, err)

	store := &mockStore{}
	store.On("Update", mock.Anything, mock.Anything).Return(nil)
	store.On("AppendEvent", mock.Anything, "prepare-image", mock.Anything).Return(fmt.Errorf("database is locked"))

	img, err := image.New(cfg, testutil.NewFakeEngine(), store).PrepareImage(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, img.ID, store.record.ImageID)
	store.AssertExpectations(t)
}

func TestProvisionerTestSuite(t *testing.T) {
	suite.Run(t, new(ProvisionerTestSuite))
}
