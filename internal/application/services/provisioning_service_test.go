package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	"anvil.dev/cli/internal/core/resolver"
	"anvil.dev/cli/internal/infrastructure/checksum"
	"anvil.dev/cli/internal/infrastructure/registry"
	"anvil.dev/cli/internal/infrastructure/workspace"
)

// Mock implementations

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) Versions(ctx context.Context, slug string) ([]domain.PluginDescriptor, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PluginDescriptor), args.Error(1)
}

func (m *MockCatalog) Search(ctx context.Context, query string, limit int) ([]domain.PluginSearchHit, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PluginSearchHit), args.Error(1)
}

type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context, spec ports.LaunchSpec) (ports.Process, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(ports.Process), args.Error(1)
}

type stubProcess struct{ pid int }

func (p stubProcess) PID() int    { return p.pid }
func (p stubProcess) Wait() error { return nil }

type stubManifest struct {
	versions []string
	builds   map[string][]domain.ManifestBuild
}

func (s *stubManifest) Versions(context.Context) ([]string, error) { return s.versions, nil }

func (s *stubManifest) Builds(_ context.Context, v string) ([]domain.ManifestBuild, error) {
	return s.builds[v], nil
}

// fakeFetcher serves artifact bodies from memory and writes them the way
// the real fetcher commits them: only when the checksum matches.
type fakeFetcher struct {
	mu      sync.Mutex
	bodies  map[string]string
	fetches map[string]int
	fail    map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{bodies: map[string]string{}, fetches: map[string]int{}, fail: map[string]error{}}
}

// serve registers a body and returns its checksum.
func (f *fakeFetcher) serve(t *testing.T, url, body string) string {
	t.Helper()
	sum, err := checksum.Compute(checksum.SHA256, strings.NewReader(body))
	require.NoError(t, err)
	f.bodies[url] = body
	return sum
}

func (f *fakeFetcher) FetchDocument(context.Context, string) ([]byte, error) {
	return nil, errors.New("not used")
}

func (f *fakeFetcher) Fetch(_ context.Context, url, expected, dest string) error {
	f.mu.Lock()
	f.fetches[url]++
	body, ok := f.bodies[url]
	failure := f.fail[url]
	f.mu.Unlock()

	if failure != nil {
		return failure
	}
	if !ok {
		return domain.NewError(domain.ErrDownloadFailed, "fetch", url, errors.New("404"))
	}
	v, err := checksum.NewVerifier(expected)
	if err != nil {
		return err
	}
	v.Write([]byte(body))
	if err := v.Verify(); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(body), 0o644)
}

func (f *fakeFetcher) Verify(path, expected string) (bool, error) {
	return checksum.VerifyFile(path, expected)
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[url]
}

type fixture struct {
	orchestrator *ProvisioningOrchestrator
	fetcher      *fakeFetcher
	catalog      *MockCatalog
	launcher     *MockLauncher
	registry     *registry.FileStore
	serversDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		fetcher:    newFakeFetcher(),
		catalog:    new(MockCatalog),
		launcher:   new(MockLauncher),
		registry:   registry.NewFileStore(filepath.Join(root, "data"), time.Second, nil),
		serversDir: filepath.Join(root, "servers"),
	}

	paperSum10 := f.fetcher.serve(t, "https://dl/paper-10.jar", "paper build 10")
	paperSum12 := f.fetcher.serve(t, "https://dl/paper-12.jar", "paper build 12")
	vanillaSum := f.fetcher.serve(t, "https://dl/vanilla.jar", "vanilla 1.20.1")
	sources := map[domain.ServerType]ports.ManifestSource{
		domain.ServerTypePaper: &stubManifest{
			versions: []string{"1.20.1"},
			builds: map[string][]domain.ManifestBuild{"1.20.1": {
				{BuildID: 12, URL: "https://dl/paper-12.jar", Checksum: paperSum12, FileName: "paper-1.20.1-12.jar"},
				{BuildID: 10, URL: "https://dl/paper-10.jar", Checksum: paperSum10, FileName: "paper-1.20.1-10.jar"},
			}},
		},
		domain.ServerTypeVanilla: &stubManifest{
			versions: []string{"1.20.1"},
			builds: map[string][]domain.ManifestBuild{"1.20.1": {
				{BuildID: 1, URL: "https://dl/vanilla.jar", Checksum: vanillaSum, FileName: "vanilla-1.20.1.jar"},
			}},
		},
	}

	f.orchestrator = NewProvisioningOrchestrator(OrchestratorDeps{
		Versions:  resolver.NewVersionResolver(sources, nil),
		Plugins:   resolver.NewPluginResolver(f.catalog, nil),
		Catalog:   f.catalog,
		Fetcher:   f.fetcher,
		Registry:  f.registry,
		Workspace: workspace.New(f.serversDir, nil),
		Launcher:  f.launcher,
	}, OrchestratorOptions{DownloadConcurrency: 2, JavaPath: "java"})
	f.orchestrator.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	f.orchestrator.newID = func() string { return "00000000-0000-0000-0000-000000000001" }
	return f
}

func (f *fixture) createBox(t *testing.T) domain.ServerRecord {
	t.Helper()
	record, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{
		Name: "box1", ServerType: domain.ServerTypePaper, VersionSpec: "1.20.1",
	})
	require.NoError(t, err)
	return record
}

func (f *fixture) pluginVersion(t *testing.T, slug, id, number string, deps ...domain.Dependency) domain.PluginDescriptor {
	t.Helper()
	url := "https://cdn/" + id + ".jar"
	return domain.PluginDescriptor{
		Slug:             slug,
		VersionID:        id,
		VersionNumber:    number,
		GameVersions:     []string{"1.20.1"},
		Loaders:          []string{"paper"},
		DownloadURL:      url,
		FileName:         slug + "-" + number + ".jar",
		ExpectedChecksum: f.fetcher.serve(t, url, slug+" "+number),
		PublishedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Dependencies:     deps,
	}
}

func (f *fixture) luckpermsWithConfigurate(t *testing.T) {
	t.Helper()
	f.catalog.On("Versions", mock.Anything, "luckperms").Return([]domain.PluginDescriptor{
		f.pluginVersion(t, "luckperms", "lp5", "5.4.102", domain.Dependency{
			Slug: "configurate", VersionConstraint: domain.MustParseConstraint(">=4,<5"), Required: true,
		}),
	}, nil)
	f.catalog.On("Versions", mock.Anything, "configurate").Return([]domain.PluginDescriptor{
		f.pluginVersion(t, "configurate", "cf4", "4.1.2"),
	}, nil)
}

func TestCreateServer_SelectsHighestBuild(t *testing.T) {
	f := newFixture(t)

	record := f.createBox(t)
	assert.Equal(t, 12, record.BuildID)
	assert.Equal(t, "1.20.1", record.GameVersion)
	assert.Equal(t, "paper", record.Loader)
	assert.Equal(t, 25565, record.Port)
	assert.Equal(t, "paper-1.20.1-12.jar", record.JarFile)
	assert.Equal(t, filepath.Join(f.serversDir, "box1"), record.Path)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", record.ID)

	data, err := os.ReadFile(filepath.Join(record.Path, record.JarFile))
	require.NoError(t, err)
	assert.Equal(t, "paper build 12", string(data))
	assert.FileExists(t, filepath.Join(record.Path, "eula.txt"))

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Equal(t, record, stored)
}

func TestCreateServer_NameConflicts(t *testing.T) {
	f := newFixture(t)
	f.createBox(t)

	_, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "box1", ServerType: domain.ServerTypeVanilla})
	assert.ErrorIs(t, err, domain.ErrNameConflict)

	require.NoError(t, os.MkdirAll(filepath.Join(f.serversDir, "stray"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.serversDir, "stray", "notes.txt"), []byte("keep"), 0o644))
	_, err = f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "stray", ServerType: domain.ServerTypeVanilla})
	assert.ErrorIs(t, err, domain.ErrNameConflict, "an unregistered directory with content still blocks the name")
	assert.FileExists(t, filepath.Join(f.serversDir, "stray", "notes.txt"))

	_, err = f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "../escape", ServerType: domain.ServerTypeVanilla})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateServer_FailedDownloadLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.fetcher.fail["https://dl/paper-12.jar"] = domain.NewError(domain.ErrDownloadFailed, "fetch", "https://dl/paper-12.jar", errors.New("503"))

	_, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "box1", ServerType: domain.ServerTypePaper, VersionSpec: "latest"})
	assert.ErrorIs(t, err, domain.ErrDownloadFailed)

	assert.NoDirExists(t, filepath.Join(f.serversDir, "box1"))
	_, err = f.orchestrator.Info(context.Background(), "box1")
	assert.ErrorIs(t, err, domain.ErrServerNotFound, "no ghost server registered")
}

func TestCreateServer_ReclaimsInterruptedDirectory(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.serversDir, "box1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	partial := filepath.Join(dir, ".paper-1.20.1-12.jar.4071.part")
	require.NoError(t, os.WriteFile(partial, []byte("paper bu"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(partial, old, old))
	require.NoError(t, os.Chtimes(dir, old, old))

	record := f.createBox(t)
	assert.Equal(t, dir, record.Path)
	assert.FileExists(t, filepath.Join(dir, "paper-1.20.1-12.jar"))
	assert.NoFileExists(t, partial)
}

func TestDeleteUnregistered(t *testing.T) {
	f := newFixture(t)
	orphan := filepath.Join(f.serversDir, "orphan")
	require.NoError(t, os.MkdirAll(orphan, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(orphan, "paper-1.20.1-12.jar"), []byte("paper build 12"), 0o644))

	dir, err := f.orchestrator.DeleteUnregistered(context.Background(), "orphan")
	require.NoError(t, err)
	assert.Equal(t, orphan, dir)
	assert.NoDirExists(t, orphan)

	_, err = f.orchestrator.DeleteUnregistered(context.Background(), "orphan")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)

	record := f.createBox(t)
	_, err = f.orchestrator.DeleteUnregistered(context.Background(), "box1")
	assert.ErrorIs(t, err, domain.ErrNameConflict)
	assert.DirExists(t, record.Path)

	_, err = f.orchestrator.DeleteUnregistered(context.Background(), "../data")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCreateServer_UnknownVersion(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "box1", ServerType: domain.ServerTypePaper, VersionSpec: "1.7.10"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoDirExists(t, filepath.Join(f.serversDir, "box1"))
}

func TestInstallPlugin_InstallsDependencies(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)
	f.luckpermsWithConfigurate(t)

	result, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	require.NoError(t, err)
	require.Len(t, result.Installed, 2)
	assert.Empty(t, result.Skipped)

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Equal(t, []string{"configurate", "luckperms"}, stored.PluginSlugs())
	assert.FileExists(t, filepath.Join(record.Path, "plugins", "luckperms-5.4.102.jar"))
	assert.FileExists(t, filepath.Join(record.Path, "plugins", "configurate-4.1.2.jar"))
}

func TestInstallPlugin_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.createBox(t)
	f.luckpermsWithConfigurate(t)

	_, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	require.NoError(t, err)
	first, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)

	result, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"luckperms", "configurate"}, result.Skipped)

	second, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.fetcher.count("https://cdn/lp5.jar"), "verified jar is not downloaded again")
	assert.Equal(t, 1, f.fetcher.count("https://cdn/cf4.jar"))
}

func TestInstallPlugin_PartialFailureRecordsNothing(t *testing.T) {
	f := newFixture(t)
	f.createBox(t)
	f.luckpermsWithConfigurate(t)
	f.fetcher.fail["https://cdn/cf4.jar"] = domain.NewError(domain.ErrChecksumMismatch, "fetch", "https://cdn/cf4.jar", nil)

	_, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	assert.ErrorIs(t, err, domain.ErrChecksumMismatch)

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Empty(t, stored.InstalledPlugins)

	entries, err := os.ReadDir(filepath.Join(stored.Path, "plugins"))
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is committed when one download fails")
	leftovers, err := filepath.Glob(filepath.Join(stored.Path, ".plugins-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "staging directory is removed")
}

func TestInstallPlugin_ReplacesSameProjectUnderOtherKey(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)
	pluginsDir := filepath.Join(record.Path, "plugins")
	require.NoError(t, os.MkdirAll(pluginsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginsDir, "LuckPerms-5.0.0.jar"), []byte("old"), 0o644))
	require.NoError(t, f.registry.WithServer(context.Background(), "box1", func(r *domain.ServerRecord) error {
		if r.InstalledPlugins == nil {
			r.InstalledPlugins = map[string]domain.PluginDescriptor{}
		}
		r.InstalledPlugins["LP"] = domain.PluginDescriptor{
			Slug: "LP", ProjectID: "LP", VersionNumber: "5.0.0", FileName: "LuckPerms-5.0.0.jar",
		}
		return nil
	}))

	lp := f.pluginVersion(t, "luckperms", "lp5", "5.4.102")
	lp.ProjectID = "LP"
	f.catalog.On("Versions", mock.Anything, "luckperms").Return([]domain.PluginDescriptor{lp}, nil)

	_, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	require.NoError(t, err)

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Equal(t, []string{"luckperms"}, stored.PluginSlugs(), "one entry per project")
	assert.NoFileExists(t, filepath.Join(pluginsDir, "LuckPerms-5.0.0.jar"))
	assert.FileExists(t, filepath.Join(pluginsDir, "luckperms-5.4.102.jar"))

	require.NoError(t, f.orchestrator.RemovePlugin(context.Background(), "box1", "LP"))
	assert.NoFileExists(t, filepath.Join(pluginsDir, "luckperms-5.4.102.jar"))
	plugins, err := f.orchestrator.ListPlugins(context.Background(), "box1")
	require.NoError(t, err)
	assert.Empty(t, plugins)
}

func TestInstallPlugin_Rejections(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "plain", ServerType: domain.ServerTypeVanilla})
	require.NoError(t, err)

	_, err = f.orchestrator.InstallPlugin(context.Background(), "plain", "luckperms", InstallOptions{})
	assert.ErrorIs(t, err, domain.ErrIncompatible)

	_, err = f.orchestrator.InstallPlugin(context.Background(), "missing", "luckperms", InstallOptions{})
	assert.ErrorIs(t, err, domain.ErrServerNotFound)

	f.createBox(t)
	_, err = f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{Version: ">="})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	f.catalog.AssertNotCalled(t, "Versions", mock.Anything, mock.Anything)
}

func TestInstallPlugin_RejectsUnsafeFileNames(t *testing.T) {
	f := newFixture(t)
	f.createBox(t)
	evil := f.pluginVersion(t, "evil", "e1", "1.0")
	evil.FileName = "../../server.jar"
	f.catalog.On("Versions", mock.Anything, "evil").Return([]domain.PluginDescriptor{evil}, nil)

	_, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "evil", InstallOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.fetcher.count("https://cdn/e1.jar"))
}

func TestRemoveAndListPlugins(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)
	f.luckpermsWithConfigurate(t)
	_, err := f.orchestrator.InstallPlugin(context.Background(), "box1", "luckperms", InstallOptions{})
	require.NoError(t, err)

	require.NoError(t, f.orchestrator.RemovePlugin(context.Background(), "box1", "luckperms"))
	assert.NoFileExists(t, filepath.Join(record.Path, "plugins", "luckperms-5.4.102.jar"))

	plugins, err := f.orchestrator.ListPlugins(context.Background(), "box1")
	require.NoError(t, err)
	require.Len(t, plugins, 1)
	assert.Equal(t, "configurate", plugins[0].Slug, "dependencies stay installed")

	err = f.orchestrator.RemovePlugin(context.Background(), "box1", "luckperms")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearchPlugins(t *testing.T) {
	f := newFixture(t)
	hits := []domain.PluginSearchHit{{Slug: "luckperms", Title: "LuckPerms"}}
	f.catalog.On("Search", mock.Anything, "perms", 5).Return(hits, nil)

	got, err := f.orchestrator.SearchPlugins(context.Background(), "perms", 5)
	require.NoError(t, err)
	assert.Equal(t, hits, got)

	_, err = f.orchestrator.SearchPlugins(context.Background(), "  ", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestListAndInfo(t *testing.T) {
	f := newFixture(t)
	f.createBox(t)
	_, err := f.orchestrator.CreateServer(context.Background(), CreateRequest{Name: "alpha", ServerType: domain.ServerTypeVanilla, Port: 25570})
	require.NoError(t, err)

	records, err := f.orchestrator.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Name)
	assert.Equal(t, 25570, records[0].Port)
	assert.Empty(t, records[0].Loader)

	info, err := f.orchestrator.Info(context.Background(), "box1")
	require.NoError(t, err)
	assert.True(t, info.DirectoryPresent)
	assert.Positive(t, info.Usage.SizeBytes)
	assert.False(t, info.Usage.HasWorld)
}

func TestDeleteServer_ThenInfoIsNotFound(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)

	removed, err := f.orchestrator.DeleteServer(context.Background(), "box1")
	require.NoError(t, err)
	assert.Equal(t, record.Name, removed.Name)
	assert.NoDirExists(t, record.Path)

	_, err = f.orchestrator.Info(context.Background(), "box1")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)

	_, err = f.orchestrator.DeleteServer(context.Background(), "box1")
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}

func TestDeleteServer_CleanupFailureIsWarning(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.registry.Update(context.Background(), func(reg *domain.Registry) error {
		return reg.Add(domain.ServerRecord{Name: "elsewhere", Path: t.TempDir(), InstalledPlugins: map[string]domain.PluginDescriptor{}})
	}))

	_, err := f.orchestrator.DeleteServer(context.Background(), "elsewhere")
	assert.ErrorIs(t, err, domain.ErrCleanupWarning)

	_, err = f.orchestrator.Info(context.Background(), "elsewhere")
	assert.ErrorIs(t, err, domain.ErrServerNotFound, "registry entry is not restored")
}

func TestStart_RecordsLaunch(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)

	f.launcher.On("Launch", mock.Anything, mock.MatchedBy(func(spec ports.LaunchSpec) bool {
		return spec.JarFile == record.JarFile && spec.WorkDir == record.Path && spec.MemoryGB == 4 && spec.Detach
	})).Return(stubProcess{pid: 4242}, nil).Once()

	proc, err := f.orchestrator.Start(context.Background(), "box1", StartOptions{MemoryGB: 4, Detach: true})
	require.NoError(t, err)
	assert.Equal(t, 4242, proc.PID())

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastLaunch)
	assert.Equal(t, 4242, stored.LastLaunch.PID)
	f.launcher.AssertExpectations(t)
}

func TestStart_Failures(t *testing.T) {
	f := newFixture(t)
	record := f.createBox(t)

	f.launcher.On("Launch", mock.Anything, mock.Anything).Return(nil, errors.New("exited with status 1")).Once()
	_, err := f.orchestrator.Start(context.Background(), "box1", StartOptions{})
	require.Error(t, err)

	stored, err := f.registry.Get(context.Background(), "box1")
	require.NoError(t, err)
	assert.Nil(t, stored.LastLaunch)

	require.NoError(t, os.Remove(filepath.Join(record.Path, record.JarFile)))
	_, err = f.orchestrator.Start(context.Background(), "box1", StartOptions{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orchestrator.Start(context.Background(), "nope", StartOptions{})
	assert.ErrorIs(t, err, domain.ErrServerNotFound)
}
