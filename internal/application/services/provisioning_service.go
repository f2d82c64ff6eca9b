package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// OrchestratorDeps are the collaborators the orchestrator coordinates.
type OrchestratorDeps struct {
	Versions  ports.VersionResolver
	Plugins   ports.PluginResolver
	Catalog   ports.PluginCatalog
	Fetcher   ports.ArtifactFetcher
	Registry  ports.ServerRegistry
	Workspace ports.ServerWorkspace
	Launcher  ports.ProcessLauncher
	Logger    *slog.Logger
}

// OrchestratorOptions tune provisioning.
type OrchestratorOptions struct {
	DownloadConcurrency int
	JavaPath            string
	DefaultMemoryGB     int
	LaunchGrace         time.Duration
}

// ProvisioningOrchestrator realizes create, install, list, info, delete and
// start requests. It is the only entry point the CLI uses.
type ProvisioningOrchestrator struct {
	deps   OrchestratorDeps
	opts   OrchestratorOptions
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewProvisioningOrchestrator creates a new orchestrator
func NewProvisioningOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions) *ProvisioningOrchestrator {
	if opts.DownloadConcurrency < 1 {
		opts.DownloadConcurrency = 1
	}
	if opts.DefaultMemoryGB < 1 {
		opts.DefaultMemoryGB = 2
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProvisioningOrchestrator{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateRequest describes a server to provision.
type CreateRequest struct {
	Name        string
	ServerType  domain.ServerType
	VersionSpec string
	Port        int
}

// CreateServer resolves, downloads and registers a new server. The record
// is registered only once the jar is in place; on any failure after the
// directory was made, the directory is removed again.
func (o *ProvisioningOrchestrator) CreateServer(ctx context.Context, req CreateRequest) (record domain.ServerRecord, err error) {
	if err := domain.ValidateServerName(req.Name); err != nil {
		return domain.ServerRecord{}, err
	}
	if req.Port < 0 || req.Port > 65535 {
		return domain.ServerRecord{}, domain.NewError(domain.ErrInvalidInput, "create server", req.Name, fmt.Errorf("port %d out of range", req.Port))
	}
	if err := o.ensureNameFree(ctx, req.Name); err != nil {
		return domain.ServerRecord{}, err
	}

	build, err := o.deps.Versions.Resolve(ctx, req.ServerType, req.VersionSpec)
	if err != nil {
		return domain.ServerRecord{}, fmt.Errorf("failed to resolve %s %s: %w", req.ServerType, versionLabel(req.VersionSpec), err)
	}
	o.logger.Info("resolved server build", "type", build.ServerType, "version", build.GameVersion, "build", build.BuildID)

	dir, err := o.deps.Workspace.Create(req.Name)
	if err != nil {
		return domain.ServerRecord{}, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rmErr := o.deps.Workspace.Remove(dir); rmErr != nil {
			o.logger.Warn("failed to clean up server directory", "path", dir, "error", rmErr)
		}
	}()

	jarName, err := safeFileName(build.JarName())
	if err != nil {
		return domain.ServerRecord{}, err
	}
	if err := o.deps.Fetcher.Fetch(ctx, build.DownloadURL, build.ExpectedChecksum, filepath.Join(dir, jarName)); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("failed to download server jar: %w", err)
	}

	port := req.Port
	if port == 0 {
		port = defaultPort
	}
	if err := o.deps.Workspace.Scaffold(dir, ports.ScaffoldSpec{Port: port, JarFile: jarName, MemoryGB: o.opts.DefaultMemoryGB}); err != nil {
		return domain.ServerRecord{}, fmt.Errorf("failed to scaffold server: %w", err)
	}

	var loader string
	if loaders := build.ServerType.Loaders(); len(loaders) > 0 {
		loader = loaders[0]
	}
	record = domain.ServerRecord{
		ID:               o.newID(),
		Name:             req.Name,
		ServerType:       build.ServerType,
		GameVersion:      build.GameVersion,
		BuildID:          build.BuildID,
		Loader:           loader,
		Port:             port,
		JarFile:          jarName,
		Path:             dir,
		CreatedAt:        o.now().UTC(),
		InstalledPlugins: map[string]domain.PluginDescriptor{},
	}
	if err := o.deps.Registry.Update(ctx, func(reg *domain.Registry) error {
		return reg.Add(record)
	}); err != nil {
		return domain.ServerRecord{}, err
	}

	o.logger.Info("server created", "name", record.Name, "path", dir)
	return record, nil
}

const defaultPort = 25565

func (o *ProvisioningOrchestrator) ensureNameFree(ctx context.Context, name string) error {
	return o.deps.Registry.View(ctx, func(reg *domain.Registry) error {
		if _, err := reg.Get(name); err == nil {
			return domain.NewError(domain.ErrNameConflict, "create server", name, fmt.Errorf("server already registered"))
		}
		return nil
	})
}

// InstallOptions narrow a plugin installation.
type InstallOptions struct {
	// Version is a version constraint on the requested plugin
	Version string
}

// InstallResult reports what an installation did.
type InstallResult struct {
	Installed []domain.PluginDescriptor
	// Skipped lists slugs whose jar was already present and verified
	Skipped []string
}

// InstallPlugin resolves slug and its required dependencies for the
// server, downloads every artifact not already present with a matching
// checksum, and records the whole set only after all downloads landed.
// Installing an already-installed plugin changes nothing.
func (o *ProvisioningOrchestrator) InstallPlugin(ctx context.Context, serverName, slug string, opts InstallOptions) (InstallResult, error) {
	record, err := o.deps.Registry.Get(ctx, serverName)
	if err != nil {
		return InstallResult{}, err
	}
	if !record.ServerType.SupportsPlugins() {
		return InstallResult{}, domain.NewError(domain.ErrIncompatible, "install plugin", slug,
			fmt.Errorf("%s servers cannot load plugins", record.ServerType))
	}
	constraint, err := domain.ParseConstraint(opts.Version)
	if err != nil {
		return InstallResult{}, domain.NewError(domain.ErrInvalidInput, "install plugin", slug, err)
	}

	set, err := o.deps.Plugins.Resolve(ctx, ports.PluginRequest{
		Slug:        slug,
		Constraint:  constraint,
		GameVersion: record.GameVersion,
		Loaders:     record.ServerType.Loaders(),
	})
	if err != nil {
		return InstallResult{}, err
	}

	pluginsDir := o.deps.Workspace.PluginsDir(record.Path)
	skipped, committed, err := o.fetchAll(ctx, pluginsDir, set)
	if err != nil {
		return InstallResult{}, err
	}

	var replaced []string
	err = o.deps.Registry.WithServer(ctx, serverName, func(r *domain.ServerRecord) error {
		replaced = nil
		for _, d := range set {
			if !r.AcceptsPlugin(d) {
				return domain.NewError(domain.ErrIncompatible, "install plugin", d.Slug,
					fmt.Errorf("version %s does not support Minecraft %s on %s", d.VersionNumber, r.GameVersion, r.ServerType))
			}
		}
		if r.InstalledPlugins == nil {
			r.InstalledPlugins = map[string]domain.PluginDescriptor{}
		}
		for _, d := range set {
			// the same project may be recorded under its id or another slug
			for _, key := range r.PluginKeys(d) {
				prev := r.InstalledPlugins[key]
				if prev.JarName() != d.JarName() {
					replaced = append(replaced, prev.JarName())
				}
				delete(r.InstalledPlugins, key)
			}
			r.InstalledPlugins[d.Slug] = d
		}
		return nil
	})
	if err != nil {
		o.removeJars(pluginsDir, committed)
		return InstallResult{}, err
	}
	o.removeJars(pluginsDir, replaced)

	o.logger.Info("plugins installed", "server", serverName, "plugins", sortedSlugs(set), "skipped", len(skipped))
	return InstallResult{Installed: set, Skipped: skipped}, nil
}

// fetchAll downloads the set into a staging directory next to dir with
// bounded parallelism and moves the jars into dir only once every download
// succeeded. Files in dir whose checksum already matches are left alone.
// It returns the slugs that were already present and the file names it
// moved into dir.
func (o *ProvisioningOrchestrator) fetchAll(ctx context.Context, dir string, set []domain.PluginDescriptor) ([]string, []string, error) {
	names := make([]string, len(set))
	for i, d := range set {
		name, err := safeFileName(d.JarName())
		if err != nil {
			return nil, nil, err
		}
		names[i] = name
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create plugins directory: %w", err)
	}
	staging, err := os.MkdirTemp(filepath.Dir(dir), ".plugins-*"+ports.PartialSuffix)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			o.logger.Warn("failed to remove staging directory", "path", staging, "error", err)
		}
	}()

	present := make([]bool, len(set))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.DownloadConcurrency)
	for i, d := range set {
		g.Go(func() error {
			dest := filepath.Join(dir, names[i])
			ok, err := o.deps.Fetcher.Verify(dest, d.ExpectedChecksum)
			if err != nil {
				o.logger.Debug("existing plugin jar not verifiable", "file", dest, "error", err)
			}
			if ok {
				present[i] = true
				return nil
			}
			if err := o.deps.Fetcher.Fetch(gctx, d.DownloadURL, d.ExpectedChecksum, filepath.Join(staging, names[i])); err != nil {
				return fmt.Errorf("failed to download %s %s: %w", d.Slug, d.VersionNumber, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var skipped, committed []string
	for i, d := range set {
		if present[i] {
			skipped = append(skipped, d.Slug)
			continue
		}
		if err := os.Rename(filepath.Join(staging, names[i]), filepath.Join(dir, names[i])); err != nil {
			o.removeJars(dir, committed)
			return nil, nil, fmt.Errorf("failed to install %s: %w", names[i], err)
		}
		committed = append(committed, names[i])
	}
	return skipped, committed, nil
}

// removeJars deletes plugin jars by file name, logging what it cannot remove.
func (o *ProvisioningOrchestrator) removeJars(dir string, names []string) {
	for _, name := range names {
		name, err := safeFileName(name)
		if err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			o.logger.Warn("failed to remove plugin jar", "file", name, "error", err)
		}
	}
}

// RemovePlugin drops slug from the server and deletes its jar. Plugins
// that were installed as its dependencies stay.
func (o *ProvisioningOrchestrator) RemovePlugin(ctx context.Context, serverName, slug string) error {
	var removed domain.PluginDescriptor
	var dir string
	err := o.deps.Registry.WithServer(ctx, serverName, func(r *domain.ServerRecord) error {
		key, ok := r.PluginKey(slug)
		if !ok {
			return domain.NotFoundError("remove plugin", slug, fmt.Errorf("not installed on %s", serverName))
		}
		d := r.InstalledPlugins[key]
		delete(r.InstalledPlugins, key)
		removed = d
		dir = o.deps.Workspace.PluginsDir(r.Path)
		return nil
	})
	if err != nil {
		return err
	}

	name, err := safeFileName(removed.JarName())
	if err != nil {
		return domain.NewError(domain.ErrCleanupWarning, "remove plugin", slug, err)
	}
	if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.NewError(domain.ErrCleanupWarning, "remove plugin", slug, err)
	}
	return nil
}

// ListPlugins returns the server's installed plugins ordered by slug.
func (o *ProvisioningOrchestrator) ListPlugins(ctx context.Context, serverName string) ([]domain.PluginDescriptor, error) {
	record, err := o.deps.Registry.Get(ctx, serverName)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PluginDescriptor, 0, len(record.InstalledPlugins))
	for _, slug := range record.PluginSlugs() {
		out = append(out, record.InstalledPlugins[slug])
	}
	return out, nil
}

// SearchPlugins queries the catalog.
func (o *ProvisioningOrchestrator) SearchPlugins(ctx context.Context, query string, limit int) ([]domain.PluginSearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "search plugins", query, fmt.Errorf("empty query"))
	}
	return o.deps.Catalog.Search(ctx, query, limit)
}

// List returns every registered server ordered by name.
func (o *ProvisioningOrchestrator) List(ctx context.Context) ([]domain.ServerRecord, error) {
	var records []domain.ServerRecord
	err := o.deps.Registry.View(ctx, func(reg *domain.Registry) error {
		records = reg.Sorted()
		return nil
	})
	return records, err
}

// ServerInfo is a record plus what is on disk for it.
type ServerInfo struct {
	Record           domain.ServerRecord  `json:"record" yaml:"record"`
	Usage            ports.WorkspaceUsage `json:"usage" yaml:"usage"`
	DirectoryPresent bool                 `json:"directory_present" yaml:"directory_present"`
}

// Info looks up a server and measures its directory.
func (o *ProvisioningOrchestrator) Info(ctx context.Context, name string) (ServerInfo, error) {
	record, err := o.deps.Registry.Get(ctx, name)
	if err != nil {
		return ServerInfo{}, err
	}
	info := ServerInfo{Record: record}
	if _, statErr := os.Stat(record.Path); statErr != nil {
		return info, nil
	}
	info.DirectoryPresent = true
	info.Usage, err = o.deps.Workspace.Inspect(record.Path)
	if err != nil {
		o.logger.Warn("failed to inspect server directory", "path", record.Path, "error", err)
	}
	return info, nil
}

// DeleteServer removes the registry entry, then the directory. A directory
// that cannot be removed is reported as a cleanup warning; the entry is
// not restored.
func (o *ProvisioningOrchestrator) DeleteServer(ctx context.Context, name string) (domain.ServerRecord, error) {
	var removed domain.ServerRecord
	err := o.deps.Registry.Update(ctx, func(reg *domain.Registry) error {
		var err error
		removed, err = reg.Remove(name)
		return err
	})
	if err != nil {
		return domain.ServerRecord{}, err
	}

	if err := o.deps.Workspace.Remove(removed.Path); err != nil {
		return removed, domain.NewError(domain.ErrCleanupWarning, "delete server", name,
			fmt.Errorf("registry entry removed but directory remains: %w", err))
	}
	o.logger.Info("server deleted", "name", name)
	return removed, nil
}

// DeleteUnregistered removes the directory of a server name that has no
// registry entry, as left behind by a create that was killed before it
// registered. It returns the removed directory.
func (o *ProvisioningOrchestrator) DeleteUnregistered(ctx context.Context, name string) (string, error) {
	if err := domain.ValidateServerName(name); err != nil {
		return "", err
	}
	dir := o.deps.Workspace.Dir(name)
	err := o.deps.Registry.View(ctx, func(reg *domain.Registry) error {
		if _, err := reg.Get(name); err == nil {
			return domain.NewError(domain.ErrNameConflict, "delete unregistered directory", name, fmt.Errorf("server is registered"))
		}
		if _, err := os.Stat(dir); err != nil {
			return domain.ServerNotFoundError(name)
		}
		return o.deps.Workspace.Remove(dir)
	})
	if err != nil {
		return "", err
	}
	o.logger.Info("unregistered server directory removed", "name", name, "path", dir)
	return dir, nil
}

// StartOptions control a launch.
type StartOptions struct {
	MemoryGB int
	Detach   bool
	Stdio    Stdio
}

// Stdio wires the server console.
type Stdio struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// Start launches the server and records its PID. The returned process is
// still running; the caller decides whether to wait for it.
func (o *ProvisioningOrchestrator) Start(ctx context.Context, name string, opts StartOptions) (ports.Process, error) {
	record, err := o.deps.Registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	jar := filepath.Join(record.Path, record.JarFile)
	if _, err := os.Stat(jar); err != nil {
		return nil, domain.NotFoundError("start server", jar, fmt.Errorf("server jar missing: %w", err))
	}

	memory := opts.MemoryGB
	if memory == 0 {
		memory = o.opts.DefaultMemoryGB
	}
	spec := ports.LaunchSpec{
		JavaPath: o.opts.JavaPath,
		JarFile:  record.JarFile,
		WorkDir:  record.Path,
		MemoryGB: memory,
		Detach:   opts.Detach,
		Grace:    o.opts.LaunchGrace,
		Stdin:    opts.Stdio.In,
		Stdout:   opts.Stdio.Out,
		Stderr:   opts.Stdio.Err,
	}

	proc, err := o.deps.Launcher.Launch(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	launch := &domain.LaunchInfo{PID: proc.PID(), StartedAt: o.now().UTC()}
	if err := o.deps.Registry.WithServer(ctx, name, func(r *domain.ServerRecord) error {
		r.LastLaunch = launch
		return nil
	}); err != nil {
		o.logger.Warn("server started but launch was not recorded", "name", name, "pid", launch.PID, "error", err)
	}
	o.logger.Info("server started", "name", name, "pid", launch.PID, "detached", opts.Detach)
	return proc, nil
}

// safeFileName rejects catalog-supplied names that would escape the
// target directory.
func safeFileName(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." || strings.ContainsAny(name, `/\`) {
		return "", domain.NewError(domain.ErrInvalidInput, "validate file name", name, fmt.Errorf("not a plain file name"))
	}
	return base, nil
}

func versionLabel(spec string) string {
	if strings.TrimSpace(spec) == "" {
		return "latest"
	}
	return spec
}

func sortedSlugs(set []domain.PluginDescriptor) []string {
	slugs := make([]string, 0, len(set))
	for _, d := range set {
		slugs = append(slugs, d.Slug)
	}
	sort.Strings(slugs)
	return slugs
}
