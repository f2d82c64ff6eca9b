package di

import (
	"fmt"
	"log/slog"

	"anvil.dev/cli/internal/application/services"
	"anvil.dev/cli/internal/config"
	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	"anvil.dev/cli/internal/core/resolver"
	"anvil.dev/cli/internal/infrastructure/catalog"
	"anvil.dev/cli/internal/infrastructure/fetch"
	httpinfra "anvil.dev/cli/internal/infrastructure/http"
	"anvil.dev/cli/internal/infrastructure/manifest"
	"anvil.dev/cli/internal/infrastructure/process"
	"anvil.dev/cli/internal/infrastructure/registry"
	"anvil.dev/cli/internal/infrastructure/workspace"
)

// Options supply the pieces that depend on the invoking terminal.
type Options struct {
	Logger *slog.Logger

	// Progress receives download progress; nil disables reporting
	Progress ports.ProgressReporter
}

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	// Infrastructure
	Requester *httpinfra.Requester
	Fetcher   *fetch.Fetcher
	Sources   map[domain.ServerType]ports.ManifestSource
	Catalog   *catalog.Modrinth
	Registry  *registry.FileStore
	Workspace *workspace.Workspace
	Launcher  *process.Launcher

	// Core
	Versions *resolver.VersionResolver
	Plugins  *resolver.PluginResolver

	// Application
	Orchestrator *services.ProvisioningOrchestrator
}

// NewContainer creates and configures the dependency injection container
func NewContainer(cfg *config.Config, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Container{Config: cfg, Logger: logger}

	// 1. Transport and fetching
	c.Requester = httpinfra.NewRequester(httpinfra.Options{
		Timeout:           cfg.HTTPTimeout,
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	c.Fetcher = fetch.New(c.Requester, fetch.Options{
		Attempts:        cfg.RetryAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Progress:        opts.Progress,
		Logger:          logger.With("component", "fetcher"),
	})

	// 2. Remote metadata
	c.Sources = manifest.NewSources(c.Fetcher, cfg.Endpoints())
	c.Catalog = catalog.NewModrinth(c.Fetcher, cfg.ModrinthAPI)

	// 3. Local state
	c.Registry = registry.NewFileStore(cfg.DataDir, cfg.LockTimeout, logger.With("component", "registry"))
	c.Workspace = workspace.New(cfg.ServersDir, logger.With("component", "workspace"))
	c.Launcher = process.NewLauncher(logger.With("component", "launcher"))

	// 4. Resolvers
	c.Versions = resolver.NewVersionResolver(c.Sources, logger.With("component", "versions"))
	c.Plugins = resolver.NewPluginResolver(c.Catalog, logger.With("component", "plugins"))

	// 5. Orchestrator
	c.Orchestrator = services.NewProvisioningOrchestrator(services.OrchestratorDeps{
		Versions:  c.Versions,
		Plugins:   c.Plugins,
		Catalog:   c.Catalog,
		Fetcher:   c.Fetcher,
		Registry:  c.Registry,
		Workspace: c.Workspace,
		Launcher:  c.Launcher,
		Logger:    logger,
	}, services.OrchestratorOptions{
		DownloadConcurrency: cfg.DownloadConcurrency,
		JavaPath:            cfg.JavaPath,
		DefaultMemoryGB:     cfg.DefaultMemoryGB,
		LaunchGrace:         cfg.LaunchGrace,
	})

	logger.Debug("container initialized",
		"data_dir", cfg.DataDir,
		"servers_dir", cfg.ServersDir,
		"config", cfg.Source)
	return c, nil
}
