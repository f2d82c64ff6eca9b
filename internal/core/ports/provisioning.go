package ports

import (
	"context"

	"anvil.dev/cli/internal/core/domain"
)

// PartialSuffix ends the name of a download that has not been committed.
const PartialSuffix = ".part"

// ManifestSource lists the builds a server distribution publishes.
type ManifestSource interface {
	// Versions returns every game version the manifest knows, in any order
	Versions(ctx context.Context) ([]string, error)

	// Builds returns the builds of one game version, in any order
	Builds(ctx context.Context, gameVersion string) ([]domain.ManifestBuild, error)
}

// PluginCatalog queries the remote plugin catalog.
type PluginCatalog interface {
	// Versions returns every published version of a project
	Versions(ctx context.Context, slug string) ([]domain.PluginDescriptor, error)

	// Search finds projects matching a free-text query
	Search(ctx context.Context, query string, limit int) ([]domain.PluginSearchHit, error)
}

// DocumentFetcher retrieves small remote documents (manifests, catalog
// responses) with the fetcher's retry policy.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, url string) ([]byte, error)
}

// ArtifactFetcher downloads and verifies artifacts.
type ArtifactFetcher interface {
	DocumentFetcher

	// Fetch downloads url to destination, committing it only if its
	// checksum matches expectedChecksum
	Fetch(ctx context.Context, url, expectedChecksum, destination string) error

	// Verify reports whether the file at path already matches checksum
	Verify(path, checksum string) (bool, error)
}

// VersionResolver resolves an abstract version request to a build.
type VersionResolver interface {
	Resolve(ctx context.Context, serverType domain.ServerType, versionSpec string) (domain.BuildDescriptor, error)
}

// PluginRequest is a plugin installation request for one server.
type PluginRequest struct {
	Slug        string
	Constraint  domain.Constraint
	GameVersion string
	Loaders     []string
}

// PluginResolver resolves a plugin and its required dependencies.
type PluginResolver interface {
	Resolve(ctx context.Context, req PluginRequest) ([]domain.PluginDescriptor, error)
}

// ServerRegistry persists known servers.
type ServerRegistry interface {
	// Load reads the registry under a shared lock
	Load(ctx context.Context) (*domain.Registry, error)

	// Save atomically replaces the registry under an exclusive lock
	Save(ctx context.Context, registry *domain.Registry) error

	// Update runs fn between load and save under one exclusive lock; the
	// registry is saved only if fn returns nil
	Update(ctx context.Context, fn func(*domain.Registry) error) error

	// View runs fn on a registry loaded under a shared lock
	View(ctx context.Context, fn func(*domain.Registry) error) error

	// WithServer applies mutation to one record inside Update
	WithServer(ctx context.Context, name string, mutation func(*domain.ServerRecord) error) error

	// Get looks up one record under a shared lock
	Get(ctx context.Context, name string) (domain.ServerRecord, error)
}
