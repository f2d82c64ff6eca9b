// Package registry persists the server registry as a JSON file guarded by
// an advisory lock.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	"anvil.dev/cli/internal/infrastructure/lock"
)

const (
	registryFileName = "registry.json"
	lockFileName     = "registry.lock"
)

// FileStore manages the registry in <dataDir>/registry.json.
type FileStore struct {
	dataDir     string
	filePath    string
	lockPath    string
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.ServerRegistry = (*FileStore)(nil)

// NewFileStore creates a new file-backed registry
func NewFileStore(dataDir string, lockTimeout time.Duration, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{
		dataDir:     dataDir,
		filePath:    filepath.Join(dataDir, registryFileName),
		lockPath:    filepath.Join(dataDir, lockFileName),
		lockTimeout: lockTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Path returns the registry file location.
func (s *FileStore) Path() string { return s.filePath }

// registryFile is the persisted format
type registryFile struct {
	SchemaVersion int                            `json:"schema_version"`
	LastUpdated   time.Time                      `json:"last_updated"`
	Servers       map[string]domain.ServerRecord `json:"servers"`
}

// Load reads the registry under a shared lock. A missing file is an empty
// registry; an unreadable or corrupt one is a persistence error.
func (s *FileStore) Load(ctx context.Context) (*domain.Registry, error) {
	var reg *domain.Registry
	err := s.withLock(ctx, lock.Shared, func() error {
		var err error
		reg, err = s.read()
		return err
	})
	return reg, err
}

// Save replaces the registry under an exclusive lock.
func (s *FileStore) Save(ctx context.Context, registry *domain.Registry) error {
	return s.withLock(ctx, lock.Exclusive, func() error {
		return s.write(registry)
	})
}

// Update holds the exclusive lock across load, fn and save. Nothing is
// written when fn fails.
func (s *FileStore) Update(ctx context.Context, fn func(*domain.Registry) error) error {
	return s.withLock(ctx, lock.Exclusive, func() error {
		reg, err := s.read()
		if err != nil {
			return err
		}
		if err := fn(reg); err != nil {
			return err
		}
		return s.write(reg)
	})
}

// View runs fn on the registry under a shared lock.
func (s *FileStore) View(ctx context.Context, fn func(*domain.Registry) error) error {
	return s.withLock(ctx, lock.Shared, func() error {
		reg, err := s.read()
		if err != nil {
			return err
		}
		return fn(reg)
	})
}

// WithServer applies mutation to the named record and saves the result.
func (s *FileStore) WithServer(ctx context.Context, name string, mutation func(*domain.ServerRecord) error) error {
	return s.Update(ctx, func(reg *domain.Registry) error {
		record, err := reg.Get(name)
		if err != nil {
			return err
		}
		if err := mutation(&record); err != nil {
			return err
		}
		if record.Name != name {
			return fmt.Errorf("mutation renamed server %q to %q", name, record.Name)
		}
		reg.Servers[name] = record
		return nil
	})
}

// Get looks up one server.
func (s *FileStore) Get(ctx context.Context, name string) (domain.ServerRecord, error) {
	var record domain.ServerRecord
	err := s.View(ctx, func(reg *domain.Registry) error {
		var err error
		record, err = reg.Get(name)
		return err
	})
	return record, err
}

func (s *FileStore) withLock(ctx context.Context, mode lock.Mode, fn func() error) error {
	l, err := lock.Acquire(ctx, s.lockPath, mode, s.lockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := l.Release(); err != nil {
			s.logger.Warn("failed to release registry lock", "path", s.lockPath, "error", err)
		}
	}()
	return fn()
}

func (s *FileStore) read() (*domain.Registry, error) {
	data, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewRegistry(), nil
	}
	if err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load registry", s.filePath, err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, domain.NewError(domain.ErrPersistence, "load registry", s.filePath, fmt.Errorf("corrupt registry: %w", err))
	}
	if file.SchemaVersion > domain.RegistrySchemaVersion {
		return nil, domain.NewError(domain.ErrPersistence, "load registry", s.filePath,
			fmt.Errorf("schema version %d is newer than supported version %d", file.SchemaVersion, domain.RegistrySchemaVersion))
	}

	reg := domain.NewRegistry()
	for name, record := range file.Servers {
		if record.Name != name {
			return nil, domain.NewError(domain.ErrPersistence, "load registry", s.filePath,
				fmt.Errorf("entry %q holds server %q", name, record.Name))
		}
		if record.InstalledPlugins == nil {
			record.InstalledPlugins = map[string]domain.PluginDescriptor{}
		}
		reg.Servers[name] = record
	}
	return reg, nil
}

// write replaces the registry file atomically: temp file, fsync, rename,
// then fsync of the directory.
func (s *FileStore) write(registry *domain.Registry) (err error) {
	fail := func(err error) error {
		return domain.NewError(domain.ErrPersistence, "save registry", s.filePath, err)
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fail(fmt.Errorf("failed to create data directory: %w", err))
	}

	file := registryFile{
		SchemaVersion: domain.RegistrySchemaVersion,
		LastUpdated:   s.now().UTC(),
		Servers:       registry.Servers,
	}
	if file.Servers == nil {
		file.Servers = map[string]domain.ServerRecord{}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fail(fmt.Errorf("failed to marshal registry: %w", err))
	}

	tmp, err := os.CreateTemp(s.dataDir, registryFileName+".*.tmp")
	if err != nil {
		return fail(fmt.Errorf("failed to create temp file: %w", err))
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fail(fmt.Errorf("failed to write registry: %w", err))
	}
	if err = tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync registry: %w", err))
	}
	if err = tmp.Close(); err != nil {
		return fail(fmt.Errorf("failed to close registry: %w", err))
	}
	if err = os.Rename(tmp.Name(), s.filePath); err != nil {
		return fail(fmt.Errorf("failed to replace registry: %w", err))
	}

	if dir, derr := os.Open(s.dataDir); derr == nil {
		dir.Sync()
		dir.Close()
	}
	registry.SchemaVersion = domain.RegistrySchemaVersion
	return nil
}
