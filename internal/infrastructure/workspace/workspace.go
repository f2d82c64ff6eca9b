// Package workspace lays out server directories on disk.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// DefaultPort is the game's standard server port.
const DefaultPort = 25565

// abandonedAfter is how long a directory of partial downloads must sit
// untouched before another create may reclaim it.
const abandonedAfter = 2 * time.Minute

// Workspace manages server directories under one root.
type Workspace struct {
	root   string
	logger *slog.Logger
}

var _ ports.ServerWorkspace = (*Workspace)(nil)

// New creates a workspace rooted at serversDir.
func New(serversDir string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workspace{root: ExpandPath(serversDir), logger: logger}
}

func (w *Workspace) Dir(name string) string {
	return filepath.Join(w.root, name)
}

// Create makes the directory for a new server. An existing directory is a
// name conflict even when the registry has no record of it, unless it
// holds nothing but stale uncommitted downloads left by an interrupted
// create.
func (w *Workspace) Create(name string) (string, error) {
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create servers directory: %w", err)
	}
	dir := w.Dir(name)
	err := os.Mkdir(dir, 0o755)
	if errors.Is(err, fs.ErrExist) && w.interrupted(dir) {
		w.logger.Info("reclaiming directory of an interrupted create", "path", dir)
		if err := os.RemoveAll(dir); err != nil {
			return "", fmt.Errorf("failed to reclaim %s: %w", dir, err)
		}
		err = os.Mkdir(dir, 0o755)
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", domain.NewError(domain.ErrNameConflict, "create server directory", name,
				fmt.Errorf("%s already exists", dir))
		}
		return "", fmt.Errorf("failed to create server directory: %w", err)
	}
	w.logger.Debug("created server directory", "path", dir)
	return dir, nil
}

// interrupted reports whether dir holds only partial downloads and nothing
// in it changed recently. A create still in flight keeps writing its
// partial file, so its directory is never reclaimed.
func (w *Workspace) interrupted(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || time.Since(info.ModTime()) < abandonedAfter {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") || !strings.HasSuffix(e.Name(), ports.PartialSuffix) {
			return false
		}
		info, err := e.Info()
		if err != nil || time.Since(info.ModTime()) < abandonedAfter {
			return false
		}
	}
	return true
}

// Scaffold writes the files a freshly downloaded server needs to boot.
func (w *Workspace) Scaffold(dir string, spec ports.ScaffoldSpec) error {
	if spec.Port == 0 {
		spec.Port = DefaultPort
	}
	if spec.MemoryGB == 0 {
		spec.MemoryGB = 2
	}

	files := []struct {
		name string
		body string
		mode os.FileMode
	}{
		{"server.properties", serverProperties(spec.Port), 0o644},
		{"eula.txt", "eula=true\n", 0o644},
		{"start.sh", shellScript(spec), 0o755},
		{"start.bat", batchScript(spec), 0o644},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.body), f.mode); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.name, err)
		}
		// WriteFile leaves the mode of an existing file alone
		if err := os.Chmod(path, f.mode); err != nil {
			return fmt.Errorf("failed to set mode of %s: %w", f.name, err)
		}
	}
	if err := os.MkdirAll(w.PluginsDir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create plugins directory: %w", err)
	}
	return nil
}

func (w *Workspace) PluginsDir(dir string) string {
	return filepath.Join(dir, "plugins")
}

// Remove deletes dir. Paths outside the workspace root are refused.
func (w *Workspace) Remove(dir string) error {
	rel, err := filepath.Rel(w.root, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return fmt.Errorf("refusing to remove %s: not inside %s", dir, w.root)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	w.logger.Debug("removed server directory", "path", dir)
	return nil
}

// Inspect walks dir to total its size, count plugin jars and detect a
// generated world.
func (w *Workspace) Inspect(dir string) (ports.WorkspaceUsage, error) {
	var usage ports.WorkspaceUsage
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		usage.SizeBytes += info.Size()
		return nil
	})
	if err != nil {
		return usage, fmt.Errorf("failed to inspect %s: %w", dir, err)
	}

	if entries, err := os.ReadDir(w.PluginsDir(dir)); err == nil {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".jar") {
				usage.PluginJars++
			}
		}
	}
	if info, err := os.Stat(filepath.Join(dir, "world")); err == nil && info.IsDir() {
		usage.HasWorld = true
	}
	return usage, nil
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

func serverProperties(port int) string {
	return fmt.Sprintf(`server-port=%d
online-mode=true
white-list=false
spawn-protection=16
max-players=20
level-name=world
gamemode=survival
difficulty=easy
spawn-monsters=true
spawn-animals=true
level-type=minecraft\:normal
`, port)
}

func shellScript(spec ports.ScaffoldSpec) string {
	return fmt.Sprintf(`#!/bin/sh
RAM="${1:-%d}"
exec java -Xmx"${RAM}G" -Xms"${RAM}G" -jar %s nogui
`, spec.MemoryGB, shellQuote(spec.JarFile))
}

func batchScript(spec ports.ScaffoldSpec) string {
	return fmt.Sprintf("@echo off\r\nset RAM=%%1\r\nif \"%%RAM%%\"==\"\" set RAM=%d\r\njava -Xmx%%RAM%%G -Xms%%RAM%%G -jar \"%s\" nogui\r\npause\r\n",
		spec.MemoryGB, spec.JarFile)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
