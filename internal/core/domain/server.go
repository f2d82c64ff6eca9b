package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// ServerType identifies the server distribution.
type ServerType string

const (
	ServerTypeVanilla ServerType = "vanilla"
	ServerTypePaper   ServerType = "paper"
)

// ServerTypes lists the supported distributions.
var ServerTypes = []ServerType{ServerTypePaper, ServerTypeVanilla}

// ParseServerType parses a server type name case-insensitively.
func ParseServerType(s string) (ServerType, error) {
	t := ServerType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ServerTypes {
		if t == known {
			return t, nil
		}
	}
	return "", NotFoundError("parse server type", s, fmt.Errorf("supported types are paper, vanilla"))
}

// Loaders returns the plugin loaders a server of this type can run, the
// primary loader first. Vanilla servers cannot load plugins.
func (t ServerType) Loaders() []string {
	switch t {
	case ServerTypePaper:
		return []string{"paper", "spigot", "bukkit"}
	}
	return nil
}

// SupportsPlugins reports whether plugins can be installed at all.
func (t ServerType) SupportsPlugins() bool { return len(t.Loaders()) > 0 }

// BuildDescriptor identifies exactly one server jar.
type BuildDescriptor struct {
	ServerType       ServerType `json:"server_type"`
	GameVersion      string     `json:"game_version"`
	BuildID          int        `json:"build_id"`
	DownloadURL      string     `json:"download_url"`
	ExpectedChecksum string     `json:"expected_checksum"`
	FileName         string     `json:"file_name"`
}

// JarName returns the file name the jar is stored under.
func (b BuildDescriptor) JarName() string {
	if b.FileName != "" {
		return b.FileName
	}
	return fmt.Sprintf("%s-%s-%d.jar", b.ServerType, b.GameVersion, b.BuildID)
}

// LaunchInfo records the most recent successful launch.
type LaunchInfo struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// ServerRecord is a provisioned server as stored in the registry.
type ServerRecord struct {
	ID               string                      `json:"id"`
	Name             string                      `json:"name"`
	ServerType       ServerType                  `json:"server_type"`
	GameVersion      string                      `json:"game_version"`
	BuildID          int                         `json:"build_id"`
	Loader           string                      `json:"loader"`
	Port             int                         `json:"port"`
	JarFile          string                      `json:"jar_file"`
	Path             string                      `json:"path"`
	CreatedAt        time.Time                   `json:"created_at"`
	InstalledPlugins map[string]PluginDescriptor `json:"installed_plugins"`
	LastLaunch       *LaunchInfo                 `json:"last_launch"`
}

// PluginSlugs returns the installed plugin slugs in sorted order.
func (r ServerRecord) PluginSlugs() []string {
	slugs := make([]string, 0, len(r.InstalledPlugins))
	for slug := range r.InstalledPlugins {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// PluginKey finds the installed plugin referenced by slug or project id.
func (r ServerRecord) PluginKey(ref string) (string, bool) {
	if _, ok := r.InstalledPlugins[ref]; ok {
		return ref, true
	}
	for _, slug := range r.PluginSlugs() {
		if id := r.InstalledPlugins[slug].ProjectID; id != "" && id == ref {
			return slug, true
		}
	}
	return "", false
}

// PluginKeys returns the keys of installed plugins that are the same
// catalog project as p.
func (r ServerRecord) PluginKeys(p PluginDescriptor) []string {
	var keys []string
	for _, slug := range r.PluginSlugs() {
		installed := r.InstalledPlugins[slug]
		if slug == p.Slug || (p.ProjectID != "" && (installed.ProjectID == p.ProjectID || slug == p.ProjectID)) {
			keys = append(keys, slug)
		}
	}
	return keys
}

// AcceptsPlugin re-checks a descriptor against the record's game version
// and loaders.
func (r ServerRecord) AcceptsPlugin(p PluginDescriptor) bool {
	return p.CompatibleWith(r.GameVersion, r.ServerType.Loaders())
}

// RegistrySchemaVersion is written into every saved registry.
const RegistrySchemaVersion = 1

// Registry is the persisted set of known servers keyed by name.
type Registry struct {
	SchemaVersion int                     `json:"schema_version"`
	Servers       map[string]ServerRecord `json:"servers"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{SchemaVersion: RegistrySchemaVersion, Servers: make(map[string]ServerRecord)}
}

// Get looks up a server by name.
func (r *Registry) Get(name string) (ServerRecord, error) {
	record, ok := r.Servers[name]
	if !ok {
		return ServerRecord{}, ServerNotFoundError(name)
	}
	return record, nil
}

// Add inserts a new record, failing on a duplicate name.
func (r *Registry) Add(record ServerRecord) error {
	if _, exists := r.Servers[record.Name]; exists {
		return NewError(ErrNameConflict, "register server", record.Name, nil)
	}
	if r.Servers == nil {
		r.Servers = make(map[string]ServerRecord)
	}
	r.Servers[record.Name] = record
	return nil
}

// Remove deletes a record, failing if it is absent.
func (r *Registry) Remove(name string) (ServerRecord, error) {
	record, err := r.Get(name)
	if err != nil {
		return ServerRecord{}, err
	}
	delete(r.Servers, name)
	return record, nil
}

// Sorted returns all records ordered by name.
func (r *Registry) Sorted() []ServerRecord {
	records := make([]ServerRecord, 0, len(r.Servers))
	for _, record := range r.Servers {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records
}

var serverNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateServerName rejects names that are unsafe as directory names.
func ValidateServerName(name string) error {
	if !serverNamePattern.MatchString(name) || name == "." || name == ".." {
		return NewError(ErrInvalidInput, "validate server name", name,
			fmt.Errorf("use 1-64 letters, digits, '.', '_' or '-', starting with a letter or digit"))
	}
	return nil
}
