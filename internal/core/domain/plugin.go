package domain

import (
	"sort"
	"strings"
	"time"
)

// Dependency is a plugin's declared dependency on another catalog project.
type Dependency struct {
	Slug              string     `json:"slug"`
	VersionConstraint Constraint `json:"version_constraint"`
	Required          bool       `json:"required"`
}

// PluginDescriptor identifies one downloadable plugin version.
type PluginDescriptor struct {
	Slug             string       `json:"slug"`
	ProjectID        string       `json:"project_id"`
	VersionID        string       `json:"version_id"`
	VersionNumber    string       `json:"version_number"`
	Name             string       `json:"name"`
	GameVersions     []string     `json:"game_versions"`
	Loaders          []string     `json:"loaders"`
	DownloadURL      string       `json:"download_url"`
	FileName         string       `json:"file_name"`
	ExpectedChecksum string       `json:"expected_checksum"`
	PublishedAt      time.Time    `json:"published_at"`
	Dependencies     []Dependency `json:"dependencies"`
}

// SupportsGameVersion reports whether gameVersion is in the compatibility
// set. Matching is numeric-equivalent ("1.20" matches "1.20.0").
func (p PluginDescriptor) SupportsGameVersion(gameVersion string) bool {
	target, err := ParseVersion(gameVersion)
	for _, candidate := range p.GameVersions {
		if candidate == gameVersion {
			return true
		}
		if err != nil {
			continue
		}
		if v, perr := ParseVersion(candidate); perr == nil && v.Equivalent(target) {
			return true
		}
	}
	return false
}

// SupportsAnyLoader reports whether any of loaders is in the loader set.
func (p PluginDescriptor) SupportsAnyLoader(loaders []string) bool {
	for _, want := range loaders {
		for _, have := range p.Loaders {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// CompatibleWith combines the game version and loader checks.
func (p PluginDescriptor) CompatibleWith(gameVersion string, loaders []string) bool {
	return p.SupportsGameVersion(gameVersion) && p.SupportsAnyLoader(loaders)
}

// JarName returns the file name the plugin is stored under.
func (p PluginDescriptor) JarName() string {
	if p.FileName != "" {
		return p.FileName
	}
	return p.Slug + "-" + p.VersionNumber + ".jar"
}

// RequiredDependencies returns the required entries in declaration order.
func (p PluginDescriptor) RequiredDependencies() []Dependency {
	var required []Dependency
	for _, dep := range p.Dependencies {
		if dep.Required {
			required = append(required, dep)
		}
	}
	return required
}

// NewerThan orders descriptors by publication time, then version number,
// then version id, so selection never depends on catalog order.
func (p PluginDescriptor) NewerThan(o PluginDescriptor) bool {
	if !p.PublishedAt.Equal(o.PublishedAt) {
		return p.PublishedAt.After(o.PublishedAt)
	}
	if c := CompareVersionStrings(p.VersionNumber, o.VersionNumber); c != 0 {
		return c > 0
	}
	return p.VersionID > o.VersionID
}

// SortedSet returns a sorted, de-duplicated copy of values.
func SortedSet(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// PluginSearchHit is one catalog search result.
type PluginSearchHit struct {
	Slug        string `json:"slug"`
	ProjectID   string `json:"project_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Downloads   int    `json:"downloads"`
}
