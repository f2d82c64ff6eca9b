// Package catalog queries the Modrinth plugin catalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	httpinfra "anvil.dev/cli/internal/infrastructure/http"
)

// DefaultModrinthAPI is the public Modrinth API.
const DefaultModrinthAPI = "https://api.modrinth.com"

// Modrinth implements ports.PluginCatalog against the Modrinth v2 API.
type Modrinth struct {
	fetcher ports.DocumentFetcher
	baseURL string
}

var _ ports.PluginCatalog = (*Modrinth)(nil)

// NewModrinth creates a catalog client rooted at baseURL.
func NewModrinth(fetcher ports.DocumentFetcher, baseURL string) *Modrinth {
	if baseURL == "" {
		baseURL = DefaultModrinthAPI
	}
	return &Modrinth{fetcher: fetcher, baseURL: baseURL}
}

type modrinthVersion struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Name          string    `json:"name"`
	VersionNumber string    `json:"version_number"`
	GameVersions  []string  `json:"game_versions"`
	Loaders       []string  `json:"loaders"`
	DatePublished time.Time `json:"date_published"`
	Files         []struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Primary  bool   `json:"primary"`
		Hashes   struct {
			SHA1   string `json:"sha1"`
			SHA512 string `json:"sha512"`
		} `json:"hashes"`
	} `json:"files"`
	Dependencies []struct {
		VersionID      string `json:"version_id"`
		ProjectID      string `json:"project_id"`
		DependencyType string `json:"dependency_type"`
	} `json:"dependencies"`
}

type modrinthSearch struct {
	Hits []struct {
		ProjectID   string `json:"project_id"`
		Slug        string `json:"slug"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Downloads   int    `json:"downloads"`
	} `json:"hits"`
}

// Versions returns every published version of slug that ships a jar.
// Dependencies reference other projects by id, which Modrinth accepts
// wherever a slug is expected.
func (m *Modrinth) Versions(ctx context.Context, slug string) ([]domain.PluginDescriptor, error) {
	endpoint := httpinfra.JoinURL(m.baseURL, nil, "v2", "project", slug, "version")
	var versions []modrinthVersion
	if err := m.get(ctx, endpoint, &versions); err != nil {
		return nil, err
	}

	descriptors := make([]domain.PluginDescriptor, 0, len(versions))
	for _, v := range versions {
		d, ok := v.descriptor(slug)
		if ok {
			descriptors = append(descriptors, d)
		}
	}
	return descriptors, nil
}

func (v modrinthVersion) descriptor(slug string) (domain.PluginDescriptor, bool) {
	if len(v.Files) == 0 {
		return domain.PluginDescriptor{}, false
	}
	file := v.Files[0]
	for _, f := range v.Files {
		if f.Primary {
			file = f
			break
		}
	}

	var sum string
	switch {
	case file.Hashes.SHA512 != "":
		sum = "sha512:" + file.Hashes.SHA512
	case file.Hashes.SHA1 != "":
		sum = "sha1:" + file.Hashes.SHA1
	}

	d := domain.PluginDescriptor{
		Slug:             slug,
		ProjectID:        v.ProjectID,
		VersionID:        v.ID,
		VersionNumber:    v.VersionNumber,
		Name:             v.Name,
		GameVersions:     domain.SortedSet(v.GameVersions),
		Loaders:          domain.SortedSet(v.Loaders),
		DownloadURL:      file.URL,
		FileName:         file.Filename,
		ExpectedChecksum: sum,
		PublishedAt:      v.DatePublished.UTC(),
		Dependencies:     []domain.Dependency{},
	}

	for _, dep := range v.Dependencies {
		var required bool
		switch dep.DependencyType {
		case "required":
			required = true
		case "optional":
		default:
			continue
		}
		if dep.ProjectID == "" {
			continue
		}
		constraint := domain.AnyVersion
		if dep.VersionID != "" {
			constraint = domain.PinVersionID(dep.VersionID)
		}
		d.Dependencies = append(d.Dependencies, domain.Dependency{
			Slug:              dep.ProjectID,
			VersionConstraint: constraint,
			Required:          required,
		})
	}
	return d, true
}

// Search finds plugin projects for the loaders Paper servers run.
func (m *Modrinth) Search(ctx context.Context, query string, limit int) ([]domain.PluginSearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	facets, err := json.Marshal([][]string{loaderFacets()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode facets: %w", err)
	}
	endpoint := httpinfra.JoinURL(m.baseURL, url.Values{
		"query":  {query},
		"limit":  {strconv.Itoa(limit)},
		"facets": {string(facets)},
	}, "v2", "search")

	var result modrinthSearch
	if err := m.get(ctx, endpoint, &result); err != nil {
		return nil, err
	}

	hits := make([]domain.PluginSearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, domain.PluginSearchHit{
			Slug:        h.Slug,
			ProjectID:   h.ProjectID,
			Title:       h.Title,
			Description: h.Description,
			Downloads:   h.Downloads,
		})
	}
	return hits, nil
}

func loaderFacets() []string {
	var facets []string
	for _, loader := range domain.ServerTypePaper.Loaders() {
		facets = append(facets, "categories:"+loader)
	}
	return facets
}

func (m *Modrinth) get(ctx context.Context, endpoint string, target any) error {
	body, err := m.fetcher.FetchDocument(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return domain.NewError(domain.ErrManifestUnavailable, "modrinth", endpoint, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
