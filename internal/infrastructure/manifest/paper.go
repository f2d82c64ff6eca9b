// Package manifest reads the build manifests server distributions publish.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
	httpinfra "anvil.dev/cli/internal/infrastructure/http"
)

// DefaultPaperAPI is the public PaperMC downloads API.
const DefaultPaperAPI = "https://api.papermc.io"

// Paper reads the PaperMC v2 downloads API.
type Paper struct {
	fetcher ports.DocumentFetcher
	baseURL string
	project string
}

var _ ports.ManifestSource = (*Paper)(nil)

// NewPaper creates a Paper manifest source rooted at baseURL.
func NewPaper(fetcher ports.DocumentFetcher, baseURL string) *Paper {
	if baseURL == "" {
		baseURL = DefaultPaperAPI
	}
	return &Paper{fetcher: fetcher, baseURL: baseURL, project: "paper"}
}

type paperProject struct {
	Versions []string `json:"versions"`
}

type paperBuilds struct {
	Builds []struct {
		Build     int    `json:"build"`
		Channel   string `json:"channel"`
		Downloads map[string]struct {
			Name   string `json:"name"`
			SHA256 string `json:"sha256"`
		} `json:"downloads"`
	} `json:"builds"`
}

// Versions lists the game versions Paper publishes builds for.
func (p *Paper) Versions(ctx context.Context) ([]string, error) {
	var project paperProject
	if err := p.get(ctx, &project, "v2", "projects", p.project); err != nil {
		return nil, err
	}
	return project.Versions, nil
}

// Builds lists the builds of one game version. Builds without an
// application download are skipped.
func (p *Paper) Builds(ctx context.Context, gameVersion string) ([]domain.ManifestBuild, error) {
	var doc paperBuilds
	if err := p.get(ctx, &doc, "v2", "projects", p.project, "versions", gameVersion, "builds"); err != nil {
		return nil, err
	}

	builds := make([]domain.ManifestBuild, 0, len(doc.Builds))
	for _, b := range doc.Builds {
		app, ok := b.Downloads["application"]
		if !ok || app.Name == "" {
			continue
		}
		builds = append(builds, domain.ManifestBuild{
			BuildID: b.Build,
			URL: httpinfra.JoinURL(p.baseURL, nil, "v2", "projects", p.project, "versions", gameVersion,
				"builds", strconv.Itoa(b.Build), "downloads", app.Name),
			Checksum: "sha256:" + app.SHA256,
			FileName: app.Name,
		})
	}
	return builds, nil
}

func (p *Paper) get(ctx context.Context, target any, segments ...string) error {
	url := httpinfra.JoinURL(p.baseURL, nil, segments...)
	body, err := p.fetcher.FetchDocument(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return domain.NewError(domain.ErrManifestUnavailable, "paper manifest", url, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
