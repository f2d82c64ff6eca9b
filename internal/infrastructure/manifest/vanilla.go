package manifest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// DefaultVanillaManifest is Mojang's launcher version manifest.
const DefaultVanillaManifest = "https://piston-meta.mojang.com/mc/game/version_manifest_v2.json"

// Vanilla reads Mojang's version manifest. Only releases are listed; each
// has exactly one server build, numbered 1.
type Vanilla struct {
	fetcher     ports.DocumentFetcher
	manifestURL string

	mu       sync.Mutex
	manifest []byte
}

var _ ports.ManifestSource = (*Vanilla)(nil)

// NewVanilla creates a Vanilla manifest source.
func NewVanilla(fetcher ports.DocumentFetcher, manifestURL string) *Vanilla {
	if manifestURL == "" {
		manifestURL = DefaultVanillaManifest
	}
	return &Vanilla{fetcher: fetcher, manifestURL: manifestURL}
}

// Versions lists release ids.
func (v *Vanilla) Versions(ctx context.Context) ([]string, error) {
	doc, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	var versions []string
	gjson.GetBytes(doc, "versions").ForEach(func(_, entry gjson.Result) bool {
		if entry.Get("type").String() == "release" {
			versions = append(versions, entry.Get("id").String())
		}
		return true
	})
	return versions, nil
}

// Builds returns the single server build of a release, or none if the
// release is unknown or ships no server jar.
func (v *Vanilla) Builds(ctx context.Context, gameVersion string) ([]domain.ManifestBuild, error) {
	doc, err := v.load(ctx)
	if err != nil {
		return nil, err
	}

	var detailsURL string
	gjson.GetBytes(doc, "versions").ForEach(func(_, entry gjson.Result) bool {
		if entry.Get("id").String() == gameVersion && entry.Get("type").String() == "release" {
			detailsURL = entry.Get("url").String()
			return false
		}
		return true
	})
	if detailsURL == "" {
		return nil, nil
	}

	details, err := v.fetcher.FetchDocument(ctx, detailsURL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(details) {
		return nil, domain.NewError(domain.ErrManifestUnavailable, "vanilla manifest", detailsURL, fmt.Errorf("invalid JSON"))
	}

	server := gjson.GetBytes(details, "downloads.server")
	if !server.Exists() || server.Get("url").String() == "" {
		return nil, nil
	}
	return []domain.ManifestBuild{{
		BuildID:  1,
		URL:      server.Get("url").String(),
		Checksum: "sha1:" + server.Get("sha1").String(),
		FileName: "vanilla-" + gameVersion + ".jar",
	}}, nil
}

func (v *Vanilla) load(ctx context.Context) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.manifest != nil {
		return v.manifest, nil
	}

	doc, err := v.fetcher.FetchDocument(ctx, v.manifestURL)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(doc) {
		return nil, domain.NewError(domain.ErrManifestUnavailable, "vanilla manifest", v.manifestURL, fmt.Errorf("invalid JSON"))
	}
	v.manifest = doc
	return doc, nil
}
