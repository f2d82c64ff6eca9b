package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// Index reads a self-hosted manifest document of the form
//
//	{"versions": {"1.20.1": [{"build": 12, "url": "...", "checksum": "sha256:..."}]}}
type Index struct {
	fetcher ports.DocumentFetcher
	url     string

	mu  sync.Mutex
	doc *indexDocument
}

type indexDocument struct {
	Versions map[string][]domain.ManifestBuild `json:"versions"`
}

var _ ports.ManifestSource = (*Index)(nil)

// NewIndex creates an index manifest source.
func NewIndex(fetcher ports.DocumentFetcher, url string) *Index {
	return &Index{fetcher: fetcher, url: url}
}

func (i *Index) Versions(ctx context.Context) ([]string, error) {
	doc, err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(doc.Versions))
	for v := range doc.Versions {
		versions = append(versions, v)
	}
	return versions, nil
}

func (i *Index) Builds(ctx context.Context, gameVersion string) ([]domain.ManifestBuild, error) {
	doc, err := i.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Versions[gameVersion], nil
}

func (i *Index) load(ctx context.Context) (*indexDocument, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.doc != nil {
		return i.doc, nil
	}

	body, err := i.fetcher.FetchDocument(ctx, i.url)
	if err != nil {
		return nil, err
	}
	var doc indexDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, domain.NewError(domain.ErrManifestUnavailable, "index manifest", i.url, fmt.Errorf("failed to decode: %w", err))
	}
	i.doc = &doc
	return i.doc, nil
}
