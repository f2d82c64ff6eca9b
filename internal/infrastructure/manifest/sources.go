package manifest

import (
	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// Endpoints selects where each server type's builds are listed. An
// override URL replaces the upstream API with an Index document.
type Endpoints struct {
	PaperAPI        string
	VanillaManifest string
	Overrides       map[domain.ServerType]string
}

// NewSources builds one manifest source per supported server type.
func NewSources(fetcher ports.DocumentFetcher, endpoints Endpoints) map[domain.ServerType]ports.ManifestSource {
	sources := map[domain.ServerType]ports.ManifestSource{
		domain.ServerTypePaper:   NewPaper(fetcher, endpoints.PaperAPI),
		domain.ServerTypeVanilla: NewVanilla(fetcher, endpoints.VanillaManifest),
	}
	for serverType, url := range endpoints.Overrides {
		if url != "" {
			sources[serverType] = NewIndex(fetcher, url)
		}
	}
	return sources
}
