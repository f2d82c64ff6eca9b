// Package resolver turns abstract server and plugin requests into concrete
// artifacts.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

// LatestVersion requests the newest release.
const LatestVersion = "latest"

// VersionResolver picks builds from per-type manifest sources.
type VersionResolver struct {
	sources map[domain.ServerType]ports.ManifestSource
	logger  *slog.Logger
}

var _ ports.VersionResolver = (*VersionResolver)(nil)

// NewVersionResolver creates a resolver over the given sources.
func NewVersionResolver(sources map[domain.ServerType]ports.ManifestSource, logger *slog.Logger) *VersionResolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VersionResolver{sources: sources, logger: logger}
}

// Resolve selects a build. "latest" (or an empty spec) picks the highest
// release that has at least one build; an explicit version picks that
// version's highest build. Ordering is numeric and never depends on the
// order the manifest lists entries in.
func (r *VersionResolver) Resolve(ctx context.Context, serverType domain.ServerType, versionSpec string) (domain.BuildDescriptor, error) {
	source, ok := r.sources[serverType]
	if !ok {
		return domain.BuildDescriptor{}, domain.NotFoundError("resolve version", string(serverType), fmt.Errorf("no manifest source"))
	}

	versions, err := source.Versions(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.NewError(domain.ErrManifestUnavailable, "resolve version", string(serverType), err)
		}
		return domain.BuildDescriptor{}, err
	}

	spec := strings.TrimSpace(versionSpec)
	if spec == "" || strings.EqualFold(spec, LatestVersion) {
		return r.resolveLatest(ctx, serverType, source, versions)
	}

	gameVersion, ok := matchVersion(versions, spec)
	if !ok {
		return domain.BuildDescriptor{}, domain.NotFoundError("resolve version", fmt.Sprintf("%s %s", serverType, spec), fmt.Errorf("version not in manifest"))
	}
	build, ok, err := r.highestBuild(ctx, source, gameVersion)
	if err != nil {
		return domain.BuildDescriptor{}, err
	}
	if !ok {
		return domain.BuildDescriptor{}, domain.NotFoundError("resolve version", fmt.Sprintf("%s %s", serverType, gameVersion), fmt.Errorf("no builds published"))
	}
	return build.Descriptor(serverType, gameVersion), nil
}

func (r *VersionResolver) resolveLatest(ctx context.Context, serverType domain.ServerType, source ports.ManifestSource, versions []string) (domain.BuildDescriptor, error) {
	for _, gameVersion := range latestCandidates(versions) {
		build, ok, err := r.highestBuild(ctx, source, gameVersion)
		if err != nil {
			return domain.BuildDescriptor{}, err
		}
		if ok {
			return build.Descriptor(serverType, gameVersion), nil
		}
		r.logger.Debug("skipping version without builds", "type", serverType, "version", gameVersion)
	}
	return domain.BuildDescriptor{}, domain.NotFoundError("resolve version", fmt.Sprintf("%s %s", serverType, LatestVersion), fmt.Errorf("no release with builds"))
}

// latestCandidates returns the parseable versions newest first, releases
// ahead of every pre-release. Snapshot ids that do not parse are never
// candidates.
func latestCandidates(versions []string) []string {
	var releases, prereleases []domain.Version
	seen := make(map[string]bool)
	for _, s := range versions {
		v, err := domain.ParseVersion(s)
		if err != nil || seen[s] {
			continue
		}
		seen[s] = true
		if v.Prerelease() {
			prereleases = append(prereleases, v)
		} else {
			releases = append(releases, v)
		}
	}

	descending := func(vs []domain.Version) {
		sort.Slice(vs, func(i, j int) bool { return vs[i].Compare(vs[j]) > 0 })
	}
	descending(releases)
	descending(prereleases)

	out := make([]string, 0, len(releases)+len(prereleases))
	for _, v := range append(releases, prereleases...) {
		out = append(out, v.String())
	}
	return out
}

// matchVersion finds spec in the manifest, exactly or numerically
// equivalent ("1.20" matches "1.20.0"). Exact matches win.
func matchVersion(versions []string, spec string) (string, bool) {
	for _, v := range versions {
		if v == spec {
			return v, true
		}
	}
	want, err := domain.ParseVersion(spec)
	if err != nil {
		return "", false
	}
	var match string
	for _, v := range versions {
		parsed, err := domain.ParseVersion(v)
		if err == nil && parsed.Equivalent(want) && (match == "" || v < match) {
			match = v
		}
	}
	return match, match != ""
}

func (r *VersionResolver) highestBuild(ctx context.Context, source ports.ManifestSource, gameVersion string) (domain.ManifestBuild, bool, error) {
	builds, err := source.Builds(ctx, gameVersion)
	if err != nil {
		return domain.ManifestBuild{}, false, err
	}
	if len(builds) == 0 {
		return domain.ManifestBuild{}, false, nil
	}
	best := builds[0]
	for _, b := range builds[1:] {
		if b.BuildID > best.BuildID || (b.BuildID == best.BuildID && b.URL > best.URL) {
			best = b
		}
	}
	return best, true, nil
}
