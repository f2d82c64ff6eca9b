package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/core/ports"
)

type fakeManifest struct {
	versions []string
	builds   map[string][]domain.ManifestBuild
	err      error
}

func (f *fakeManifest) Versions(context.Context) ([]string, error) {
	return f.versions, f.err
}

func (f *fakeManifest) Builds(_ context.Context, v string) ([]domain.ManifestBuild, error) {
	return f.builds[v], f.err
}

func build(id int) domain.ManifestBuild {
	return domain.ManifestBuild{BuildID: id, URL: fmt.Sprintf("https://dl/%d.jar", id), Checksum: "sha256:00"}
}

func paperResolver(m *fakeManifest) *VersionResolver {
	return NewVersionResolver(map[domain.ServerType]ports.ManifestSource{domain.ServerTypePaper: m}, nil)
}

func TestVersionResolver_Resolve(t *testing.T) {
	manifest := &fakeManifest{
		versions: []string{"1.20.10", "1.21-rc1", "1.20.1", "1.20.9", "24w14a", "1.9"},
		builds: map[string][]domain.ManifestBuild{
			"1.20.1":   {build(12), build(10)},
			"1.20.9":   {build(3)},
			"1.20.10":  {build(7), build(40), build(9)},
			"1.21-rc1": {build(1)},
			"24w14a":   {build(1)},
		},
	}

	tests := []struct {
		name        string
		spec        string
		wantVersion string
		wantBuild   int
		wantErr     error
	}{
		{name: "explicit_highest_build", spec: "1.20.1", wantVersion: "1.20.1", wantBuild: 12},
		{name: "latest_numeric_not_lexicographic", spec: "latest", wantVersion: "1.20.10", wantBuild: 40},
		{name: "empty_means_latest", spec: "", wantVersion: "1.20.10", wantBuild: 40},
		{name: "explicit_prerelease", spec: "1.21-rc1", wantVersion: "1.21-rc1", wantBuild: 1},
		{name: "absent_version", spec: "1.19.4", wantErr: domain.ErrNotFound},
		{name: "version_without_builds", spec: "1.9", wantErr: domain.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := paperResolver(manifest).Resolve(context.Background(), domain.ServerTypePaper, tt.spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, got.GameVersion)
			assert.Equal(t, tt.wantBuild, got.BuildID)
			assert.Equal(t, domain.ServerTypePaper, got.ServerType)
		})
	}
}

func TestVersionResolver_LatestSkipsVersionsWithoutBuilds(t *testing.T) {
	manifest := &fakeManifest{
		versions: []string{"1.20.4", "1.20.6"},
		builds:   map[string][]domain.ManifestBuild{"1.20.4": {build(2)}},
	}
	got, err := paperResolver(manifest).Resolve(context.Background(), domain.ServerTypePaper, "latest")
	require.NoError(t, err)
	assert.Equal(t, "1.20.4", got.GameVersion)
}

func TestVersionResolver_LatestFallsBackToPrerelease(t *testing.T) {
	manifest := &fakeManifest{
		versions: []string{"1.21-pre1", "1.21-rc1"},
		builds:   map[string][]domain.ManifestBuild{"1.21-pre1": {build(1)}, "1.21-rc1": {build(1)}},
	}
	got, err := paperResolver(manifest).Resolve(context.Background(), domain.ServerTypePaper, "latest")
	require.NoError(t, err)
	assert.Equal(t, "1.21-rc1", got.GameVersion)
}

func TestVersionResolver_Errors(t *testing.T) {
	unavailable := &fakeManifest{err: domain.NewError(domain.ErrManifestUnavailable, "fetch document", "https://x", nil)}
	_, err := paperResolver(unavailable).Resolve(context.Background(), domain.ServerTypePaper, "latest")
	assert.ErrorIs(t, err, domain.ErrManifestUnavailable)

	missing := &fakeManifest{err: domain.NotFoundError("fetch document", "https://x", nil)}
	_, err = paperResolver(missing).Resolve(context.Background(), domain.ServerTypePaper, "latest")
	assert.ErrorIs(t, err, domain.ErrManifestUnavailable, "a missing version list means the manifest is unusable")

	_, err = paperResolver(&fakeManifest{}).Resolve(context.Background(), domain.ServerTypeVanilla, "latest")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = paperResolver(&fakeManifest{versions: []string{"24w14a"}}).Resolve(context.Background(), domain.ServerTypePaper, "latest")
	assert.ErrorIs(t, err, domain.ErrNotFound, "snapshots are never latest")
}

func TestVersionResolver_PropertyBased_IndependentOfManifestOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "versions")
		seen := map[string]bool{}
		manifest := &fakeManifest{builds: map[string][]domain.ManifestBuild{}}
		for i := 0; i < n; i++ {
			v := rapid.SampledFrom([]string{"1.8", "1.8.9", "1.12.2", "1.16.5", "1.19", "1.20", "1.20.1", "1.20.10", "1.21-rc1"}).Draw(t, "version")
			if seen[v] {
				continue
			}
			seen[v] = true
			manifest.versions = append(manifest.versions, v)
			ids := rapid.SliceOfNDistinct(rapid.IntRange(1, 500), 1, 6, func(i int) int { return i }).Draw(t, "builds")
			for _, id := range ids {
				manifest.builds[v] = append(manifest.builds[v], build(id))
			}
		}

		shuffled := &fakeManifest{
			versions: rapid.Permutation(manifest.versions).Draw(t, "shuffled_versions"),
			builds:   map[string][]domain.ManifestBuild{},
		}
		for _, v := range manifest.versions {
			shuffled.builds[v] = rapid.Permutation(manifest.builds[v]).Draw(t, "shuffled_builds_"+v)
		}

		spec := rapid.SampledFrom(append([]string{"latest"}, manifest.versions...)).Draw(t, "spec")
		want, err := paperResolver(manifest).Resolve(context.Background(), domain.ServerTypePaper, spec)
		require.NoError(t, err)
		got, err := paperResolver(shuffled).Resolve(context.Background(), domain.ServerTypePaper, spec)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		for _, b := range manifest.builds[want.GameVersion] {
			assert.LessOrEqual(t, b.BuildID, want.BuildID, "highest build selected")
		}
	})
}
