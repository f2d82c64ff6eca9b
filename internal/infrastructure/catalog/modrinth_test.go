package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anvil.dev/cli/internal/core/domain"
	"anvil.dev/cli/internal/infrastructure/fetch"
	httpinfra "anvil.dev/cli/internal/infrastructure/http"
)

const luckpermsVersions = `[
	{
		"id": "v2", "project_id": "Vebnzrzj", "name": "LuckPerms 5.4.102", "version_number": "5.4.102",
		"game_versions": ["1.20.1", "1.20"], "loaders": ["paper", "bukkit"],
		"date_published": "2023-08-01T10:00:00Z",
		"files": [
			{"url": "https://cdn/extra.jar", "filename": "extra.jar", "primary": false, "hashes": {"sha1": "11"}},
			{"url": "https://cdn/LuckPerms-5.4.102.jar", "filename": "LuckPerms-5.4.102.jar", "primary": true,
			 "hashes": {"sha1": "22", "sha512": "33"}}
		],
		"dependencies": [
			{"project_id": "configurate", "version_id": null, "dependency_type": "required"},
			{"project_id": "vault", "version_id": "vlt1", "dependency_type": "optional"},
			{"project_id": "essentials", "dependency_type": "incompatible"},
			{"project_id": "shaded", "dependency_type": "embedded"}
		]
	},
	{
		"id": "v0", "project_id": "Vebnzrzj", "version_number": "0.1", "game_versions": ["1.8"], "loaders": ["bukkit"],
		"date_published": "2015-01-01T00:00:00Z", "files": [], "dependencies": []
	}
]`

func TestModrinth_Versions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/project/luckperms/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(luckpermsVersions))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	catalog := NewModrinth(newFetcher(), srv.URL)

	versions, err := catalog.Versions(context.Background(), "luckperms")
	require.NoError(t, err)
	require.Len(t, versions, 1, "versions without files are dropped")

	v := versions[0]
	assert.Equal(t, "luckperms", v.Slug)
	assert.Equal(t, "Vebnzrzj", v.ProjectID)
	assert.Equal(t, "v2", v.VersionID)
	assert.Equal(t, []string{"1.20", "1.20.1"}, v.GameVersions)
	assert.Equal(t, []string{"bukkit", "paper"}, v.Loaders)
	assert.Equal(t, "https://cdn/LuckPerms-5.4.102.jar", v.DownloadURL, "primary file wins")
	assert.Equal(t, "sha512:33", v.ExpectedChecksum, "sha512 preferred")
	assert.Equal(t, time.Date(2023, 8, 1, 10, 0, 0, 0, time.UTC), v.PublishedAt)

	require.Len(t, v.Dependencies, 2)
	assert.Equal(t, domain.Dependency{Slug: "configurate", VersionConstraint: domain.AnyVersion, Required: true}, v.Dependencies[0])
	assert.Equal(t, "vault", v.Dependencies[1].Slug)
	assert.False(t, v.Dependencies[1].Required)
	assert.True(t, v.Dependencies[1].VersionConstraint.Allows("anything", "vlt1"))
	assert.False(t, v.Dependencies[1].VersionConstraint.Allows("anything", "other"))

	_, err = catalog.Versions(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestModrinth_Search(t *testing.T) {
	var query, facets, limit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		facets = r.URL.Query().Get("facets")
		limit = r.URL.Query().Get("limit")
		w.Write([]byte(`{"hits":[{"project_id":"Vebnzrzj","slug":"luckperms","title":"LuckPerms","description":"perms","downloads":42}]}`))
	}))
	defer srv.Close()

	hits, err := NewModrinth(newFetcher(), srv.URL).Search(context.Background(), "luck perms", 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.PluginSearchHit{{
		Slug: "luckperms", ProjectID: "Vebnzrzj", Title: "LuckPerms", Description: "perms", Downloads: 42,
	}}, hits)

	assert.Equal(t, "luck perms", query)
	assert.Equal(t, "10", limit)
	var decoded [][]string
	require.NoError(t, json.Unmarshal([]byte(facets), &decoded))
	assert.Equal(t, [][]string{{"categories:paper", "categories:spigot", "categories:bukkit"}}, decoded)
}

func newFetcher() *fetch.Fetcher {
	return fetch.New(httpinfra.NewRequester(httpinfra.Options{Timeout: time.Second}), fetch.Options{Attempts: 1})
}
