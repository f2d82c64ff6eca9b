// Package testutil provides a fake of the remote services the CLI talks to:
// the Paper downloads API, the Vanilla version manifest and the Modrinth
// catalog, all behind one httptest server.
package testutil

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// PluginVersion is one published catalog version.
type PluginVersion struct {
	Slug         string
	ID           string
	Number       string
	GameVersions []string
	Loaders      []string
	Published    time.Time
	// Requires lists the slugs of required dependencies
	Requires []string
	Jar      []byte
}

// RequestInfo captures one request for test assertions
type RequestInfo struct {
	Method    string
	Path      string
	UserAgent string
}

// Upstream is a fake of the manifest, catalog and download endpoints.
type Upstream struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RequestInfo
	paper    map[string][]paperBuild
	vanilla  []string
	plugins  map[string][]PluginVersion
	files    map[string][]byte
	failures map[string]int
}

type paperBuild struct {
	Build int
	Name  string
	Sum   string
}

// NewUpstream starts a fake upstream that is closed when the test ends.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()
	u := &Upstream{
		paper:    map[string][]paperBuild{},
		plugins:  map[string][]PluginVersion{},
		files:    map[string][]byte{},
		failures: map[string]int{},
	}
	u.Server = httptest.NewServer(http.HandlerFunc(u.serve))
	t.Cleanup(u.Close)
	return u
}

// AddPaperBuild publishes a Paper build and its jar.
func (u *Upstream) AddPaperBuild(version string, build int, jar []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	name := fmt.Sprintf("paper-%s-%d.jar", version, build)
	sum := sha256.Sum256(jar)
	u.paper[version] = append(u.paper[version], paperBuild{Build: build, Name: name, Sum: hex.EncodeToString(sum[:])})
	u.files[fmt.Sprintf("/v2/projects/paper/versions/%s/builds/%d/downloads/%s", version, build, name)] = jar
}

// AddVanillaRelease publishes a Vanilla release and its server jar.
func (u *Upstream) AddVanillaRelease(version string, jar []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.vanilla = append(u.vanilla, version)
	u.files["/mc/server/"+version+".jar"] = jar
}

// AddPlugin publishes a catalog version and its jar.
func (u *Upstream) AddPlugin(v PluginVersion) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.plugins[v.Slug] = append(u.plugins[v.Slug], v)
	u.files[u.pluginPath(v)] = v.Jar
}

// SetFile replaces the body served at path. Paper and plugin checksums
// keep their published values.
func (u *Upstream) SetFile(path string, body []byte) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.files[path] = body
}

// Fail makes every request for path answer with status.
func (u *Upstream) Fail(path string, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures[path] = status
}

// Requests counts the requests made for path.
func (u *Upstream) Requests(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, r := range u.requests {
		if r.Path == path {
			n++
		}
	}
	return n
}

// RequestLog returns a copy of every request seen so far.
func (u *Upstream) RequestLog() []RequestInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]RequestInfo(nil), u.requests...)
}

// Env returns ANVIL_* variables pointing the CLI at this upstream with
// fast retries.
func (u *Upstream) Env() map[string]string {
	return map[string]string{
		"ANVIL_PAPER_API":              u.URL,
		"ANVIL_VANILLA_MANIFEST":       u.URL + "/mc/version_manifest_v2.json",
		"ANVIL_MODRINTH_API":           u.URL,
		"ANVIL_RETRY_ATTEMPTS":         "2",
		"ANVIL_RETRY_INITIAL_INTERVAL": "1ms",
		"ANVIL_RETRY_MAX_INTERVAL":     "5ms",
		"ANVIL_HTTP_TIMEOUT":           "5s",
		"ANVIL_REQUESTS_PER_SECOND":    "1000",
		"ANVIL_LOCK_TIMEOUT":           "2s",
	}
}

func (u *Upstream) pluginPath(v PluginVersion) string {
	return fmt.Sprintf("/cdn/%s/%s/%s-%s.jar", v.Slug, v.ID, v.Slug, v.Number)
}

func (u *Upstream) serve(w http.ResponseWriter, r *http.Request) {
	u.mu.Lock()
	u.requests = append(u.requests, RequestInfo{Method: r.Method, Path: r.URL.Path, UserAgent: r.UserAgent()})
	status, failing := u.failures[r.URL.Path]
	u.mu.Unlock()

	if failing {
		http.Error(w, http.StatusText(status), status)
		return
	}

	path := r.URL.Path
	switch {
	case path == "/v2/projects/paper":
		u.writeJSON(w, u.paperVersions())
	case strings.HasPrefix(path, "/v2/projects/paper/versions/") && strings.HasSuffix(path, "/builds"):
		version := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/projects/paper/versions/"), "/builds")
		u.servePaperBuilds(w, version)
	case path == "/mc/version_manifest_v2.json":
		u.writeJSON(w, u.vanillaManifest())
	case strings.HasPrefix(path, "/mc/v/"):
		u.serveVanillaDetails(w, strings.TrimSuffix(strings.TrimPrefix(path, "/mc/v/"), ".json"))
	case strings.HasPrefix(path, "/v2/project/") && strings.HasSuffix(path, "/version"):
		slug := strings.TrimSuffix(strings.TrimPrefix(path, "/v2/project/"), "/version")
		u.servePluginVersions(w, slug)
	case path == "/v2/search":
		u.serveSearch(w, r.URL.Query().Get("query"))
	default:
		u.serveFile(w, path)
	}
}

func (u *Upstream) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (u *Upstream) paperVersions() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	versions := make([]string, 0, len(u.paper))
	for v := range u.paper {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return map[string]any{"project_id": "paper", "versions": versions}
}

func (u *Upstream) servePaperBuilds(w http.ResponseWriter, version string) {
	u.mu.Lock()
	builds, ok := u.paper[version]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	out := make([]map[string]any, 0, len(builds))
	for _, b := range builds {
		out = append(out, map[string]any{
			"build":   b.Build,
			"channel": "default",
			"downloads": map[string]any{
				"application": map[string]string{"name": b.Name, "sha256": b.Sum},
			},
		})
	}
	u.writeJSON(w, map[string]any{"version": version, "builds": out})
}

func (u *Upstream) vanillaManifest() map[string]any {
	u.mu.Lock()
	defer u.mu.Unlock()
	entries := make([]map[string]string, 0, len(u.vanilla))
	for _, v := range u.vanilla {
		entries = append(entries, map[string]string{"id": v, "type": "release", "url": u.URL + "/mc/v/" + v + ".json"})
	}
	entries = append(entries, map[string]string{"id": "24w14a", "type": "snapshot", "url": u.URL + "/mc/v/24w14a.json"})
	return map[string]any{"versions": entries}
}

func (u *Upstream) serveVanillaDetails(w http.ResponseWriter, version string) {
	u.mu.Lock()
	jar, ok := u.files["/mc/server/"+version+".jar"]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	sum := sha1.Sum(jar)
	u.writeJSON(w, map[string]any{
		"id": version,
		"downloads": map[string]any{
			"server": map[string]any{
				"url":  u.URL + "/mc/server/" + version + ".jar",
				"sha1": hex.EncodeToString(sum[:]),
				"size": len(jar),
			},
		},
	})
}

func (u *Upstream) servePluginVersions(w http.ResponseWriter, slug string) {
	u.mu.Lock()
	versions, ok := u.plugins[slug]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	out := make([]map[string]any, 0, len(versions))
	for _, v := range versions {
		sum := sha512.Sum512(v.Jar)
		deps := make([]map[string]any, 0, len(v.Requires))
		for _, dep := range v.Requires {
			deps = append(deps, map[string]any{"project_id": dep, "dependency_type": "required"})
		}
		out = append(out, map[string]any{
			"id":             v.ID,
			"project_id":     v.Slug,
			"name":           v.Slug + " " + v.Number,
			"version_number": v.Number,
			"game_versions":  v.GameVersions,
			"loaders":        v.Loaders,
			"date_published": v.Published.UTC().Format(time.RFC3339),
			"files": []map[string]any{{
				"url":      u.URL + u.pluginPath(v),
				"filename": fmt.Sprintf("%s-%s.jar", v.Slug, v.Number),
				"primary":  true,
				"hashes":   map[string]string{"sha512": hex.EncodeToString(sum[:])},
			}},
			"dependencies": deps,
		})
	}
	u.writeJSON(w, out)
}

func (u *Upstream) serveSearch(w http.ResponseWriter, query string) {
	u.mu.Lock()
	slugs := make([]string, 0, len(u.plugins))
	for slug := range u.plugins {
		if strings.Contains(slug, strings.ToLower(query)) {
			slugs = append(slugs, slug)
		}
	}
	u.mu.Unlock()
	sort.Strings(slugs)

	hits := make([]map[string]any, 0, len(slugs))
	for i, slug := range slugs {
		hits = append(hits, map[string]any{
			"project_id":  slug,
			"slug":        slug,
			"title":       strings.ToUpper(slug[:1]) + slug[1:],
			"description": "plugin " + slug,
			"downloads":   1000 * (len(slugs) - i),
		})
	}
	u.writeJSON(w, map[string]any{"hits": hits, "total_hits": len(hits)})
}

func (u *Upstream) serveFile(w http.ResponseWriter, path string) {
	u.mu.Lock()
	body, ok := u.files[path]
	u.mu.Unlock()
	if !ok {
		http.NotFound(w, nil)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
