// Package integration exercises the pubtrack binary end to end against
// fake pubtrack, KITOpen and Scopus services.
package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

const (
	testToken  = "integration-token"
	testAPIKey = "integration-key"
)

var (
	pubtrackBinary     string
	pubtrackBinaryOnce sync.Once
	pubtrackBinaryErr  error
)

// getPubtrackBinary builds the pubtrack binary once and returns its path.
func getPubtrackBinary(t *testing.T) string {
	t.Helper()
	pubtrackBinaryOnce.Do(func() {
		// Get module root directory
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			pubtrackBinaryErr = os.ErrInvalid
			return
		}
		moduleRoot := filepath.Dir(filepath.Dir(filepath.Dir(filename)))

		// Build pubtrack to a temp location
		tmpDir, err := os.MkdirTemp("", "pubtrack-test-*")
		if err != nil {
			pubtrackBinaryErr = err
			return
		}
		pubtrackBinary = filepath.Join(tmpDir, "pubtrack")

		cmd := exec.Command("go", "build", "-o", pubtrackBinary, "./cmd/pubtrack")
		cmd.Dir = moduleRoot
		if output, err := cmd.CombinedOutput(); err != nil {
			pubtrackBinaryErr = &buildError{output: string(output), err: err}
			return
		}
	})
	if pubtrackBinaryErr != nil {
		t.Fatalf("failed to build pubtrack: %v", pubtrackBinaryErr)
	}
	return pubtrackBinary
}

type buildError struct {
	output string
	err    error
}

func (e *buildError) Error() string {
	return e.err.Error() + ": " + e.output
}

// runPubtrack executes the pubtrack command with the given args. The test's
// config home is injected via XDG_CONFIG_HOME, and the pubtrack variables a
// developer machine may carry are masked so they cannot leak into the test.
func runPubtrack(t *testing.T, configHome string, args ...string) (string, error) {
	t.Helper()
	bin := getPubtrackBinary(t)
	cmd := exec.Command(bin, args...)
	cmd.Dir = configHome
	cmd.Env = append(os.Environ(),
		"XDG_CONFIG_HOME="+configHome,
		"PUBTRACK_URL=",
		"PUBTRACK_TOKEN=",
		"SCOPUS_API_KEY=",
		"KITOPEN_URL=",
	)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

// exitCode extracts the process exit code from a runPubtrack error.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// testEnv bundles the fake services one binary invocation talks to.
type testEnv struct {
	configHome string
	tracker    *fakeTracker
	kitopen    *fakeKitopen
	scopus     *fakeScopus
}

// setupTestEnv starts the three fake services and writes a config file
// pointing the binary at them.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		configHome: t.TempDir(),
		tracker:    newFakeTracker(t),
		kitopen:    newFakeKitopen(t),
		scopus:     newFakeScopus(t),
	}

	dir := filepath.Join(env.configHome, "pubtrack")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	configContent := fmt.Sprintf(`pubtrack:
  url: %q
  token: %q
kitopen:
  url: %q
scopus:
  api_key: %q
  url: %q
`, env.tracker.srv.URL, testToken, env.kitopen.srv.URL, testAPIKey, env.scopus.srv.URL)
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}
	return env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeResults writes a list response envelope. The results key always
// carries a real array, never null.
func writeResults(w http.ResponseWriter, list []map[string]any) {
	if list == nil {
		list = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(list), "results": list})
}

// fakeTracker is an in-memory stand-in for the pubtrack REST service. It
// enforces token authentication and implements just enough of the API for
// the commands under test.
type fakeTracker struct {
	srv *httptest.Server

	mu             sync.Mutex
	metaAuthors    []map[string]any
	publications   []map[string]any
	authors        []map[string]any
	authorings     []map[string]any
	patches        map[string]map[string]any
	pubPosts       int
	authoringPosts int
}

func newFakeTracker(t *testing.T) *fakeTracker {
	t.Helper()
	f := &fakeTracker{patches: make(map[string]map[string]any)}

	mux := http.NewServeMux()
	mux.HandleFunc("/meta-authors/", f.handleMetaAuthors)
	mux.HandleFunc("/publications/", f.handlePublications)
	mux.HandleFunc("/authors/", f.handleAuthors)
	mux.HandleFunc("/authorings/", f.handleAuthorings)

	f.srv = httptest.NewServer(f.requireToken(mux))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTracker) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "TOKEN "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeTracker) handleMetaAuthors(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeResults(w, f.metaAuthors)
}

func (f *fakeTracker) handlePublications(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		doi := r.URL.Query().Get("doi")
		if doi == "" {
			writeResults(w, f.publications)
			return
		}
		var matches []map[string]any
		for _, pub := range f.publications {
			if pub["doi"] == doi {
				matches = append(matches, pub)
			}
		}
		writeResults(w, matches)

	case http.MethodPost:
		var pub map[string]any
		json.NewDecoder(r.Body).Decode(&pub)
		f.pubPosts++
		pub["uuid"] = fmt.Sprintf("uuid-%d", len(f.publications)+1)
		f.publications = append(f.publications, pub)
		writeJSON(w, http.StatusCreated, pub)

	case http.MethodPatch:
		uuid := strings.Trim(strings.TrimPrefix(r.URL.Path, "/publications/"), "/")
		var patch map[string]any
		json.NewDecoder(r.Body).Decode(&patch)
		f.patches[uuid] = patch
		patch["uuid"] = uuid
		writeJSON(w, http.StatusOK, patch)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeTracker) handleAuthors(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		id := r.URL.Query().Get("external_author_id")
		var matches []map[string]any
		for _, author := range f.authors {
			if id == "" || author["external_author_id"] == id {
				matches = append(matches, author)
			}
		}
		writeResults(w, matches)

	case http.MethodPost:
		var author map[string]any
		json.NewDecoder(r.Body).Decode(&author)
		id, _ := author["external_author_id"].(string)
		for _, existing := range f.authors {
			if existing["external_author_id"] == id {
				// Unique constraint, as enforced by the real service.
				writeJSON(w, http.StatusBadRequest,
					map[string]any{"external_author_id": []string{"must be unique"}})
				return
			}
		}
		author["slug"] = "author-" + id
		f.authors = append(f.authors, author)
		writeJSON(w, http.StatusCreated, author)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeTracker) handleAuthorings(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var authoring map[string]any
	json.NewDecoder(r.Body).Decode(&authoring)
	f.authoringPosts++
	f.authorings = append(f.authorings, authoring)
	writeJSON(w, http.StatusCreated, authoring)
}

func (f *fakeTracker) addMetaAuthor(fullName string, variants ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaAuthors = append(f.metaAuthors, map[string]any{
		"slug":      fmt.Sprintf("meta-%d", len(f.metaAuthors)+1),
		"full_name": fullName,
		"authors":   variants,
	})
}

func (f *fakeTracker) addPublication(pub map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publications = append(f.publications, pub)
}

func (f *fakeTracker) pubPostCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pubPosts
}

func (f *fakeTracker) authoringPostCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authoringPosts
}

func (f *fakeTracker) authorCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.authors)
}

func (f *fakeTracker) patchFor(uuid string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[uuid]
}

// authorVariant builds one author entry of a meta author roster.
func authorVariant(firstName, lastName, externalID string) map[string]any {
	return map[string]any{
		"first_name":         firstName,
		"last_name":          lastName,
		"external_author_id": externalID,
	}
}

// fakeKitopen serves canned KITOpen search results and records the queries
// it was asked.
type fakeKitopen struct {
	srv *httptest.Server

	mu        sync.Mutex
	results   []map[string]any
	requests  int
	lastQuery url.Values
}

func newFakeKitopen(t *testing.T) *fakeKitopen {
	t.Helper()
	f := &fakeKitopen{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.lastQuery = r.URL.Query()
		results := f.results
		f.mu.Unlock()

		if results == nil {
			results = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"publications": results})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeKitopen) setResults(results ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = results
}

func (f *fakeKitopen) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeKitopen) query() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQuery
}

// kitopenResult builds one record of a KITOpen search response.
func kitopenResult(id, doi, title, pof string) map[string]any {
	return map[string]any{
		"id":            id,
		"doi":           doi,
		"title":         title,
		"year":          "2020",
		"pof_structure": pof,
	}
}

// fakeScopus answers Scopus Search API queries from a canned entry list.
// DOI(...) queries are filtered down to the matching entry, author queries
// return the whole list.
type fakeScopus struct {
	srv *httptest.Server

	mu       sync.Mutex
	entries  []map[string]any
	requests int
}

func newFakeScopus(t *testing.T) *fakeScopus {
	t.Helper()
	f := &fakeScopus{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-ELS-APIKey") != testAPIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid api key"})
			return
		}

		f.mu.Lock()
		f.requests++
		entries := f.entries
		f.mu.Unlock()

		query := r.URL.Query().Get("query")
		if strings.HasPrefix(query, "DOI(") {
			doi := strings.TrimSuffix(strings.TrimPrefix(query, "DOI("), ")")
			var matches []map[string]any
			for _, entry := range entries {
				if entry["prism:doi"] == doi {
					matches = append(matches, entry)
				}
			}
			entries = matches
		}

		if entries == nil {
			entries = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"search-results": map[string]any{
				"opensearch:totalResults": fmt.Sprint(len(entries)),
				"entry":                   entries,
			},
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeScopus) setEntries(entries ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = entries
}

func (f *fakeScopus) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

// scopusEntry builds one Scopus search entry authored by the test author.
func scopusEntry(scopusID, doi, title string) map[string]any {
	return map[string]any{
		"dc:identifier":   "SCOPUS_ID:" + scopusID,
		"dc:title":        title,
		"prism:doi":       doi,
		"prism:coverDate": "2020-05-14",
		"author": []map[string]any{
			{"authid": "57193823170", "surname": "Mustermann", "given-name": "Max"},
		},
	}
}
